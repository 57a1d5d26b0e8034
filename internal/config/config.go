// Package config loads the pipeline configuration from file and
// environment. Every stage receives its configuration explicitly; no
// stage reads process-wide mutable state.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aegis-analytics/claimscreen/internal/adjust"
	"github.com/aegis-analytics/claimscreen/internal/benchmark"
	"github.com/aegis-analytics/claimscreen/internal/claims"
)

// Config holds the full application configuration.
type Config struct {
	Claims   claims.SourceConfig `yaml:"claims" mapstructure:"claims"`
	Registry RegistryConfig      `yaml:"registry" mapstructure:"registry"`
	Output   OutputConfig        `yaml:"output" mapstructure:"output"`
	Screen   ScreenConfig        `yaml:"screen" mapstructure:"screen"`
	Eras     EraConfig           `yaml:"eras" mapstructure:"eras"`
	Adjust   adjust.Config       `yaml:"adjust" mapstructure:"adjust"`
	Signals  SignalConfig        `yaml:"signals" mapstructure:"signals"`
	Log      LogConfig           `yaml:"log" mapstructure:"log"`
}

// RegistryConfig locates the provider registry and taxonomy lookup.
type RegistryConfig struct {
	RegistryPath string `yaml:"registry_path" mapstructure:"registry_path"`
	TaxonomyPath string `yaml:"taxonomy_path" mapstructure:"taxonomy_path"`
	// Encoding is the files' character encoding by IANA name. Registry
	// exports are often windows-1252; empty means UTF-8 as-is.
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// OutputConfig configures the artifact sink.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ScreenConfig holds the screened code families and benchmarking gates.
type ScreenConfig struct {
	NewCodes         []string             `yaml:"new_codes" mapstructure:"new_codes"`
	EstablishedCodes []string             `yaml:"established_codes" mapstructure:"established_codes"`
	Thresholds       benchmark.Thresholds `yaml:"thresholds" mapstructure:"thresholds"`
}

// AllCodes returns the union of both code families.
func (s ScreenConfig) AllCodes() []string {
	out := make([]string, 0, len(s.NewCodes)+len(s.EstablishedCodes))
	out = append(out, s.NewCodes...)
	out = append(out, s.EstablishedCodes...)
	return out
}

// EraConfig partitions claim months into two independent eras at
// SplitMonth (inclusive on the late side).
type EraConfig struct {
	SplitMonth string `yaml:"split_month" mapstructure:"split_month"` // YYYY-MM
	EarlyLabel string `yaml:"early_label" mapstructure:"early_label"`
	LateLabel  string `yaml:"late_label" mapstructure:"late_label"`
}

// Era returns the era label for a claim month.
func (e EraConfig) Era(month string) string {
	if month < e.SplitMonth {
		return e.EarlyLabel
	}
	return e.LateLabel
}

// SignalConfig locates the external signal catalog.
type SignalConfig struct {
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
	Dir         string `yaml:"dir" mapstructure:"dir"` // base for relative signal paths
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and CLAIMSCREEN_* environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CLAIMSCREEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("claims.driver", "csv")
	v.SetDefault("claims.table", "claim_aggregates")
	v.SetDefault("output.dir", "output")
	v.SetDefault("screen.new_codes", []string{"99202", "99203", "99204", "99205"})
	v.SetDefault("screen.established_codes", []string{"99211", "99212", "99213", "99214", "99215"})
	v.SetDefault("screen.thresholds.min_claims", 500)
	v.SetDefault("screen.thresholds.min_peers", 20)
	v.SetDefault("screen.thresholds.z_threshold", 2.5)
	v.SetDefault("screen.thresholds.min_abs_deviation", 5.0)
	v.SetDefault("eras.split_month", "2021-01")
	v.SetDefault("eras.early_label", "pre2021")
	v.SetDefault("eras.late_label", "post2021")
	v.SetDefault("adjust.ridge", 1e-8)
	v.SetDefault("adjust.z_threshold", 2.5)
	v.SetDefault("adjust.min_peers", 20)
	v.SetDefault("signals.catalog_path", "signals.yaml")
	v.SetDefault("signals.dir", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the invariants every command relies on.
func (c *Config) Validate() error {
	if c.Registry.RegistryPath == "" {
		return eris.New("config: registry.registry_path is required")
	}
	if c.Registry.TaxonomyPath == "" {
		return eris.New("config: registry.taxonomy_path is required")
	}
	if c.Output.Dir == "" {
		return eris.New("config: output.dir is required")
	}
	if len(c.Screen.NewCodes) == 0 && len(c.Screen.EstablishedCodes) == 0 {
		return eris.New("config: screen has no code families")
	}
	if c.Screen.Thresholds.MinPeers < 2 {
		return eris.Errorf("config: screen.thresholds.min_peers must be at least 2 (got %d)", c.Screen.Thresholds.MinPeers)
	}
	if c.Eras.SplitMonth == "" || c.Eras.EarlyLabel == "" || c.Eras.LateLabel == "" {
		return eris.New("config: eras requires split_month, early_label, and late_label")
	}
	if c.Eras.EarlyLabel == c.Eras.LateLabel {
		return eris.New("config: era labels must differ")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
