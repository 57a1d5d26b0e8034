// Package converge fuses the outlier set with independently computed
// external signal tables into a single ranked evidence score per provider.
package converge

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultPrecedence orders evidence categories by typical evidentiary
// strength, strongest first. Used for ranking tie-breaks.
var DefaultPrecedence = []string{"regulatory", "infrastructure", "billing_anomaly", "temporal"}

// Signal declares one external signal table in the catalog.
type Signal struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Path     string `yaml:"path"`
	IDColumn string `yaml:"id_column"`
}

// Catalog declares the external signal tables and the category precedence
// used for ranking tie-breaks.
type Catalog struct {
	CategoryPrecedence []string `yaml:"category_precedence"`
	Signals            []Signal `yaml:"signals"`
}

// LoadCatalog reads and validates the YAML signal catalog. The catalog is
// mandatory for convergence scoring; a missing catalog aborts the stage.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "converge: read signal catalog %s", path)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, eris.Wrapf(err, "converge: parse signal catalog %s", path)
	}
	if len(cat.CategoryPrecedence) == 0 {
		cat.CategoryPrecedence = DefaultPrecedence
	}

	if err := cat.validate(); err != nil {
		return nil, eris.Wrapf(err, "converge: signal catalog %s", path)
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	categories := make(map[string]bool, len(c.CategoryPrecedence))
	for _, cat := range c.CategoryPrecedence {
		categories[cat] = true
	}

	seen := make(map[string]bool, len(c.Signals))
	for _, sig := range c.Signals {
		if sig.Name == "" {
			return eris.New("signal with empty name")
		}
		if seen[sig.Name] {
			return eris.Errorf("duplicate signal %q", sig.Name)
		}
		seen[sig.Name] = true

		if !categories[sig.Category] {
			return eris.Errorf("signal %q: category %q not in category_precedence", sig.Name, sig.Category)
		}
		if sig.Path == "" {
			return eris.Errorf("signal %q: missing path", sig.Name)
		}
		if sig.IDColumn == "" {
			return eris.Errorf("signal %q: missing id_column", sig.Name)
		}
	}
	return nil
}
