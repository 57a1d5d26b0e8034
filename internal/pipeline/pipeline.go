// Package pipeline orchestrates the screening run: claim scanning, per-era
// benchmarking, covariate adjustment, cross-era reconciliation, signal
// convergence, and aggregate rollups. Stages communicate only through
// table artifacts, so every boundary can be re-run and inspected
// independently.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aegis-analytics/claimscreen/internal/adjust"
	"github.com/aegis-analytics/claimscreen/internal/benchmark"
	"github.com/aegis-analytics/claimscreen/internal/claims"
	"github.com/aegis-analytics/claimscreen/internal/config"
	"github.com/aegis-analytics/claimscreen/internal/converge"
	"github.com/aegis-analytics/claimscreen/internal/model"
	"github.com/aegis-analytics/claimscreen/internal/reconcile"
	"github.com/aegis-analytics/claimscreen/internal/registry"
	"github.com/aegis-analytics/claimscreen/internal/rollup"
	"github.com/aegis-analytics/claimscreen/internal/tabular"
)

// Disclaimer frames every run's output: the pipeline reports statistical
// deviation, not misconduct.
const Disclaimer = "This is a screening tool that identifies statistical outliers in billing " +
	"patterns. It does NOT constitute evidence of fraud, waste, or abuse. The analysis has no " +
	"access to diagnosis codes or chart-level data; providers treating sicker or more complex " +
	"populations will legitimately bill higher-complexity codes. Results are flags warranting " +
	"human review, not conclusions about any provider's conduct."

const (
	// FamilyNew and FamilyEstablished are benchmarked separately so
	// new-patient and established-patient coding mixes never share a
	// cohort benchmark.
	FamilyNew         = "new"
	FamilyEstablished = "est"

	typeRollupFloor = 50
)

// Pipeline runs the screening stages against one configuration.
type Pipeline struct {
	cfg *config.Config
	log *RunLog
}

// New creates a pipeline. Every threshold and path comes from cfg; the
// pipeline holds no other state between runs.
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg, log: NewRunLog()}
}

// RunLog exposes the run diagnostics collector.
func (p *Pipeline) RunLog() *RunLog { return p.log }

// eraAccums holds the streaming accumulators for one era. Only grouped
// sums live here; claim rows are never materialized.
type eraAccums struct {
	label    string
	prices   *benchmark.PriceIndex
	engines  map[string]*benchmark.Engine
	profiles *adjust.ProfileAccumulator
}

func (p *Pipeline) newEraAccums(label string) *eraAccums {
	screen := p.cfg.Screen
	return &eraAccums{
		label:  label,
		prices: benchmark.NewPriceIndex(screen.AllCodes()),
		engines: map[string]*benchmark.Engine{
			FamilyNew:         benchmark.NewEngine(label, FamilyNew, screen.NewCodes, screen.Thresholds),
			FamilyEstablished: benchmark.NewEngine(label, FamilyEstablished, screen.EstablishedCodes, screen.Thresholds),
		},
		profiles: adjust.NewProfileAccumulator(screen.AllCodes(), screen.NewCodes),
	}
}

// scan makes a single streaming pass over the claim snapshot, routing each
// row to its era's accumulators. Rows with non-positive payment are
// excluded up front.
func (p *Pipeline) scan(ctx context.Context) (map[string]*eraAccums, error) {
	started := time.Now()

	source, err := claims.NewSource(ctx, p.cfg.Claims)
	if err != nil {
		return nil, err
	}

	accums := map[string]*eraAccums{
		p.cfg.Eras.EarlyLabel: p.newEraAccums(p.cfg.Eras.EarlyLabel),
		p.cfg.Eras.LateLabel:  p.newEraAccums(p.cfg.Eras.LateLabel),
	}

	var rows int64
	err = source.Scan(ctx, func(row model.ClaimAggregate) error {
		if row.PaidAmount <= 0 {
			return nil
		}
		rows++
		acc := accums[p.cfg.Eras.Era(row.Month)]
		acc.prices.Add(row)
		for _, engine := range acc.engines {
			engine.Add(row)
		}
		acc.profiles.Add(row)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: scan claim aggregates")
	}

	p.log.Record("scan", "rows", rows)
	p.log.StageDone("scan", started)
	return accums, nil
}

// eraResult is one era's benchmark and adjustment output.
type eraResult struct {
	label    string
	combined []model.OutlierRecord
	adjusted []model.AdjustedRecord
	summary  adjust.Summary
}

// runEra benchmarks both code families for one era, writes the per-family
// and combined provider tables plus rollups, and optionally fits the
// covariate adjustment.
func (p *Pipeline) runEra(reg *registry.Registry, acc *eraAccums, withAdjust bool) (*eraResult, error) {
	started := time.Now()
	stage := "benchmark_" + acc.label

	for _, cp := range acc.prices.Table() {
		zap.L().Debug("benchmark: national price",
			zap.String("era", acc.label),
			zap.String("code", cp.Code),
			zap.Float64("price", cp.Price))
	}

	result := &eraResult{label: acc.label}
	for _, family := range []string{FamilyNew, FamilyEstablished} {
		records, diag := acc.engines[family].Results(reg, acc.prices)

		p.log.Record(stage, family+"_providers", diag.Providers)
		p.log.Record(stage, family+"_outliers", diag.Outliers)
		p.log.Record(stage, family+"_excluded_min_claims", diag.ExcludedMinClaims)
		p.log.Record(stage, family+"_excluded_no_registry", diag.ExcludedNoRegistry)
		p.log.Record(stage, family+"_small_cohorts", diag.SmallCohorts)
		p.log.Record(stage, family+"_small_cohort_members", diag.SmallCohortMembers)

		if err := writeOutliers(p.outPath(fmt.Sprintf("providers_%s_%s.csv", family, acc.label)), records); err != nil {
			return nil, err
		}
		result.combined = append(result.combined, records...)
	}

	if err := writeOutliers(p.outPath(fmt.Sprintf("providers_%s.csv", acc.label)), result.combined); err != nil {
		return nil, err
	}
	if err := p.writeRollups(acc.label, result.combined); err != nil {
		return nil, err
	}
	p.log.StageDone(stage, started)

	if !withAdjust {
		return result, nil
	}

	adjustStarted := time.Now()
	adjusted, summary, err := adjust.Fit(result.combined, acc.profiles.Profiles(), acc.label, p.cfg.Adjust)
	if err != nil {
		return nil, err
	}
	result.adjusted = adjusted
	result.summary = summary

	if err := writeAdjusted(p.outPath(fmt.Sprintf("adjusted_%s.csv", acc.label)), adjusted); err != nil {
		return nil, err
	}
	p.log.Record("adjust_"+acc.label, "r_squared", summary.RSquared)
	p.log.Record("adjust_"+acc.label, "imputed", summary.Imputed)
	p.log.StageDone("adjust_"+acc.label, adjustStarted)

	return result, nil
}

func (p *Pipeline) writeRollups(era string, records []model.OutlierRecord) error {
	th := p.cfg.Screen.Thresholds
	if err := writeRollup(p.outPath(fmt.Sprintf("by_specialty_%s.csv", era)), "specialty",
		rollup.BySpecialty(records, th.MinPeers)); err != nil {
		return err
	}
	if err := writeRollup(p.outPath(fmt.Sprintf("by_state_%s.csv", era)), "state",
		rollup.ByState(records)); err != nil {
		return err
	}
	return writeRollup(p.outPath(fmt.Sprintf("by_type_%s.csv", era)), "provider_type",
		rollup.ByProviderType(records, typeRollupFloor))
}

// Run executes the full pipeline: scan, both eras in parallel, cross-era
// reconciliation, convergence scoring, and the summary artifacts.
func (p *Pipeline) Run(ctx context.Context, xlsxExport bool) error {
	zap.L().Info("pipeline: starting run", zap.String("run_id", p.log.ID()))
	zap.L().Info(Disclaimer)

	reg, err := registry.Load(p.cfg.Registry.RegistryPath, p.cfg.Registry.TaxonomyPath, p.cfg.Registry.Encoding)
	if err != nil {
		return eris.Wrap(err, "pipeline: load registry")
	}

	accums, err := p.scan(ctx)
	if err != nil {
		return err
	}

	// The eras are independent computations over disjoint accumulators;
	// either failing aborts the run before any cross-era artifact exists.
	// Each goroutine writes only its own slice slot.
	labels := []string{p.cfg.Eras.EarlyLabel, p.cfg.Eras.LateLabel}
	results := make([]*eraResult, len(labels))
	g, _ := errgroup.WithContext(ctx)
	for i, label := range labels {
		g.Go(func() error {
			res, err := p.runEra(reg, accums[label], true)
			if err != nil {
				return eris.Wrapf(err, "pipeline: era %s", label)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	early := results[0]
	late := results[1]

	crossEra := reconcile.CrossEra(early.combined, late.combined)
	if err := writeCrossEra(p.outPath("cross_era_summary.csv"),
		p.cfg.Eras.EarlyLabel, p.cfg.Eras.LateLabel, crossEra); err != nil {
		return err
	}
	p.log.Record("reconcile", "both_eras", len(crossEra))

	if err := p.converge(early.combined, late.combined, crossEra, xlsxExport); err != nil {
		return err
	}

	if err := writeModelSummaries(p.outPath("model_summary.csv"),
		[]adjust.Summary{early.summary, late.summary}); err != nil {
		return err
	}
	all := append(append([]model.AdjustedRecord{}, early.adjusted...), late.adjusted...)
	if err := writeAdjustmentSummary(p.outPath("adjustment_summary.csv"), summarizeAdjustment(all)); err != nil {
		return err
	}

	return p.log.Write(p.outPath("run_diagnostics.csv"))
}

// converge loads the signal catalog, scores convergence, and writes the
// full and flagged tables.
func (p *Pipeline) converge(early, late []model.OutlierRecord, crossEra []model.CrossEraRecord, xlsxExport bool) error {
	started := time.Now()

	cat, err := converge.LoadCatalog(p.cfg.Signals.CatalogPath)
	if err != nil {
		return eris.Wrap(err, "pipeline: load signal catalog")
	}
	signals, skipped, err := converge.LoadSignals(cat, p.cfg.Signals.Dir)
	if err != nil {
		return err
	}
	for _, name := range skipped {
		p.log.Record("converge", "skipped_signal", name)
	}

	scored := converge.Score(early, late, crossEra, signals, cat.CategoryPrecedence)
	flagged := converge.Flagged(scored)

	header, rows := convergenceTable(scored, cat)
	if err := tabular.Write(p.outPath("convergence.csv"), header, rows); err != nil {
		return err
	}
	flaggedHeader, flaggedRows := convergenceTable(flagged, cat)
	if err := tabular.Write(p.outPath("convergence_flagged.csv"), flaggedHeader, flaggedRows); err != nil {
		return err
	}
	if xlsxExport {
		if err := tabular.WriteXLSX(p.outPath("convergence_flagged.xlsx"), "flagged", flaggedHeader, flaggedRows); err != nil {
			return err
		}
	}

	p.log.Record("converge", "providers", len(scored))
	p.log.Record("converge", "flagged", len(flagged))
	p.log.StageDone("converge", started)
	return nil
}

// RunBenchmark runs only the per-era benchmarking, classification, and
// rollups.
func (p *Pipeline) RunBenchmark(ctx context.Context) error {
	zap.L().Info(Disclaimer)

	reg, err := registry.Load(p.cfg.Registry.RegistryPath, p.cfg.Registry.TaxonomyPath, p.cfg.Registry.Encoding)
	if err != nil {
		return eris.Wrap(err, "pipeline: load registry")
	}
	accums, err := p.scan(ctx)
	if err != nil {
		return err
	}

	g, _ := errgroup.WithContext(ctx)
	for _, label := range []string{p.cfg.Eras.EarlyLabel, p.cfg.Eras.LateLabel} {
		g.Go(func() error {
			if _, err := p.runEra(reg, accums[label], false); err != nil {
				return eris.Wrapf(err, "pipeline: era %s", label)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return p.log.Write(p.outPath("run_diagnostics.csv"))
}

// RunAdjust re-scores existing per-era provider tables against the
// covariate model. The provider tables are mandatory upstream artifacts.
func (p *Pipeline) RunAdjust(ctx context.Context) error {
	accums, err := p.scan(ctx)
	if err != nil {
		return err
	}

	var summaries []adjust.Summary
	var all []model.AdjustedRecord
	for _, label := range []string{p.cfg.Eras.EarlyLabel, p.cfg.Eras.LateLabel} {
		records, err := p.requireOutliers(label, "adjust")
		if err != nil {
			return err
		}

		adjusted, summary, err := adjust.Fit(records, accums[label].profiles.Profiles(), label, p.cfg.Adjust)
		if err != nil {
			return err
		}
		if err := writeAdjusted(p.outPath(fmt.Sprintf("adjusted_%s.csv", label)), adjusted); err != nil {
			return err
		}
		summaries = append(summaries, summary)
		all = append(all, adjusted...)
	}

	if err := writeModelSummaries(p.outPath("model_summary.csv"), summaries); err != nil {
		return err
	}
	return writeAdjustmentSummary(p.outPath("adjustment_summary.csv"), summarizeAdjustment(all))
}

// RunReconcile builds the cross-era summary from existing per-era tables.
func (p *Pipeline) RunReconcile(_ context.Context) error {
	early, err := p.requireOutliers(p.cfg.Eras.EarlyLabel, "reconcile")
	if err != nil {
		return err
	}
	late, err := p.requireOutliers(p.cfg.Eras.LateLabel, "reconcile")
	if err != nil {
		return err
	}

	crossEra := reconcile.CrossEra(early, late)
	return writeCrossEra(p.outPath("cross_era_summary.csv"),
		p.cfg.Eras.EarlyLabel, p.cfg.Eras.LateLabel, crossEra)
}

// RunConverge scores convergence from existing per-era tables and the
// signal catalog. A missing cross-era summary is an optional signal and
// is skipped with a warning; missing provider tables abort.
func (p *Pipeline) RunConverge(_ context.Context, xlsxExport bool) error {
	early, err := p.requireOutliers(p.cfg.Eras.EarlyLabel, "converge")
	if err != nil {
		return err
	}
	late, err := p.requireOutliers(p.cfg.Eras.LateLabel, "converge")
	if err != nil {
		return err
	}

	crossEraPath := p.outPath("cross_era_summary.csv")
	crossEra, err := readCrossEraNPIs(crossEraPath)
	if err != nil {
		if !os.IsNotExist(eris.Cause(err)) {
			return err
		}
		zap.L().Warn("converge: cross-era summary missing, persistence signal skipped",
			zap.String("path", crossEraPath))
		p.log.Record("converge", "skipped_signal", converge.CrossEraSignal)
		crossEra = nil
	}

	if err := p.converge(early, late, crossEra, xlsxExport); err != nil {
		return err
	}
	return p.log.Write(p.outPath("run_diagnostics.csv"))
}

// requireOutliers loads a mandatory per-era provider table, naming the
// artifact and requesting stage on failure.
func (p *Pipeline) requireOutliers(label, stage string) ([]model.OutlierRecord, error) {
	path := p.outPath(fmt.Sprintf("providers_%s.csv", label))
	records, err := readOutliers(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: %s stage requires %s (run benchmark first)", stage, path)
	}
	return records, nil
}
