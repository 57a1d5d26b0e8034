package pipeline

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/aegis-analytics/claimscreen/internal/adjust"
	"github.com/aegis-analytics/claimscreen/internal/converge"
	"github.com/aegis-analytics/claimscreen/internal/model"
	"github.com/aegis-analytics/claimscreen/internal/rollup"
	"github.com/aegis-analytics/claimscreen/internal/tabular"
)

// outlierColumns is the schema contract of the per-era provider tables.
var outlierColumns = []string{
	"npi", "provider_name", "state", "specialty", "classification",
	"provider_type", "entity_type", "code_family", "era",
	"total_claims", "total_paid", "pwi",
	"median_pwi", "p95_pwi", "std_pwi", "peer_count",
	"z_score", "abs_deviation", "est_excess", "est_excess_clipped",
	"bene_claim_ratio", "is_outlier", "above_p95",
}

func outlierRow(r model.OutlierRecord) []string {
	return []string{
		r.NPI, r.Name, r.State, r.Specialty, r.Class,
		r.ProviderType, r.EntityType, r.CodeFamily, r.Era,
		tabular.FmtInt(r.TotalClaims), tabular.Fmt(r.TotalPaid), tabular.Fmt(r.PWI),
		tabular.Fmt(r.MedianPWI), tabular.Fmt(r.P95PWI), tabular.Fmt(r.StdPWI), tabular.FmtInt(int64(r.PeerCount)),
		tabular.Fmt(r.ZScore), tabular.Fmt(r.AbsDeviation), tabular.Fmt(r.EstExcess), tabular.Fmt(r.EstExcessClipped),
		tabular.Fmt(r.BeneClaimRatio), tabular.FmtBool(r.IsOutlier), tabular.FmtBool(r.AboveP95),
	}
}

func writeOutliers(path string, records []model.OutlierRecord) error {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = outlierRow(r)
	}
	return tabular.Write(path, outlierColumns, rows)
}

// readOutliers loads a per-era provider table back for the standalone
// adjust/reconcile/converge commands.
func readOutliers(path string) ([]model.OutlierRecord, error) {
	r, err := tabular.Open(path, outlierColumns)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []model.OutlierRecord
	for {
		record, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		var rec model.OutlierRecord
		rec.NPI = r.Col(record, "npi")
		rec.Name = r.Col(record, "provider_name")
		rec.State = r.Col(record, "state")
		rec.Provider.Specialty = r.Col(record, "specialty")
		rec.Class = r.Col(record, "classification")
		rec.ProviderType = r.Col(record, "provider_type")
		rec.EntityType = r.Col(record, "entity_type")
		rec.CodeFamily = r.Col(record, "code_family")
		rec.Era = r.Col(record, "era")
		rec.Cohort = rec.Specialty

		if rec.TotalClaims, err = r.Int(record, "total_claims"); err != nil {
			return nil, err
		}
		if rec.TotalPaid, err = r.Float(record, "total_paid"); err != nil {
			return nil, err
		}
		if rec.PWI, err = r.Float(record, "pwi"); err != nil {
			return nil, err
		}
		if rec.MedianPWI, err = r.Float(record, "median_pwi"); err != nil {
			return nil, err
		}
		if rec.P95PWI, err = r.Float(record, "p95_pwi"); err != nil {
			return nil, err
		}
		if rec.StdPWI, err = r.Float(record, "std_pwi"); err != nil {
			return nil, err
		}
		peers, err := r.Int(record, "peer_count")
		if err != nil {
			return nil, err
		}
		rec.PeerCount = int(peers)
		if rec.ZScore, err = r.Float(record, "z_score"); err != nil {
			return nil, err
		}
		if rec.AbsDeviation, err = r.Float(record, "abs_deviation"); err != nil {
			return nil, err
		}
		if rec.EstExcess, err = r.Float(record, "est_excess"); err != nil {
			return nil, err
		}
		if rec.EstExcessClipped, err = r.Float(record, "est_excess_clipped"); err != nil {
			return nil, err
		}
		if rec.BeneClaimRatio, err = r.Float(record, "bene_claim_ratio"); err != nil {
			return nil, err
		}
		if rec.IsOutlier, err = r.Bool(record, "is_outlier"); err != nil {
			return nil, err
		}
		if rec.AboveP95, err = r.Bool(record, "above_p95"); err != nil {
			return nil, err
		}

		out = append(out, rec)
	}
}

var adjustedExtra = []string{
	"code_diversity", "family_ratio", "new_patient_ratio", "log_volume",
	"residual", "adj_z_score", "adj_is_outlier", "movement",
}

func writeAdjusted(path string, records []model.AdjustedRecord) error {
	header := append(append([]string{}, outlierColumns...), adjustedExtra...)
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = append(outlierRow(r.OutlierRecord),
			tabular.Fmt(r.CodeDiversity), tabular.Fmt(r.FamilyRatio),
			tabular.Fmt(r.NewPatientRatio), tabular.Fmt(r.LogVolume),
			tabular.Fmt(r.Residual), tabular.Fmt(r.AdjZScore),
			tabular.FmtBool(r.AdjIsOutlier), string(r.Movement),
		)
	}
	return tabular.Write(path, header, rows)
}

func writeCrossEra(path, earlyLabel, lateLabel string, records []model.CrossEraRecord) error {
	header := []string{
		"npi", "provider_name", "state", "specialty",
		earlyLabel + "_z_score", earlyLabel + "_excess", earlyLabel + "_claims",
		lateLabel + "_z_score", lateLabel + "_excess", lateLabel + "_claims",
	}
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.NPI, r.Name, r.State, r.Specialty,
			tabular.Fmt(r.EarlyZScore), tabular.Fmt(r.EarlyExcess), tabular.FmtInt(r.EarlyClaims),
			tabular.Fmt(r.LateZScore), tabular.Fmt(r.LateExcess), tabular.FmtInt(r.LateClaims),
		}
	}
	return tabular.Write(path, header, rows)
}

// readCrossEraNPIs recovers the persisted cross-era identity set for the
// standalone converge command.
func readCrossEraNPIs(path string) ([]model.CrossEraRecord, error) {
	r, err := tabular.Open(path, []string{"npi"})
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []model.CrossEraRecord
	for {
		record, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if npi := r.Col(record, "npi"); npi != "" {
			out = append(out, model.CrossEraRecord{NPI: npi})
		}
	}
}

func convergenceTable(records []model.ConvergenceRecord, cat *converge.Catalog) ([]string, [][]string) {
	header := []string{
		"npi", "provider_name", "state", "specialty", "provider_type",
		"primary_era", "code_family", "total_claims", "z_score",
		"est_excess_clipped", "bene_claim_ratio",
	}
	for _, sig := range cat.Signals {
		header = append(header, "sig_"+sig.Name)
	}
	header = append(header, "sig_"+converge.CrossEraSignal)
	for _, c := range cat.CategoryPrecedence {
		header = append(header, c+"_count")
	}
	header = append(header, "signal_type_count", "total_signal_count")

	rows := make([][]string, len(records))
	for i, r := range records {
		row := []string{
			r.NPI, r.Name, r.State, r.Specialty, r.ProviderType,
			r.PrimaryEra, r.CodeFamily, tabular.FmtInt(r.TotalClaims), tabular.Fmt(r.ZScore),
			tabular.Fmt(r.ExcessClipped), tabular.Fmt(r.BeneClaimRatio),
		}
		for _, sig := range cat.Signals {
			row = append(row, tabular.FmtBool(r.Signals[sig.Name]))
		}
		row = append(row, tabular.FmtBool(r.Signals[converge.CrossEraSignal]))
		for _, c := range cat.CategoryPrecedence {
			row = append(row, fmt.Sprintf("%d", r.CategoryCounts[c]))
		}
		row = append(row, fmt.Sprintf("%d", r.SignalTypeCount), fmt.Sprintf("%d", r.TotalSignalCount))
		rows[i] = row
	}
	return header, rows
}

var rollupColumns = func(key string) []string {
	return []string{
		key, "provider_count", "avg_pwi", "net_excess",
		"avg_excess_per_provider", "outlier_count", "outlier_pct",
	}
}

func writeRollup(path, key string, rows []rollup.Row) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.Key, tabular.FmtInt(int64(r.ProviderCount)), tabular.Fmt(r.AvgPWI), tabular.Fmt(r.NetExcess),
			tabular.Fmt(r.AvgExcess), tabular.FmtInt(int64(r.OutlierCount)), tabular.Fmt(r.OutlierPercent),
		}
	}
	return tabular.Write(path, rollupColumns(key), out)
}

func writeModelSummaries(path string, summaries []adjust.Summary) error {
	header := []string{"era", "providers", "imputed", "r_squared"}
	for _, name := range adjust.CovariateNames {
		header = append(header, "coef_"+name)
	}

	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		row := []string{
			s.Era, tabular.FmtInt(int64(s.Providers)), tabular.FmtInt(int64(s.Imputed)), tabular.Fmt(s.RSquared),
		}
		// An empty-input fit carries no coefficients; pad so every row
		// matches the header width.
		for j := range adjust.CovariateNames {
			if j < len(s.Coefficients) {
				row = append(row, tabular.Fmt(s.Coefficients[j].Value))
			} else {
				row = append(row, "")
			}
		}
		rows[i] = row
	}
	return tabular.Write(path, header, rows)
}

type adjustmentCounts struct {
	era        string
	codeFamily string
	total      int
	raw        int
	adjusted   int
	movements  map[model.Movement]int
}

func summarizeAdjustment(records []model.AdjustedRecord) []adjustmentCounts {
	byKey := make(map[string]*adjustmentCounts)
	var order []string
	for _, r := range records {
		key := r.Era + "\x00" + r.CodeFamily
		c, ok := byKey[key]
		if !ok {
			c = &adjustmentCounts{
				era:        r.Era,
				codeFamily: r.CodeFamily,
				movements:  make(map[model.Movement]int),
			}
			byKey[key] = c
			order = append(order, key)
		}
		c.total++
		if r.IsOutlier {
			c.raw++
		}
		if r.AdjIsOutlier {
			c.adjusted++
		}
		c.movements[r.Movement]++
	}

	out := make([]adjustmentCounts, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

func writeAdjustmentSummary(path string, counts []adjustmentCounts) error {
	header := []string{
		"era", "code_family", "total_providers", "raw_outliers", "adj_outliers",
		"persistent", "explained", "unmasked", "normal",
	}
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{
			c.era, c.codeFamily,
			tabular.FmtInt(int64(c.total)), tabular.FmtInt(int64(c.raw)), tabular.FmtInt(int64(c.adjusted)),
			tabular.FmtInt(int64(c.movements[model.MovementPersistent])),
			tabular.FmtInt(int64(c.movements[model.MovementExplained])),
			tabular.FmtInt(int64(c.movements[model.MovementUnmasked])),
			tabular.FmtInt(int64(c.movements[model.MovementNormal])),
		}
	}
	return tabular.Write(path, header, rows)
}

func (p *Pipeline) outPath(name string) string {
	return filepath.Join(p.cfg.Output.Dir, name)
}
