package converge

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/aegis-analytics/claimscreen/internal/tabular"
)

// SignalSet is a loaded signal: its declaration plus the provider identity
// set it reduces to.
type SignalSet struct {
	Signal
	Members map[string]bool
}

// LoadSignals loads every catalog signal's identity set. Signal files are
// optional upstream artifacts: a missing file is skipped with a warning
// and reported back, never a hard failure. Any other read error aborts.
func LoadSignals(cat *Catalog, baseDir string) ([]SignalSet, []string, error) {
	var sets []SignalSet
	var skipped []string

	for _, sig := range cat.Signals {
		path := sig.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		members, err := loadIDSet(path, sig.IDColumn)
		if err != nil {
			if os.IsNotExist(eris.Cause(err)) {
				zap.L().Warn("converge: signal file missing, skipping",
					zap.String("signal", sig.Name),
					zap.String("path", path))
				skipped = append(skipped, sig.Name)
				continue
			}
			return nil, nil, eris.Wrapf(err, "converge: load signal %q", sig.Name)
		}

		zap.L().Info("converge: signal loaded",
			zap.String("signal", sig.Name),
			zap.String("category", sig.Category),
			zap.Int("members", len(members)))

		sets = append(sets, SignalSet{Signal: sig, Members: members})
	}
	return sets, skipped, nil
}

// loadIDSet reduces a signal table to its set of provider identities.
// XLSX workbooks and CSVs are both accepted.
func loadIDSet(path, idColumn string) (map[string]bool, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return loadIDSetXLSX(path, idColumn)
	}
	return loadIDSetCSV(path, idColumn)
}

func loadIDSetCSV(path, idColumn string) (map[string]bool, error) {
	r, err := tabular.Open(path, []string{idColumn})
	if err != nil {
		return nil, err
	}
	defer r.Close()

	members := make(map[string]bool)
	for {
		record, err := r.Next()
		if err == io.EOF {
			return members, nil
		}
		if err != nil {
			return nil, err
		}
		if id := r.Col(record, idColumn); id != "" {
			members[id] = true
		}
	}
}

func loadIDSetXLSX(path, idColumn string) (map[string]bool, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "converge: stat %s", path)
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "converge: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("converge: %s: workbook has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("converge: %s: first sheet is empty", path)
	}

	col := -1
	for i, cell := range sheet.Rows[0].Cells {
		if strings.EqualFold(strings.TrimSpace(cell.String()), idColumn) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, eris.Errorf("converge: %s: missing required column %q", path, idColumn)
	}

	members := make(map[string]bool)
	for _, row := range sheet.Rows[1:] {
		if col >= len(row.Cells) {
			continue
		}
		if id := strings.TrimSpace(row.Cells[col].String()); id != "" {
			members[id] = true
		}
	}
	return members, nil
}
