// Package tabular reads and writes the pipeline's flat table artifacts.
// Writers are atomic (temp file + rename) so a failed stage never leaves a
// partially-written artifact behind, and never corrupts a prior stage's
// output.
package tabular

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Write writes a CSV artifact with the given header and rows. The file is
// staged next to the destination and renamed into place on success.
func Write(path string, header []string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "tabular: create output dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "tabular: stage %s", path)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "tabular: write header %s", path)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			tmp.Close()
			return eris.Wrapf(err, "tabular: write row %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "tabular: flush %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "tabular: close %s", path)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "tabular: publish %s", path)
	}
	return nil
}

// WriteXLSX writes the same table as a single-sheet XLSX workbook, for
// investigator-facing exports.
func WriteXLSX(path, sheetName string, header []string, rows [][]string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "tabular: add sheet %s", sheetName)
	}

	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().Value = h
	}
	for _, row := range rows {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().Value = v
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "tabular: create output dir for %s", path)
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "tabular: save %s", path)
	}
	return nil
}

// Fmt renders a float with shortest round-trip formatting so re-runs on an
// unchanged snapshot produce byte-identical artifacts.
func Fmt(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FmtInt renders an integer column value.
func FmtInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// FmtBool renders a boolean column value.
func FmtBool(b bool) string {
	return strconv.FormatBool(b)
}
