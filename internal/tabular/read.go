package tabular

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// Reader streams rows from a CSV artifact. The required columns are
// validated against the header when the file is opened, so a schema
// mismatch fails up front naming the file and the missing column.
type Reader struct {
	path string
	f    *os.File
	cr   *csv.Reader
	idx  map[string]int
}

// Open opens a CSV artifact and validates that every required column is
// present in its header.
func Open(path string, required []string) (*Reader, error) {
	return OpenEncoded(path, "", required)
}

// OpenEncoded opens a CSV file written in the named character encoding
// (any IANA name, e.g. "windows-1252"). Registry exports are frequently
// not UTF-8. An empty encoding reads the bytes as-is.
func OpenEncoded(path, encoding string, required []string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: open %s", path)
	}

	var src io.Reader = f
	if encoding != "" {
		enc, err := htmlindex.Get(encoding)
		if err != nil {
			f.Close()
			return nil, eris.Wrapf(err, "tabular: %s: unsupported encoding %q", path, encoding)
		}
		src = enc.NewDecoder().Reader(f)
	}

	cr := csv.NewReader(src)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		f.Close()
		return nil, eris.Wrapf(err, "tabular: read header of %s", path)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			f.Close()
			return nil, eris.Errorf("tabular: %s: missing required column %q", path, col)
		}
	}

	return &Reader{path: path, f: f, cr: cr, idx: idx}, nil
}

// Next returns the next record, or io.EOF when the file is exhausted.
func (r *Reader) Next() ([]string, error) {
	record, err := r.cr.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: read %s", r.path)
	}
	return record, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Col returns the named column of a record, or "" when the column is
// absent from the header (callers validated required columns at Open).
func (r *Reader) Col(record []string, name string) string {
	i, ok := r.idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

// Float parses the named column as a float64.
func (r *Reader) Float(record []string, name string) (float64, error) {
	s := r.Col(record, name)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "tabular: %s: column %q: parse float %q", r.path, name, s)
	}
	return v, nil
}

// Int parses the named column as an int64.
func (r *Reader) Int(record []string, name string) (int64, error) {
	s := r.Col(record, name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "tabular: %s: column %q: parse int %q", r.path, name, s)
	}
	return v, nil
}

// Bool parses the named column as a boolean.
func (r *Reader) Bool(record []string, name string) (bool, error) {
	s := r.Col(record, name)
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, eris.Wrapf(err, "tabular: %s: column %q: parse bool %q", r.path, name, s)
	}
	return v, nil
}
