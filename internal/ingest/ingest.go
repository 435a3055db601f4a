// Package ingest loads the two input tables, survey sites and satellite
// patches, from delimited files. Loaders stream CSV (plain or gzipped, with
// optional legacy-charset translation) and read XLSX workbooks whole. Rows
// missing a required field or carrying an out-of-range value are dropped and
// counted, never fatal; repeated identifiers collapse to the first occurrence.
package ingest

import (
	"compress/gzip"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Stats counts what happened to the rows of one input table.
type Stats struct {
	Rows       int // data rows read, header excluded
	Loaded     int
	Malformed  int // dropped: missing required field or out-of-range value
	Duplicates int // dropped: identifier already seen
}

// rowReader yields one table row at a time; io.EOF ends the stream.
// *csv.Reader satisfies it directly.
type rowReader interface {
	Read() ([]string, error)
}

// sliceRows adapts fully-materialized XLSX rows to the streaming interface.
type sliceRows struct {
	rows [][]string
	next int
}

func (s *sliceRows) Read() ([]string, error) {
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.next]
	s.next++
	return row, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openRows opens path as a stream of string rows, dispatching on extension.
func openRows(path, charset string) (rowReader, io.Closer, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".xlsx") {
		rows, err := readXLSX(path)
		if err != nil {
			return nil, nil, err
		}
		return &sliceRows{rows: rows}, nopCloser{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: open input")
	}
	var r io.Reader = f
	if strings.HasSuffix(lower, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			f.Close()
			return nil, nil, eris.Wrap(err, "ingest: open gzip")
		}
		r = zr
	}
	r, err = decodeReader(r, charset)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader, f, nil
}

// headerIndex maps trimmed column names to positions. A UTF-8 BOM on the
// first cell is stripped so the leading column still resolves by name.
func headerIndex(header []string) map[string]int {
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.TrimSpace(strings.TrimPrefix(col, "﻿"))] = i
	}
	return colIdx
}

// requireColumns verifies the named columns exist in the header.
func requireColumns(colIdx map[string]int, prefix string, cols ...string) error {
	for _, col := range cols {
		if _, ok := colIdx[col]; !ok {
			return eris.Errorf("%s: missing required column %q", prefix, col)
		}
	}
	return nil
}

// getCol safely retrieves a column value from a row.
func getCol(row []string, colIdx map[string]int, col string) string {
	idx, ok := colIdx[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseCoord parses a coordinate and rejects NaN and out-of-range values.
func parseCoord(s string, min, max float64) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: parse coordinate")
	}
	if math.IsNaN(v) || v < min || v > max {
		return 0, eris.Errorf("ingest: coordinate %g outside [%g, %g]", v, min, max)
	}
	return v, nil
}
