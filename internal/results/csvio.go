package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/banshee-data/behaviour.report/internal/series"
)

const frameHeader = "frame"

// WriteCSV writes one row per frame: the frame number followed by every
// measure in insertion order. The header names measures "individual/name".
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	rec := make([]string, len(t.measures)+1)
	rec[0] = frameHeader
	for i, m := range t.measures {
		rec[i+1] = m.String()
	}
	if err := cw.Write(rec); err != nil {
		return err
	}
	for r, frame := range t.Frames {
		rec[0] = strconv.Itoa(frame)
		for i, v := range t.values {
			rec[i+1] = formatValue(v[r])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadCSV reads a table written by WriteCSV. Every measure is read as
// quantitative; callers decide which ones are flags.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("results: read header: %w", err)
	}
	if len(header) == 0 || header[0] != frameHeader {
		return nil, fmt.Errorf("results: first column is not %q", frameHeader)
	}
	measures := make([]Measure, len(header)-1)
	for i, h := range header[1:] {
		if measures[i], err = ParseMeasure(h); err != nil {
			return nil, err
		}
	}

	var frames []int
	cols := make([]series.Float, len(measures))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("results: read row %d: %w", line, err)
		}
		frame, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("results: row %d: invalid frame %q", line, rec[0])
		}
		frames = append(frames, frame)
		for i := range cols {
			v := math.NaN()
			if s := rec[i+1]; s != "" {
				if v, err = strconv.ParseFloat(s, 64); err != nil {
					return nil, fmt.Errorf("results: row %d column %s: %w", line, measures[i], err)
				}
			}
			cols[i] = append(cols[i], v)
		}
	}

	t := New(frames)
	for i, m := range measures {
		col := cols[i]
		if col == nil {
			col = series.Float{}
		}
		if err := t.Add(m, col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// BoutRow is one bout of one boolean measure in a bout CSV.
type BoutRow struct {
	Individual string `csv:"individual"`
	Measure    string `csv:"measure"`
	Start      int    `csv:"start"`
	Stop       int    `csv:"stop"`
	Duration   int    `csv:"duration"`
}

// BoutRows flattens the bout tables of every boolean measure, in measure
// order.
func BoutRows(t *Table) []*BoutRow {
	var rows []*BoutRow
	for _, m := range t.measures {
		for _, b := range t.bouts[m] {
			rows = append(rows, &BoutRow{
				Individual: m.Individual,
				Measure:    m.Name,
				Start:      b.Start,
				Stop:       b.Stop,
				Duration:   b.Duration,
			})
		}
	}
	return rows
}

// WriteBoutsCSV writes BoutRows(t) with a header row.
func WriteBoutsCSV(w io.Writer, t *Table) error {
	rows := BoutRows(t)
	if rows == nil {
		rows = []*BoutRow{}
	}
	return gocsv.Marshal(rows, w)
}

// ReadBoutsCSV reads a bout CSV written by WriteBoutsCSV.
func ReadBoutsCSV(r io.Reader) ([]*BoutRow, error) {
	var rows []*BoutRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("results: read bouts: %w", err)
	}
	return rows, nil
}

// WriteFile creates path and writes to it with write.
func WriteFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// ReadCSVFile reads a results table from disk.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
