package keypoints

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/banshee-data/behaviour.report/internal/series"
)

// Header row labels of a pose-estimation CSV file.
const (
	rowScorer      = "scorer"
	rowIndividuals = "individuals"
	rowBodyparts   = "bodyparts"
	rowCoords      = "coords"
)

// ReadCSV parses a pose-estimation CSV: header rows scorer, individuals,
// bodyparts and coords, then one row per frame whose first cell is the
// frame number. Files without an individuals row are read as a single
// animal named DefaultIndividual. Empty cells become NaN.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)

	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	schema, err := NewSchema(header.keys)
	if err != nil {
		return nil, err
	}

	var frames []int
	cols := make([]series.Float, len(header.keys))
	for line := header.lines + 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("keypoints: read row %d: %w", line, err)
		}
		frame, err := parseFrame(rec[0])
		if err != nil {
			return nil, fmt.Errorf("keypoints: row %d: %w", line, err)
		}
		frames = append(frames, frame)
		for i := range cols {
			v, err := parseValue(rec[i+1])
			if err != nil {
				return nil, fmt.Errorf("keypoints: row %d column %s: %w", line, header.keys[i], err)
			}
			cols[i] = append(cols[i], v)
		}
	}

	t := &Table{Scorer: header.scorer, Schema: schema, Frames: frames, Columns: cols}
	for i := range t.Columns {
		if t.Columns[i] == nil {
			t.Columns[i] = series.Float{}
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

type csvHeader struct {
	scorer string
	keys   []ColumnKey
	lines  int
}

func readHeader(cr *csv.Reader) (csvHeader, error) {
	var h csvHeader
	next := func(want ...string) ([]string, string, error) {
		rec, err := cr.Read()
		if err != nil {
			return nil, "", fmt.Errorf("keypoints: read header row %d: %w", h.lines+1, err)
		}
		h.lines++
		for _, w := range want {
			if rec[0] == w {
				return rec[1:], w, nil
			}
		}
		return nil, "", fmt.Errorf("keypoints: header row %d is %q, want %q", h.lines, rec[0], want[0])
	}

	scorers, _, err := next(rowScorer)
	if err != nil {
		return h, err
	}
	var individuals, bodyparts, coords []string
	row, label, err := next(rowIndividuals, rowBodyparts)
	if err != nil {
		return h, err
	}
	if label == rowIndividuals {
		individuals = row
		if bodyparts, _, err = next(rowBodyparts); err != nil {
			return h, err
		}
	} else {
		bodyparts = row
	}
	if coords, _, err = next(rowCoords); err != nil {
		return h, err
	}

	if len(bodyparts) != len(coords) {
		return h, fmt.Errorf("keypoints: %d bodypart labels for %d coords", len(bodyparts), len(coords))
	}
	if individuals == nil {
		individuals = make([]string, len(coords))
		for i := range individuals {
			individuals[i] = DefaultIndividual
		}
	}
	if len(individuals) != len(coords) {
		return h, fmt.Errorf("keypoints: %d individual labels for %d coords", len(individuals), len(coords))
	}
	if len(scorers) > 0 {
		h.scorer = scorers[0]
	}

	h.keys = make([]ColumnKey, len(coords))
	for i := range coords {
		f := Field(coords[i])
		switch f {
		case FieldX, FieldY, FieldLikelihood:
		default:
			return h, fmt.Errorf("keypoints: unknown coord %q in column %d", coords[i], i+1)
		}
		h.keys[i] = ColumnKey{Individual: individuals[i], Bodypart: bodyparts[i], Field: f}
	}
	return h, nil
}

func parseFrame(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid frame number %q", s)
	}
	return int(f), nil
}

func parseValue(s string) (float64, error) {
	switch s {
	case "", "nan", "NaN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteCSV writes t in the four-header-row layout read by ReadCSV.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	n := t.Schema.Len()
	header := [4][]string{
		make([]string, 0, n+1),
		make([]string, 0, n+1),
		make([]string, 0, n+1),
		make([]string, 0, n+1),
	}
	header[0] = append(header[0], rowScorer)
	header[1] = append(header[1], rowIndividuals)
	header[2] = append(header[2], rowBodyparts)
	header[3] = append(header[3], rowCoords)
	for _, k := range t.Schema.keys {
		header[0] = append(header[0], t.Scorer)
		header[1] = append(header[1], k.Individual)
		header[2] = append(header[2], k.Bodypart)
		header[3] = append(header[3], string(k.Field))
	}
	for _, rec := range header {
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	rec := make([]string, n+1)
	for r, frame := range t.Frames {
		rec[0] = strconv.Itoa(frame)
		for i, col := range t.Columns {
			rec[i+1] = formatValue(col[r])
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

// ReadCSVFile reads a keypoints file from disk.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadCSV(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteCSVFile writes t to path, replacing any existing file.
func WriteCSVFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := WriteCSV(bw, t); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
