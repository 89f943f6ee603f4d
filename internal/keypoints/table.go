package keypoints

import (
	"fmt"

	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/series"
)

// Table is a column-major keypoint table. Frames holds the contiguous,
// ascending frame number of each row and Columns[i] holds the values of
// Schema.Key(i). Missing values are NaN.
type Table struct {
	Scorer  string
	Schema  *Schema
	Frames  []int
	Columns []series.Float
}

// NewTable allocates a table over frames with every value NaN.
func NewTable(schema *Schema, frames []int) *Table {
	t := &Table{
		Schema:  schema,
		Frames:  append([]int(nil), frames...),
		Columns: make([]series.Float, schema.Len()),
	}
	for i := range t.Columns {
		t.Columns[i] = series.NaNs(len(frames))
	}
	return t
}

// ContiguousFrames returns first, first+1, ..., first+n-1.
func ContiguousFrames(first, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = first + i
	}
	return out
}

// Len returns the number of frames.
func (t *Table) Len() int { return len(t.Frames) }

// FirstFrame returns the frame number of row 0, or 0 for an empty table.
func (t *Table) FirstFrame() int {
	if len(t.Frames) == 0 {
		return 0
	}
	return t.Frames[0]
}

// Column returns the backing slice of column k. Callers that keep or change
// it must Clone first.
func (t *Table) Column(k ColumnKey) (series.Float, error) {
	i, ok := t.Schema.Index(k)
	if !ok {
		return nil, outcome.Configf("keypoints", k.String(), "column not found")
	}
	return t.Columns[i], nil
}

// XY returns the x and y columns of one bodypart.
func (t *Table) XY(individual, bodypart string) (x, y series.Float, err error) {
	if x, err = t.Column(ColumnKey{individual, bodypart, FieldX}); err != nil {
		return nil, nil, err
	}
	if y, err = t.Column(ColumnKey{individual, bodypart, FieldY}); err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// Centroid returns the per-frame NaN-ignoring mean position of bodyparts.
func (t *Table) Centroid(individual string, bodyparts []string) (x, y series.Float, err error) {
	xs := make([]series.Float, 0, len(bodyparts))
	ys := make([]series.Float, 0, len(bodyparts))
	for _, bp := range bodyparts {
		bx, by, err := t.XY(individual, bp)
		if err != nil {
			return nil, nil, err
		}
		xs = append(xs, bx)
		ys = append(ys, by)
	}
	return series.RowNaNMean(xs...), series.RowNaNMean(ys...), nil
}

// Clone returns a deep copy. The schema is shared since it is immutable.
func (t *Table) Clone() *Table {
	c := &Table{
		Scorer:  t.Scorer,
		Schema:  t.Schema,
		Frames:  append([]int(nil), t.Frames...),
		Columns: make([]series.Float, len(t.Columns)),
	}
	for i, col := range t.Columns {
		c.Columns[i] = col.Clone()
	}
	return c
}

// Slice returns a copy of the rows whose frame numbers lie in the
// inclusive range [start, stop].
func (t *Table) Slice(start, stop int) (*Table, error) {
	if start > stop {
		return nil, fmt.Errorf("keypoints: start frame %d is after stop frame %d", start, stop)
	}
	lo, hi := 0, len(t.Frames)
	for lo < hi && t.Frames[lo] < start {
		lo++
	}
	for hi > lo && t.Frames[hi-1] > stop {
		hi--
	}
	c := &Table{
		Scorer:  t.Scorer,
		Schema:  t.Schema,
		Frames:  append([]int(nil), t.Frames[lo:hi]...),
		Columns: make([]series.Float, len(t.Columns)),
	}
	for i, col := range t.Columns {
		c.Columns[i] = col[lo:hi].Clone()
	}
	return c, nil
}

// Validate checks that frames are contiguous and ascending and that every
// column has one value per frame.
func (t *Table) Validate() error {
	if t.Schema == nil {
		return fmt.Errorf("keypoints: table has no schema")
	}
	if len(t.Columns) != t.Schema.Len() {
		return fmt.Errorf("keypoints: %d columns for a schema of %d", len(t.Columns), t.Schema.Len())
	}
	for i := 1; i < len(t.Frames); i++ {
		if t.Frames[i] != t.Frames[i-1]+1 {
			return fmt.Errorf("keypoints: frame %d follows frame %d", t.Frames[i], t.Frames[i-1])
		}
	}
	for i, col := range t.Columns {
		if len(col) != len(t.Frames) {
			return fmt.Errorf("keypoints: column %s has %d values for %d frames", t.Schema.Key(i), len(col), len(t.Frames))
		}
	}
	return nil
}
