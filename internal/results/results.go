// Package results collects the per-frame outputs of the analyses and
// classifiers for one experiment: named measures aligned to the keypoint
// frames, bout tables for boolean measures, and summary statistics.
package results

import (
	"fmt"
	"strings"

	"github.com/banshee-data/behaviour.report/internal/bouts"
	"github.com/banshee-data/behaviour.report/internal/series"
)

// Measure names one output column, e.g. {mouse1, SpeedMMperSec}.
type Measure struct {
	Individual string
	Name       string
}

func (m Measure) String() string { return m.Individual + "/" + m.Name }

// ParseMeasure parses the "individual/name" form produced by String.
func ParseMeasure(s string) (Measure, error) {
	i := strings.LastIndex(s, "/")
	if i <= 0 || i == len(s)-1 {
		return Measure{}, fmt.Errorf("results: malformed measure %q (want individual/name)", s)
	}
	return Measure{Individual: s[:i], Name: s[i+1:]}, nil
}

// Table holds measures aligned to Frames. Boolean measures are stored as
// 0/1 values and carry a bout table.
type Table struct {
	Frames []int

	measures []Measure
	index    map[Measure]int
	values   []series.Float
	bouts    map[Measure][]bouts.Bout
}

// New returns an empty table over frames.
func New(frames []int) *Table {
	return &Table{
		Frames: append([]int(nil), frames...),
		index:  map[Measure]int{},
		bouts:  map[Measure][]bouts.Bout{},
	}
}

// Len returns the number of frames.
func (t *Table) Len() int { return len(t.Frames) }

// Measures returns the measures in insertion order.
func (t *Table) Measures() []Measure {
	return append([]Measure(nil), t.measures...)
}

// Add appends a quantitative measure.
func (t *Table) Add(m Measure, v series.Float) error {
	if len(v) != len(t.Frames) {
		return fmt.Errorf("results: measure %s has %d values for %d frames", m, len(v), len(t.Frames))
	}
	if _, dup := t.index[m]; dup {
		return fmt.Errorf("results: duplicate measure %s", m)
	}
	t.index[m] = len(t.measures)
	t.measures = append(t.measures, m)
	t.values = append(t.values, v.Clone())
	return nil
}

// AddFlag appends a boolean measure and records its bouts in frame numbers.
func (t *Table) AddFlag(m Measure, s series.Bool) error {
	if err := t.Add(m, s.Floats()); err != nil {
		return err
	}
	t.bouts[m] = bouts.Extract(s, t.Frames)
	return nil
}

// Get returns the values of m.
func (t *Table) Get(m Measure) (series.Float, bool) {
	i, ok := t.index[m]
	if !ok {
		return nil, false
	}
	return t.values[i], true
}

// Bouts returns the bout table of a boolean measure.
func (t *Table) Bouts(m Measure) ([]bouts.Bout, bool) {
	b, ok := t.bouts[m]
	return b, ok
}

// IsFlag reports whether m was added as a boolean measure.
func (t *Table) IsFlag(m Measure) bool {
	_, ok := t.bouts[m]
	return ok
}

// Merge appends every measure of other. Both tables must share frames.
func (t *Table) Merge(other *Table) error {
	if len(other.Frames) != len(t.Frames) || (len(t.Frames) > 0 && other.Frames[0] != t.Frames[0]) {
		return fmt.Errorf("results: cannot merge tables over different frames")
	}
	for i, m := range other.measures {
		if err := t.Add(m, other.values[i]); err != nil {
			return err
		}
		if b, ok := other.bouts[m]; ok {
			t.bouts[m] = b
		}
	}
	return nil
}
