// Package keypoints holds pose-tracking keypoint tables: per-frame x, y and
// likelihood values addressed by (individual, bodypart, field).
package keypoints

import (
	"fmt"

	"github.com/banshee-data/behaviour.report/internal/outcome"
)

// Field is one coordinate of a tracked keypoint.
type Field string

const (
	FieldX          Field = "x"
	FieldY          Field = "y"
	FieldLikelihood Field = "likelihood"
)

// Fields lists the fields of every keypoint in file order.
var Fields = []Field{FieldX, FieldY, FieldLikelihood}

// SingleIndividual is the reserved individual that carries arena corners
// and identity markings rather than an animal.
const SingleIndividual = "single"

// DefaultIndividual names the animal in single-animal files that carry no
// individuals header row.
const DefaultIndividual = "individual1"

// ColumnKey addresses one column of a Table.
type ColumnKey struct {
	Individual string
	Bodypart   string
	Field      Field
}

func (k ColumnKey) String() string {
	return k.Individual + "/" + k.Bodypart + "/" + string(k.Field)
}

// Schema is the ordered column layout of a Table with an index from key to
// column position, built once.
type Schema struct {
	keys  []ColumnKey
	index map[ColumnKey]int
}

// NewSchema builds a schema over keys. Duplicate keys are rejected.
func NewSchema(keys []ColumnKey) (*Schema, error) {
	s := &Schema{
		keys:  make([]ColumnKey, len(keys)),
		index: make(map[ColumnKey]int, len(keys)),
	}
	copy(s.keys, keys)
	for i, k := range keys {
		if _, dup := s.index[k]; dup {
			return nil, fmt.Errorf("keypoints: duplicate column %s", k)
		}
		s.index[k] = i
	}
	return s, nil
}

// SchemaFor builds the full x/y/likelihood layout for the given
// individuals and bodyparts, individual-major.
func SchemaFor(individuals, bodyparts []string) *Schema {
	keys := make([]ColumnKey, 0, len(individuals)*len(bodyparts)*len(Fields))
	for _, ind := range individuals {
		for _, bp := range bodyparts {
			for _, f := range Fields {
				keys = append(keys, ColumnKey{ind, bp, f})
			}
		}
	}
	s, _ := NewSchema(keys)
	return s
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.keys) }

// Keys returns a copy of the column keys in order.
func (s *Schema) Keys() []ColumnKey {
	out := make([]ColumnKey, len(s.keys))
	copy(out, s.keys)
	return out
}

// Key returns the key of column i.
func (s *Schema) Key(i int) ColumnKey { return s.keys[i] }

// Index returns the column position of k.
func (s *Schema) Index(k ColumnKey) (int, bool) {
	i, ok := s.index[k]
	return i, ok
}

// Individuals returns the animals in first-seen order, excluding
// SingleIndividual.
func (s *Schema) Individuals() []string {
	var out []string
	seen := map[string]bool{}
	for _, k := range s.keys {
		if k.Individual == SingleIndividual || seen[k.Individual] {
			continue
		}
		seen[k.Individual] = true
		out = append(out, k.Individual)
	}
	return out
}

// Bodyparts returns the bodyparts of individual in first-seen order.
func (s *Schema) Bodyparts(individual string) []string {
	var out []string
	seen := map[string]bool{}
	for _, k := range s.keys {
		if k.Individual != individual || seen[k.Bodypart] {
			continue
		}
		seen[k.Bodypart] = true
		out = append(out, k.Bodypart)
	}
	return out
}

// HasIndividual reports whether any column belongs to individual.
func (s *Schema) HasIndividual(individual string) bool {
	for _, k := range s.keys {
		if k.Individual == individual {
			return true
		}
	}
	return false
}

// HasBodypart reports whether individual has both x and y columns for
// bodypart.
func (s *Schema) HasBodypart(individual, bodypart string) bool {
	_, okX := s.index[ColumnKey{individual, bodypart, FieldX}]
	_, okY := s.index[ColumnKey{individual, bodypart, FieldY}]
	return okX && okY
}

// CheckBodyparts returns a ConfigurationError naming the first bodypart in
// bodyparts that individual lacks. op names the calling operation.
func (s *Schema) CheckBodyparts(op, individual string, bodyparts []string) error {
	if !s.HasIndividual(individual) {
		return outcome.Configf(op, individual, "individual not found in keypoints")
	}
	if len(bodyparts) == 0 {
		return outcome.Configf(op, individual, "no bodyparts configured")
	}
	for _, bp := range bodyparts {
		if !s.HasBodypart(individual, bp) {
			return outcome.Configf(op, bp, "bodypart not found for individual %q", individual)
		}
	}
	return nil
}
