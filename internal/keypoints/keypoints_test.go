package keypoints

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/series"
)

const twoMiceCSV = `scorer,dlc,dlc,dlc,dlc,dlc,dlc,dlc,dlc,dlc
individuals,mouse1,mouse1,mouse1,mouse2,mouse2,mouse2,single,single,single
bodyparts,nose,nose,nose,nose,nose,nose,mark,mark,mark
coords,x,y,likelihood,x,y,likelihood,x,y,likelihood
0,1,2,0.9,10,20,0.8,5,5,1
1,2,3,0.95,,21,0.1,5,5,1
2,3,4,0.99,12,22,0.7,5,5,1
`

func TestReadCSV(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(twoMiceCSV))
	require.NoError(t, err)

	assert.Equal(t, "dlc", tbl.Scorer)
	assert.Equal(t, []int{0, 1, 2}, tbl.Frames)
	assert.Equal(t, []string{"mouse1", "mouse2"}, tbl.Schema.Individuals())
	assert.Equal(t, []string{"nose"}, tbl.Schema.Bodyparts("mouse2"))
	assert.True(t, tbl.Schema.HasIndividual(SingleIndividual))

	x, err := tbl.Column(ColumnKey{"mouse2", "nose", FieldX})
	require.NoError(t, err)
	if diff := cmp.Diff(series.Float{10, math.NaN(), 12}, x, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("mouse2 nose x mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(twoMiceCSV))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "kp.csv")
	require.NoError(t, WriteCSVFile(path, tbl))
	back, err := ReadCSVFile(path)
	require.NoError(t, err)

	if diff := cmp.Diff(tbl.Columns, back.Columns, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, tbl.Schema.Keys(), back.Schema.Keys())
	assert.Equal(t, tbl.Frames, back.Frames)
}

func TestReadCSVSingleAnimal(t *testing.T) {
	in := "scorer,dlc,dlc,dlc\nbodyparts,tail,tail,tail\ncoords,x,y,likelihood\n7,1,1,1\n8,2,2,1\n"
	tbl, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultIndividual}, tbl.Schema.Individuals())
	assert.Equal(t, []int{7, 8}, tbl.Frames)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Contains(t, buf.String(), "individuals,individual1,individual1,individual1\n")
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing scorer", "bodyparts,a\ncoords,x\n0,1\n"},
		{"unknown coord", "scorer,s\nbodyparts,a\ncoords,z\n0,1\n"},
		{"bad value", "scorer,s\nbodyparts,a\ncoords,x\n0,abc\n"},
		{"gap in frames", "scorer,s\nbodyparts,a\ncoords,x\n0,1\n2,1\n"},
		{"duplicate column", "scorer,s,s\nbodyparts,a,a\ncoords,x,x\n0,1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestSliceIsInclusive(t *testing.T) {
	schema := SchemaFor([]string{"m"}, []string{"nose"})
	tbl := NewTable(schema, ContiguousFrames(10, 10))
	col, _ := tbl.Column(ColumnKey{"m", "nose", FieldX})
	for i := range col {
		col[i] = float64(i)
	}

	got, err := tbl.Slice(12, 15)
	require.NoError(t, err)
	assert.Equal(t, []int{12, 13, 14, 15}, got.Frames)
	gotX, _ := got.Column(ColumnKey{"m", "nose", FieldX})
	assert.Equal(t, series.Float{2, 3, 4, 5}, gotX)

	// the slice owns its data
	gotX[0] = 100
	assert.Equal(t, 2.0, col[2])

	_, err = tbl.Slice(5, 4)
	assert.Error(t, err)
}

func TestCentroidAndChecks(t *testing.T) {
	schema := SchemaFor([]string{"m"}, []string{"a", "b"})
	tbl := NewTable(schema, ContiguousFrames(0, 2))
	set := func(bp string, f Field, v ...float64) {
		c, err := tbl.Column(ColumnKey{"m", bp, f})
		require.NoError(t, err)
		copy(c, v)
	}
	set("a", FieldX, 0, 2)
	set("a", FieldY, 0, 2)
	set("b", FieldX, 4, math.NaN())
	set("b", FieldY, 4, math.NaN())

	x, y, err := tbl.Centroid("m", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, series.Float{2, 2}, x)
	assert.Equal(t, series.Float{2, 2}, y)

	_, _, err = tbl.Centroid("m", []string{"tail"})
	assert.True(t, outcome.IsConfigurationError(err))

	assert.NoError(t, schema.CheckBodyparts("speed", "m", []string{"a"}))
	assert.True(t, outcome.IsConfigurationError(schema.CheckBodyparts("speed", "rat", []string{"a"})))
	assert.True(t, outcome.IsConfigurationError(schema.CheckBodyparts("speed", "m", []string{"c"})))
	assert.True(t, outcome.IsConfigurationError(schema.CheckBodyparts("speed", "m", nil)))
}

func TestCloneIsDeep(t *testing.T) {
	tbl := NewTable(SchemaFor([]string{"m"}, []string{"a"}), ContiguousFrames(0, 3))
	c := tbl.Clone()
	c.Columns[0][0] = 1
	c.Frames[0] = 99
	assert.True(t, math.IsNaN(tbl.Columns[0][0]))
	assert.Equal(t, 0, tbl.Frames[0])
	assert.NoError(t, tbl.Validate())
}
