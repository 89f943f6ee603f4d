package vote

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/behaviour.report/internal/outcome"
	"github.com/banshee-data/behaviour.report/internal/series"
)

func framesFrom(first, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = first + i
	}
	return out
}

func TestAggregateWindowOneIsIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for trial := 0; trial < 100; trial++ {
		n := r.Intn(30)
		s := make(series.Bool, n)
		for i := range s {
			s[i] = r.Intn(2) == 1
		}
		d, err := Aggregate(s, framesFrom(r.Intn(100), n), 1)
		require.NoError(t, err)
		assert.Equal(t, s, d.Current)
		assert.Equal(t, s, d.Rolling)
		assert.Equal(t, s, d.Binned)
	}
}

func TestRollingMajority(t *testing.T) {
	tests := []struct {
		name   string
		in     []int
		window int
		want   []int
	}{
		{
			name:   "window three",
			in:     []int{1, 1, 0, 0, 1, 1, 1, 0},
			window: 3,
			// windows: [1] [1,1] [1,1,0] [1,0,0] [0,0,1] [0,1,1] [1,1,1] [1,1,0]
			want: []int{1, 1, 1, 0, 0, 1, 1, 1},
		},
		{
			name:   "ties resolve to false",
			in:     []int{1, 0, 1, 0},
			window: 2,
			want:   []int{1, 0, 0, 0},
		},
		{
			name:   "truncated start window",
			in:     []int{0, 1, 1, 1},
			window: 4,
			// [0] [0,1] [0,1,1] [0,1,1,1]
			want: []int{0, 0, 1, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RollingMajority(series.FromInts(tt.in), tt.window)
			assert.Equal(t, tt.want, got.Ints())
		})
	}
}

func TestBinnedMajorityUsesAbsoluteFrames(t *testing.T) {
	// frames 8..15 with width 4: bins [8,12) and [12,16)
	s := series.FromInts([]int{1, 1, 1, 0, 0, 0, 1, 0})
	got := BinnedMajority(s, framesFrom(8, 8), 4)
	assert.Equal(t, []int{1, 1, 1, 1, 0, 0, 0, 0}, got.Ints())

	// frames 10..17 with width 4: bins [8,12) partial, [12,16), [16,20) partial
	s = series.FromInts([]int{1, 0, 1, 1, 1, 0, 1, 1})
	got = BinnedMajority(s, framesFrom(10, 8), 4)
	// bin [8,12): frames 10,11 -> 1,0 tie -> false
	// bin [12,16): frames 12..15 -> 1,1,1,0 -> true
	// bin [16,20): frames 16,17 -> 1,1 -> true
	assert.Equal(t, []int{0, 0, 1, 1, 1, 1, 1, 1}, got.Ints())
}

func TestBinnedIsPiecewiseConstant(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	s := make(series.Bool, 97)
	for i := range s {
		s[i] = r.Intn(2) == 1
	}
	frames := framesFrom(13, len(s))
	got := BinnedMajority(s, frames, 10)
	for i := 1; i < len(s); i++ {
		if frames[i]/10 == frames[i-1]/10 {
			require.Equal(t, got[i-1], got[i], "frames %d and %d share a bin", frames[i-1], frames[i])
		}
	}
}

func TestAggregateErrors(t *testing.T) {
	_, err := Aggregate(series.Bool{true}, []int{0}, 0)
	require.Error(t, err)
	assert.True(t, outcome.IsConfigurationError(err))

	_, err = Aggregate(series.Bool{true, false}, []int{0}, 2)
	require.Error(t, err)
}

func TestSelectAndParse(t *testing.T) {
	s := series.FromInts([]int{1, 0, 0, 1, 1})
	d, err := Aggregate(s, framesFrom(0, 5), 2)
	require.NoError(t, err)

	for _, m := range ValidMetrics {
		parsed, err := ParseMetric(string(m))
		require.NoError(t, err)
		v, err := d.Select(parsed)
		require.NoError(t, err)
		assert.Len(t, v, 5)
	}

	cur, _ := d.Select(MetricCurrent)
	assert.Equal(t, s, cur)

	_, err = ParseMetric("median")
	assert.True(t, outcome.IsConfigurationError(err))
	_, err = d.Select(Metric("median"))
	assert.True(t, outcome.IsConfigurationError(err))
}

func TestBinOfNegativeFrames(t *testing.T) {
	assert.Equal(t, -1, binOf(-1, 4))
	assert.Equal(t, -1, binOf(-4, 4))
	assert.Equal(t, -2, binOf(-5, 4))
	assert.Equal(t, 0, binOf(3, 4))
	assert.Equal(t, 1, binOf(4, 4))
}
