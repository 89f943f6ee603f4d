package bouts

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/behaviour.report/internal/series"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want []Bout
	}{
		{
			name: "mixed runs",
			in:   []int{1, 1, 0, 0, 1, 0, 1, 1, 1},
			want: []Bout{{0, 1, 2}, {4, 4, 1}, {6, 8, 3}},
		},
		{name: "empty", in: nil, want: nil},
		{name: "all false", in: []int{0, 0, 0}, want: nil},
		{name: "all true", in: []int{1, 1, 1, 1}, want: []Bout{{0, 3, 4}}},
		{
			name: "alternating",
			in:   []int{1, 0, 1, 0, 1},
			want: []Bout{{0, 0, 1}, {2, 2, 1}, {4, 4, 1}},
		},
		{name: "single frame", in: []int{1}, want: []Bout{{0, 0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPositions(series.FromInts(tt.in))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractPositions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractUsesFrameNumbers(t *testing.T) {
	frames := []int{100, 101, 102, 103, 104}
	got := Extract(series.FromInts([]int{0, 1, 1, 0, 1}), frames)
	want := []Bout{{101, 102, 2}, {104, 104, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, TotalFrames(got))
}

func randomSeries(r *rand.Rand, n int) series.Bool {
	s := make(series.Bool, n)
	for i := range s {
		s[i] = r.Intn(3) > 0
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		s := randomSeries(r, r.Intn(40))
		first := r.Intn(50)
		frames := make([]int, len(s))
		for i := range frames {
			frames[i] = first + i
		}
		got := ToSeries(Extract(s, frames), first, len(s))
		if diff := cmp.Diff(s, got); diff != "" {
			t.Fatalf("trial %d round trip mismatch (-want +got):\n%s", trial, diff)
		}
	}
}

func TestMergeShortGapsExample(t *testing.T) {
	in := series.FromInts([]int{0, 0, 1, 1, 1, 0, 0, 1, 0, 1, 1, 1, 1})
	want := []int{0, 0, 1, 1, 1, 0, 0, 1, 1, 1, 1, 1, 1}

	got := MergeShortGaps(in, 2)
	assert.Equal(t, want, got.Ints())
	// input untouched
	assert.Equal(t, 0, in.Ints()[8])
}

func TestMergeShortGapsEdges(t *testing.T) {
	// leading and trailing gaps are gaps too
	got := MergeShortGaps(series.FromInts([]int{0, 1, 1, 0, 0, 0, 1, 0}), 2)
	assert.Equal(t, []int{1, 1, 1, 0, 0, 0, 1, 1}, got.Ints())

	// threshold zero leaves everything alone
	in := series.FromInts([]int{0, 1, 0})
	assert.Equal(t, in.Ints(), MergeShortGaps(in, 0).Ints())

	assert.Empty(t, MergeShortGaps(nil, 3))
}

func TestMergeShortGapsProperties(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for trial := 0; trial < 200; trial++ {
		s := randomSeries(r, 1+r.Intn(60))
		k := r.Intn(6)

		once := MergeShortGaps(s, k)
		twice := MergeShortGaps(once, k)
		require.Equal(t, once, twice, "merge is idempotent (trial %d, k=%d)", trial, k)

		for _, gap := range ExtractPositions(once.Not()) {
			require.GreaterOrEqual(t, gap.Duration, k, "no short gap remains (trial %d)", trial)
		}

		for kk := 0; kk <= k; kk++ {
			smaller := MergeShortGaps(s, kk)
			for i := range s {
				if smaller[i] {
					require.True(t, once[i], "k=%d result is a superset of k=%d (trial %d)", k, kk, trial)
				}
			}
		}

		for i := range s {
			if s[i] {
				require.True(t, once[i], "original true frames are kept")
			}
		}
	}
}

func TestDropShortBouts(t *testing.T) {
	in := make([]int, 20)
	for i := 10; i <= 14; i++ {
		in[i] = 1
	}
	// a 5 frame bout against a 6 frame minimum is discarded
	got := DropShortBouts(series.FromInts(in), 6)
	assert.Equal(t, 0, got.Count())

	// and kept at a 5 frame minimum
	got = DropShortBouts(series.FromInts(in), 5)
	assert.Equal(t, 5, got.Count())

	mixed := series.FromInts([]int{1, 0, 1, 1, 1, 0, 1, 1})
	assert.Equal(t, []int{0, 0, 1, 1, 1, 0, 0, 0}, DropShortBouts(mixed, 3).Ints())
}
