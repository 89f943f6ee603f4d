// Package series holds the per-frame vector types shared by the analysis
// stages and the small set of element-wise operations they need.
//
// All functions return new slices; inputs are never modified.
package series

import "math"

// Float is a real-valued per-frame series. NaN marks a missing value.
type Float []float64

// Bool is a per-frame boolean series.
type Bool []bool

// NaNs returns a Float of length n filled with NaN.
func NaNs(n int) Float {
	out := make(Float, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// FromInts converts a 0/1 vector into a Bool; any non-zero value is true.
func FromInts(v []int) Bool {
	out := make(Bool, len(v))
	for i, x := range v {
		out[i] = x != 0
	}
	return out
}

// Ints converts a Bool into a 0/1 vector.
func (b Bool) Ints() []int {
	out := make([]int, len(b))
	for i, x := range b {
		if x {
			out[i] = 1
		}
	}
	return out
}

// Floats converts a Bool into a 0/1 Float.
func (b Bool) Floats() Float {
	out := make(Float, len(b))
	for i, x := range b {
		if x {
			out[i] = 1
		}
	}
	return out
}

// Not returns the element-wise complement.
func (b Bool) Not() Bool {
	out := make(Bool, len(b))
	for i, x := range b {
		out[i] = !x
	}
	return out
}

// Count returns the number of true frames.
func (b Bool) Count() int {
	n := 0
	for _, x := range b {
		if x {
			n++
		}
	}
	return n
}

// Clone returns a copy.
func (b Bool) Clone() Bool {
	out := make(Bool, len(b))
	copy(out, b)
	return out
}

// Clone returns a copy.
func (f Float) Clone() Float {
	out := make(Float, len(f))
	copy(out, f)
	return out
}

// Scale multiplies every element by k.
func (f Float) Scale(k float64) Float {
	out := make(Float, len(f))
	for i, x := range f {
		out[i] = x * k
	}
	return out
}

// Less returns f[i] < thresh per frame. NaN compares false.
func (f Float) Less(thresh float64) Bool {
	out := make(Bool, len(f))
	for i, x := range f {
		out[i] = x < thresh
	}
	return out
}

// Greater returns f[i] > thresh per frame. NaN compares false.
func (f Float) Greater(thresh float64) Bool {
	out := make(Bool, len(f))
	for i, x := range f {
		out[i] = x > thresh
	}
	return out
}

// GreaterThan returns a[i] > b[i] per frame. NaN on either side compares
// false. Both series must have the same length.
func GreaterThan(a, b Float) Bool {
	out := make(Bool, len(a))
	for i := range a {
		out[i] = a[i] > b[i]
	}
	return out
}

// Diff returns f[i] - f[i-1]; the first element is NaN.
func Diff(f Float) Float {
	out := NaNs(len(f))
	for i := 1; i < len(f); i++ {
		out[i] = f[i] - f[i-1]
	}
	return out
}

// Hypot returns sqrt(dx^2 + dy^2) per frame.
func Hypot(dx, dy Float) Float {
	out := make(Float, len(dx))
	for i := range dx {
		out[i] = math.Sqrt(dx[i]*dx[i] + dy[i]*dy[i])
	}
	return out
}

// RowNaNMean returns, for every frame, the mean of the non-NaN values
// across cols. A frame where every column is NaN yields NaN.
func RowNaNMean(cols ...Float) Float {
	if len(cols) == 0 {
		return nil
	}
	n := len(cols[0])
	out := make(Float, n)
	for i := 0; i < n; i++ {
		sum, cnt := 0.0, 0
		for _, c := range cols {
			if v := c[i]; !math.IsNaN(v) {
				sum += v
				cnt++
			}
		}
		if cnt == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(cnt)
		}
	}
	return out
}

// All returns, per frame, whether every column is true.
func All(cols ...Bool) Bool {
	if len(cols) == 0 {
		return nil
	}
	out := make(Bool, len(cols[0]))
	for i := range out {
		v := true
		for _, c := range cols {
			if !c[i] {
				v = false
				break
			}
		}
		out[i] = v
	}
	return out
}

// NaNMean returns the mean of the non-NaN values, or NaN if there are none.
func NaNMean(f Float) float64 {
	sum, cnt := 0.0, 0
	for _, v := range f {
		if !math.IsNaN(v) {
			sum += v
			cnt++
		}
	}
	if cnt == 0 {
		return math.NaN()
	}
	return sum / float64(cnt)
}

// DropNaN returns the non-NaN values in order.
func DropNaN(f Float) []float64 {
	out := make([]float64, 0, len(f))
	for _, v := range f {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
