package series

import "math"

// BackFill replaces each NaN with the next valid value. Trailing NaNs stay.
func BackFill(f Float) Float {
	out := f.Clone()
	next := math.NaN()
	for i := len(out) - 1; i >= 0; i-- {
		if math.IsNaN(out[i]) {
			out[i] = next
		} else {
			next = out[i]
		}
	}
	return out
}

// ForwardFill replaces each NaN with the previous valid value. Leading
// NaNs stay.
func ForwardFill(f Float) Float {
	out := f.Clone()
	prev := math.NaN()
	for i := range out {
		if math.IsNaN(out[i]) {
			out[i] = prev
		} else {
			prev = out[i]
		}
	}
	return out
}

// InterpolateLinear fills interior NaN runs by straight-line interpolation
// between the surrounding valid values, treating frames as equally spaced.
// Leading and trailing NaNs are left for BackFill / ForwardFill.
func InterpolateLinear(f Float) Float {
	out := f.Clone()
	last := -1
	for i, v := range out {
		if math.IsNaN(v) {
			continue
		}
		if last >= 0 && i-last > 1 {
			x0, x1 := out[last], v
			span := float64(i - last)
			for j := last + 1; j < i; j++ {
				out[j] = x0 + (x1-x0)*float64(j-last)/span
			}
		}
		last = i
	}
	return out
}

// FillNaN replaces every remaining NaN with v.
func FillNaN(f Float, v float64) Float {
	out := f.Clone()
	for i, x := range out {
		if math.IsNaN(x) {
			out[i] = v
		}
	}
	return out
}

// AllNaN reports whether f has no valid value.
func AllNaN(f Float) bool {
	for _, v := range f {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}
