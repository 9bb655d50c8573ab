package utils

// Clamp keeps v inside [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Regularity scores how close two lengths are to each other as a ratio in
// [0, 1]. Equal lengths score 1.0; a degenerate pair scores 0.
func Regularity(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a < b {
		return a / b
	}
	return b / a
}
