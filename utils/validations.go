package utils

import "fmt"

// ValidatePositive returns a configuration error when v is not strictly
// positive.
func ValidatePositive(name string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%s must be greater than 0, got %v", name, v)
	}
	return nil
}

// ValidateUnitInterval returns a configuration error when v is outside
// [0, 1].
func ValidateUnitInterval(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
	}
	return nil
}

// ValidateOrdered returns a configuration error when lo is not strictly
// below hi.
func ValidateOrdered(loName string, lo float64, hiName string, hi float64) error {
	if lo >= hi {
		return fmt.Errorf("%s must be less than %s, got %v >= %v", loName, hiName, lo, hi)
	}
	return nil
}
