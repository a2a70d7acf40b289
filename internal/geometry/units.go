package geometry

import "math"

// UnitsPerInch is the number of fixed-point linear units (EMU) in one inch.
const UnitsPerInch = 914400

// ToInches converts linear units to inches. Zero and negative values are
// accepted; negative offsets show up for text baselines.
func ToInches(units int64) float64 {
	return float64(units) / UnitsPerInch
}

// ToUnits converts inches to linear units, rounding half away from zero.
func ToUnits(inches float64) int64 {
	return int64(math.Round(inches * UnitsPerInch))
}

// InchesToPixels converts inches to device pixels at the given DPI.
func InchesToPixels(inches float64, dpi float64) int {
	return int(math.Round(inches * dpi))
}
