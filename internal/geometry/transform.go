package geometry

import (
	"fmt"
	"strconv"
)

// DefaultPlateSize is the build plate of the Bambu Lab X1/P1 series in millimeters
var DefaultPlateSize = [2]float64{256, 256}

// BuildTranslationTransform creates a simple translation transformation matrix (no rotation)
func BuildTranslationTransform(tx, ty, tz float64) string {
	return fmt.Sprintf("1 0 0 0 1 0 0 0 1 %s %s %s", formatCoord(tx), formatCoord(ty), formatCoord(tz))
}

// PlateTransform centers an object on the build plate and drops its lowest
// point onto the plate surface.
func PlateTransform(plate [2]float64, zmin float64) string {
	return BuildTranslationTransform(plate[0]/2, plate[1]/2, -zmin)
}

// formatCoord prints the shortest representation and never "-0"
func formatCoord(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
