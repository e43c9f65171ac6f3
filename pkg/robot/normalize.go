package robot

import (
	"math"

	"github.com/gwillem/ssc32/pkg/ssc32"
)

// Range is the pulse width range a normalized value maps onto.
type Range struct {
	Min int
	Max int
}

// RangeOf returns the pulse limits of a channel.
func RangeOf(ch *ssc32.Channel) Range {
	min, max := ch.Limits()
	return Range{Min: min, Max: max}
}

// Normalize converts a pulse width to a normalized value in the range [-100, 100].
func (r Range) Normalize(pw int) float64 {
	rangeSize := float64(r.Max - r.Min)
	if rangeSize == 0 {
		return 0
	}
	return (float64(pw-r.Min)/rangeSize)*200 - 100
}

// Denormalize converts a normalized value [-100, 100] to a pulse width.
func (r Range) Denormalize(norm float64) int {
	norm = math.Max(-100, math.Min(100, norm))
	rangeSize := float64(r.Max - r.Min)
	return int(math.Round((norm+100)/200*rangeSize)) + r.Min
}
