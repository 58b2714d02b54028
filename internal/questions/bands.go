package questions

// band describes the operand distribution for a span of levels. Divisor
// and quotient are drawn uniformly from their ranges; when remainders
// are allowed, a remainder in [0, divisor) is drawn as well and the
// dividend becomes divisor*quotient + remainder.
type band struct {
	MinLevel       int
	MaxLevel       int
	DivisorMin     int
	DivisorMax     int
	QuotientMin    int
	QuotientMax    int
	AllowRemainder bool
}

// bands covers levels 1-10 in five contiguous spans. Ranges widen and
// remainders appear as levels increase.
var bands = []band{
	{MinLevel: 1, MaxLevel: 2, DivisorMin: 2, DivisorMax: 5, QuotientMin: 1, QuotientMax: 9},
	{MinLevel: 3, MaxLevel: 4, DivisorMin: 2, DivisorMax: 9, QuotientMin: 2, QuotientMax: 12},
	{MinLevel: 5, MaxLevel: 6, DivisorMin: 3, DivisorMax: 12, QuotientMin: 5, QuotientMax: 20, AllowRemainder: true},
	{MinLevel: 7, MaxLevel: 8, DivisorMin: 6, DivisorMax: 15, QuotientMin: 10, QuotientMax: 50, AllowRemainder: true},
	{MinLevel: 9, MaxLevel: 10, DivisorMin: 11, DivisorMax: 25, QuotientMin: 20, QuotientMax: 99, AllowRemainder: true},
}

// bandForLevel returns the band containing level. Levels outside [1,10]
// clamp to the nearest band.
func bandForLevel(level int) band {
	for _, b := range bands {
		if level >= b.MinLevel && level <= b.MaxLevel {
			return b
		}
	}
	if level < 1 {
		return bands[0]
	}
	return bands[len(bands)-1]
}
