package questions

import (
	"fmt"
	"math/rand/v2"
)

// maxDedupRetries bounds the redraw loop when a drawn operand pair
// collides with the user's history. After exhaustion the last draw is
// accepted even if it is a duplicate; the operand space for a level can
// be smaller than the history.
const maxDedupRetries = 50

// Params holds one synthesized division problem.
type Params struct {
	Dividend  int
	Divisor   int
	Quotient  int
	Remainder int
}

// Signature returns the canonical dedup key for the operand pair.
func (p Params) Signature() string {
	return fmt.Sprintf("%d÷%d", p.Dividend, p.Divisor)
}

// AnswerString returns the canonical answer text: the quotient, with
// " r<remainder>" appended when the remainder is nonzero.
func (p Params) AnswerString() string {
	if p.Remainder != 0 {
		return fmt.Sprintf("%d r%d", p.Quotient, p.Remainder)
	}
	return fmt.Sprintf("%d", p.Quotient)
}

// drawParams draws one operand pair from the band for the given level.
func drawParams(rng *rand.Rand, level int) Params {
	b := bandForLevel(level)

	divisor := b.DivisorMin + rng.IntN(b.DivisorMax-b.DivisorMin+1)
	quotient := b.QuotientMin + rng.IntN(b.QuotientMax-b.QuotientMin+1)
	remainder := 0
	if b.AllowRemainder {
		remainder = rng.IntN(divisor)
	}

	return Params{
		Dividend:  divisor*quotient + remainder,
		Divisor:   divisor,
		Quotient:  quotient,
		Remainder: remainder,
	}
}

// synthesize draws operand pairs until one misses the attempted
// signature set, bounded by maxDedupRetries. The final draw is returned
// regardless of collision once the budget is exhausted.
func synthesize(rng *rand.Rand, level int, attempted map[string]bool) Params {
	var p Params
	for i := 0; i <= maxDedupRetries; i++ {
		p = drawParams(rng, level)
		if !attempted[p.Signature()] {
			return p
		}
	}
	return p
}
