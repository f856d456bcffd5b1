package job

import (
	"fmt"
	"math"
)

// Progress is the displayed completion of a run.
type Progress struct {
	Completed int
	Total     int
}

// Fraction returns completion in [0, 1]. A zero total is treated as one.
func (p Progress) Fraction() float64 {
	total := p.Total
	if total <= 0 {
		total = 1
	}
	f := float64(p.Completed) / float64(total)
	return math.Max(0, math.Min(1, f))
}

// Percent returns the rounded completion percentage, clamped to [0, 100].
func (p Progress) Percent() int {
	return int(math.Round(p.Fraction() * 100))
}

// Label renders the "completed/total" counter.
func (p Progress) Label() string {
	return fmt.Sprintf("%d/%d", p.Completed, p.Total)
}
