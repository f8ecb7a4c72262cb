// Package median computes the median of a degree tally.
package median

import "slices"

// Valuer is anything that can hand out its current values. window.Tally
// satisfies it.
type Valuer interface {
	Values() []int
}

// Of returns the median of values and false if values is empty.
//
// For an even count the result is the mean of the two central values, so it
// may be a half-integer. values is not modified.
func Of(values []int) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	if n%2 == 1 {
		return float64(sorted[n/2]), true
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2, true
}

// Engine recomputes the median of a Valuer on demand.
//
// Nothing is cached: every call reads the source afresh, so two calls with
// no mutation in between always agree.
type Engine struct {
	src Valuer
}

// NewEngine returns an Engine reading from src.
func NewEngine(src Valuer) *Engine {
	return &Engine{src: src}
}

// Median returns the current median and false when the source is empty.
func (e *Engine) Median() (float64, bool) {
	return Of(e.src.Values())
}
