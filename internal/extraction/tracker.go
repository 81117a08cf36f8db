package extraction

// bestTracker keeps a running maximum with a strictly-greater gate: ties do
// not count as improvement, so the earliest checkpoint at a given accuracy
// wins. The zero value starts the bar at 0, matching the convention that a
// model which never beats zero accuracy is never promoted.
type bestTracker struct {
	best  float64
	count int
}

// Improved reports whether value beats the current best, updating it if so.
func (t *bestTracker) Improved(value float64) bool {
	if value > t.best {
		t.best = value
		t.count++
		return true
	}
	return false
}

// Best returns the current maximum.
func (t *bestTracker) Best() float64 {
	return t.best
}

// Promotions returns how many times the bar was raised.
func (t *bestTracker) Promotions() int {
	return t.count
}
