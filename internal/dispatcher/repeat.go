package dispatcher

import "math"

// repeatForCount mirrors §4.2: a count-based press simply repeats the
// base+repeat unit count times.
func repeatForCount(count int) int {
	if count < 1 {
		return 1
	}
	return count
}

// repeatForHold computes <repeat> for a press_and_hold targeting
// durationMs, per §4.5.
func repeatForHold(baseMs, repeatMs float64, durationMs int) int {
	d := float64(durationMs)
	if repeatMs > 0 {
		r := int(math.Ceil((d-baseMs)/repeatMs)) + 1
		return max(1, r)
	}
	if baseMs <= 0 {
		return 1
	}
	return max(1, int(math.Round(d/baseMs)))
}
