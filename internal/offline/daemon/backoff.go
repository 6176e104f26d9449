package daemon

import "time"

// calculateBackoff returns base·2^failures, capped at max.
func calculateBackoff(failures int, base, max time.Duration) time.Duration {
	if failures < 0 {
		failures = 0
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
