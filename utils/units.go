package utils

import "time"

// IntervalFromHz converts a polling rate to a ticker interval.
func IntervalFromHz(hz float64) time.Duration {
	if hz <= 0 {
		panic("hz must be positive")
	}
	return time.Duration(1.0 / hz * float64(time.Second))
}

// IntervalFromSeconds converts a period in seconds to a ticker interval.
func IntervalFromSeconds(seconds float64) time.Duration {
	if seconds <= 0 {
		panic("seconds must be positive")
	}
	return time.Duration(seconds * float64(time.Second))
}
