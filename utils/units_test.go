package utils

import (
	"testing"
	"time"
)

func TestIntervalFromHz(t *testing.T) {
	cases := []struct {
		hz   float64
		want time.Duration
	}{
		{1.0, time.Second},
		{5.0, 200 * time.Millisecond},
		{15.0, time.Second / 15},
	}
	for _, c := range cases {
		if got := IntervalFromHz(c.hz); got != c.want {
			t.Errorf("IntervalFromHz(%v): got %v, want %v", c.hz, got, c.want)
		}
	}
}

func TestIntervalFromSeconds(t *testing.T) {
	cases := []struct {
		seconds float64
		want    time.Duration
	}{
		{0.2, 200 * time.Millisecond},
		{1.0, time.Second},
		{0.05, 50 * time.Millisecond},
	}
	for _, c := range cases {
		if got := IntervalFromSeconds(c.seconds); got != c.want {
			t.Errorf("IntervalFromSeconds(%v): got %v, want %v", c.seconds, got, c.want)
		}
	}
}
