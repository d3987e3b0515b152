package backoff

import (
	"testing"
	"time"
)

func TestConstant(t *testing.T) {
	c := NewConstant(5 * time.Second)
	for _, attempt := range []int{1, 2, 10} {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Fatalf("Delay(%d) = %s, want 5s", attempt, got)
		}
	}
}

func TestLinear(t *testing.T) {
	l := NewLinear(10*time.Second, 0)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 20 * time.Second},
		{2, 30 * time.Second},
		{5, 60 * time.Second},
	}
	for _, tc := range cases {
		if got := l.Delay(tc.attempt); got != tc.want {
			t.Fatalf("Delay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestLinearCap(t *testing.T) {
	l := NewLinear(10*time.Second, 25*time.Second)
	if got := l.Delay(9); got != 25*time.Second {
		t.Fatalf("Delay(9) = %s, want capped 25s", got)
	}
}

func TestExponential(t *testing.T) {
	e := NewExponential(time.Second, 0)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
	}
	for _, tc := range cases {
		if got := e.Delay(tc.attempt); got != tc.want {
			t.Fatalf("Delay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestExponentialCap(t *testing.T) {
	e := NewExponential(time.Second, 5*time.Second)
	if got := e.Delay(10); got != 5*time.Second {
		t.Fatalf("Delay(10) = %s, want capped 5s", got)
	}
}

func TestExponentialWithJitterBounds(t *testing.T) {
	e := NewExponentialWithJitter(time.Second, 10*time.Second)
	for attempt := 1; attempt <= 8; attempt++ {
		for range 100 {
			d := e.Delay(attempt)
			if d < 0 || d > 10*time.Second {
				t.Fatalf("Delay(%d) = %s out of [0, 10s]", attempt, d)
			}
		}
	}
}

func TestDefaultIsLinear(t *testing.T) {
	s := Default(30 * time.Second)
	if got := s.Delay(1); got != 60*time.Second {
		t.Fatalf("Delay(1) = %s, want 60s", got)
	}
}
