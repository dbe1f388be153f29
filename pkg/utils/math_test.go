package utils

import (
	"math"
	"testing"
)

func TestClampFloat64(t *testing.T) {
	if got := ClampFloat64(5, 0, 1); got != 1 {
		t.Fatalf("expected 1, got %f", got)
	}
	if got := ClampFloat64(-5, 0, 1); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
	if got := ClampFloat64(0.5, 0, 1); got != 0.5 {
		t.Fatalf("expected 0.5, got %f", got)
	}
}

func TestMeanAndStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	if got := Mean(values); got != 5 {
		t.Fatalf("expected mean 5, got %f", got)
	}
	if got := StdDev(values); math.Abs(got-2) > 1e-9 {
		t.Fatalf("expected stddev 2, got %f", got)
	}
}

func TestMeanEmpty(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Fatalf("expected 0 for empty input, got %f", got)
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(1.5) {
		t.Fatalf("1.5 should be finite")
	}
	if IsFinite(math.NaN()) {
		t.Fatalf("NaN should not be finite")
	}
	if IsFinite(math.Inf(1)) {
		t.Fatalf("+Inf should not be finite")
	}
}

func TestRound(t *testing.T) {
	if got := Round(3.14159, 2); got != 3.14 {
		t.Fatalf("expected 3.14, got %f", got)
	}
	if got := Round(2.675, 0); got != 3 {
		t.Fatalf("expected 3, got %f", got)
	}
}
