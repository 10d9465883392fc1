package calibrate

import (
	"math"
	"testing"
)

func TestBestFitExactLine(t *testing.T) {
	// y = 2x + 1
	xs := []float64{0, 1, 2, 3, 4}
	ys := []float64{1, 3, 5, 7, 9}

	k, c := BestFit(xs, ys)
	if math.Abs(k-2) > 1e-9 {
		t.Errorf("k = %v, want 2", k)
	}
	if math.Abs(c-1) > 1e-9 {
		t.Errorf("c = %v, want 1", c)
	}
}

func TestBestFitNoisyReadings(t *testing.T) {
	// ADC readings around y = 13.164x - 100.751 with symmetric noise.
	xs := []float64{394, 782, 1393}
	base := func(x float64) float64 { return 13.164*x - 100.751 }
	ys := []float64{base(394) + 5, base(782) - 5, base(1393)}

	k, c := BestFit(xs, ys)
	if math.Abs(k-13.164) > 0.05 {
		t.Errorf("k = %v, want about 13.164", k)
	}
	if math.Abs(c-(-100.751)) > 40 {
		t.Errorf("c = %v, want about -100.751", c)
	}
}

func TestBestFitNegativeSlope(t *testing.T) {
	xs := []float64{1, 2, 3}
	ys := []float64{6, 4, 2}

	k, c := BestFit(xs, ys)
	if math.Abs(k-(-2)) > 1e-9 || math.Abs(c-8) > 1e-9 {
		t.Errorf("fit = %v, %v, want -2, 8", k, c)
	}
}
