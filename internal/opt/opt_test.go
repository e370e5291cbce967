package opt

import (
	"context"
	"math"
	"testing"
)

func quadratic(target []float64) Objective {
	return func(p []float64) float64 {
		sum := 0.0
		for i := range p {
			d := p[i] - target[i]
			sum += d * d
		}
		return sum
	}
}

func bounds(dim int) (lower, upper []float64) {
	lower = make([]float64, dim)
	upper = make([]float64, dim)
	for i := range lower {
		lower[i] = -math.Pi
		upper[i] = math.Pi
	}
	return lower, upper
}

func TestSPSA_Quadratic(t *testing.T) {
	target := []float64{0.8, -1.1, 0.3}
	lower, upper := bounds(3)

	o := NewSPSA(2000, 11)
	best, cost := o.Run(context.Background(), quadratic(target), lower, upper, 3)

	if cost > 0.05 {
		t.Errorf("SPSA did not converge: cost %v at %v", cost, best)
	}
}

func TestSPSA_Deterministic(t *testing.T) {
	lower, upper := bounds(2)
	eval := quadratic([]float64{1, -1})

	a, costA := NewSPSA(300, 5).Run(context.Background(), eval, lower, upper, 2)
	b, costB := NewSPSA(300, 5).Run(context.Background(), eval, lower, upper, 2)

	if costA != costB {
		t.Fatalf("same seed produced different costs: %v vs %v", costA, costB)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different params: %v vs %v", a, b)
		}
	}
}

func TestSPSA_ResumeImproves(t *testing.T) {
	lower, upper := bounds(2)
	eval := quadratic([]float64{0.5, 0.5})

	o := NewSPSA(50, 3)
	initial := []float64{3.0, -3.0}
	startCost := eval(initial)
	_, cost := o.RunWithInitial(context.Background(), initial, eval, lower, upper, 2)
	if cost >= startCost {
		t.Errorf("resume did not improve: %v >= %v", cost, startCost)
	}
}

func TestSPSA_CancelledContext(t *testing.T) {
	lower, upper := bounds(2)
	calls := 0
	eval := func(p []float64) float64 {
		calls++
		return quadratic([]float64{0, 0})(p)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, cost := NewSPSA(10000, 1).Run(ctx, eval, lower, upper, 2)

	// One evaluation for the starting point, nothing else.
	if calls != 1 {
		t.Errorf("expected 1 evaluation under cancelled context, got %d", calls)
	}
	if math.IsNaN(cost) {
		t.Error("cost is NaN")
	}
}

func TestSPSA_RespectsBounds(t *testing.T) {
	lower := []float64{-0.5, -0.5}
	upper := []float64{0.5, 0.5}
	// Minimum outside the box; optimizer must stay inside.
	best, _ := NewSPSA(500, 9).Run(context.Background(), quadratic([]float64{2, 2}), lower, upper, 2)
	for i, p := range best {
		if p < lower[i]-1e-12 || p > upper[i]+1e-12 {
			t.Errorf("param %d out of bounds: %v", i, p)
		}
	}
}

func TestCoordinate_Quadratic(t *testing.T) {
	target := []float64{-0.7, 1.3}
	lower, upper := bounds(2)

	o := NewCoordinate(200, 21)
	best, cost := o.Run(context.Background(), quadratic(target), lower, upper, 2)

	if cost > 1e-4 {
		t.Errorf("coordinate descent did not converge: cost %v at %v", cost, best)
	}
}

func TestCoordinate_ResumeFromExactMinimum(t *testing.T) {
	lower, upper := bounds(2)
	target := []float64{0.25, -0.75}
	best, cost := NewCoordinate(100, 1).RunWithInitial(
		context.Background(), target, quadratic(target), lower, upper, 2)
	if cost > 1e-12 {
		t.Errorf("cost at exact minimum should stay 0, got %v at %v", cost, best)
	}
}
