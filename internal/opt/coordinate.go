package opt

import (
	"context"
	"math/rand"
)

// Coordinate is cyclic coordinate descent with a shrinking step. Slower than
// SPSA on smooth objectives but immune to its gradient-noise pathologies, so
// it serves as the fallback method.
type Coordinate struct {
	MaxSweeps int
	Step      float64 // initial step size
	Shrink    float64 // step multiplier when a sweep makes no progress
	MinStep   float64 // stop once the step falls below this
	Seed      int64
}

// NewCoordinate returns a coordinate-descent optimizer with default steps.
func NewCoordinate(maxSweeps int, seed int64) *Coordinate {
	return &Coordinate{
		MaxSweeps: maxSweeps,
		Step:      0.5,
		Shrink:    0.5,
		MinStep:   1e-4,
		Seed:      seed,
	}
}

// Run starts from a uniformly random point inside the bounds.
func (o *Coordinate) Run(ctx context.Context, eval Objective, lower, upper []float64, dim int) ([]float64, float64) {
	rng := rand.New(rand.NewSource(o.Seed))
	initial := make([]float64, dim)
	for i := range initial {
		initial[i] = lower[i] + rng.Float64()*(upper[i]-lower[i])
	}
	return o.RunWithInitial(ctx, initial, eval, lower, upper, dim)
}

// RunWithInitial starts from the given point.
func (o *Coordinate) RunWithInitial(ctx context.Context, initial []float64, eval Objective, lower, upper []float64, dim int) ([]float64, float64) {
	theta := make([]float64, dim)
	copy(theta, initial)
	for i := range theta {
		theta[i] = clamp(theta[i], lower[i], upper[i])
	}
	cost := eval(theta)
	step := o.Step

	for sweep := 0; sweep < o.MaxSweeps && step >= o.MinStep; sweep++ {
		select {
		case <-ctx.Done():
			return theta, cost
		default:
		}

		improved := false
		for i := 0; i < dim; i++ {
			orig := theta[i]
			for _, candidate := range []float64{orig + step, orig - step} {
				theta[i] = clamp(candidate, lower[i], upper[i])
				if c := eval(theta); c < cost {
					cost = c
					improved = true
					orig = theta[i]
				} else {
					theta[i] = orig
				}
			}
		}
		if !improved {
			step *= o.Shrink
		}
	}
	return theta, cost
}
