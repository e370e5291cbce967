package opt

import (
	"context"
	"math"
	"math/rand"
)

// SPSA is simultaneous-perturbation stochastic approximation: two objective
// evaluations per iteration regardless of dimension, which keeps noisy
// expectation-value objectives affordable.
type SPSA struct {
	MaxIter int     // iteration budget
	A       float64 // step-size numerator
	C       float64 // perturbation size
	Alpha   float64 // step-size decay exponent
	Gamma   float64 // perturbation decay exponent
	Seed    int64
}

// NewSPSA returns an SPSA optimizer with the standard decay schedule.
func NewSPSA(maxIter int, seed int64) *SPSA {
	return &SPSA{
		MaxIter: maxIter,
		A:       0.2,
		C:       0.15,
		Alpha:   0.602,
		Gamma:   0.101,
		Seed:    seed,
	}
}

// Run starts from a uniformly random point inside the bounds.
func (o *SPSA) Run(ctx context.Context, eval Objective, lower, upper []float64, dim int) ([]float64, float64) {
	rng := rand.New(rand.NewSource(o.Seed))
	initial := make([]float64, dim)
	for i := range initial {
		initial[i] = lower[i] + rng.Float64()*(upper[i]-lower[i])
	}
	return o.minimize(ctx, rng, initial, eval, lower, upper)
}

// RunWithInitial starts from the given point, perturbing the schedule with
// the same seed so retries are reproducible.
func (o *SPSA) RunWithInitial(ctx context.Context, initial []float64, eval Objective, lower, upper []float64, dim int) ([]float64, float64) {
	rng := rand.New(rand.NewSource(o.Seed))
	start := make([]float64, dim)
	copy(start, initial)
	for i := range start {
		start[i] = clamp(start[i], lower[i], upper[i])
	}
	return o.minimize(ctx, rng, start, eval, lower, upper)
}

func (o *SPSA) minimize(ctx context.Context, rng *rand.Rand, theta []float64, eval Objective, lower, upper []float64) ([]float64, float64) {
	dim := len(theta)
	best := make([]float64, dim)
	copy(best, theta)
	bestCost := eval(best)

	plus := make([]float64, dim)
	minus := make([]float64, dim)
	delta := make([]float64, dim)

	for k := 0; k < o.MaxIter; k++ {
		select {
		case <-ctx.Done():
			return best, bestCost
		default:
		}

		ak := o.A / math.Pow(float64(k+1), o.Alpha)
		ck := o.C / math.Pow(float64(k+1), o.Gamma)

		for i := range delta {
			if rng.Intn(2) == 0 {
				delta[i] = 1
			} else {
				delta[i] = -1
			}
			plus[i] = clamp(theta[i]+ck*delta[i], lower[i], upper[i])
			minus[i] = clamp(theta[i]-ck*delta[i], lower[i], upper[i])
		}

		diff := eval(plus) - eval(minus)
		for i := range theta {
			grad := diff / (2 * ck * delta[i])
			theta[i] = clamp(theta[i]-ak*grad, lower[i], upper[i])
		}

		if cost := eval(theta); cost < bestCost {
			bestCost = cost
			copy(best, theta)
		}
	}
	return best, bestCost
}
