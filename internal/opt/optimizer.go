// Package opt provides the derivative-free optimizers the three pipeline
// stages share. Objectives are plain float64 functions; anything fallible is
// resolved by the caller before optimization starts.
package opt

import (
	"context"
	"fmt"
)

// Objective is a cost function to minimize.
type Objective func(params []float64) float64

// Optimizer runs a bounded minimization over dim parameters. lower and upper
// clamp every coordinate. Implementations stop early when ctx is cancelled
// and return the best point seen so far.
type Optimizer interface {
	Run(ctx context.Context, eval Objective, lower, upper []float64, dim int) ([]float64, float64)
}

// Resumable optimizers can be re-seeded from a previous best point, which the
// retry loop in the preparation stage uses instead of restarting cold.
type Resumable interface {
	Optimizer

	// RunWithInitial starts from an initial solution instead of a random
	// point.
	RunWithInitial(ctx context.Context, initial []float64, eval Objective, lower, upper []float64, dim int) ([]float64, float64)
}

// New builds an optimizer by method name ("spsa" or "coordinate").
func New(method string, maxIter int, seed int64) (Resumable, error) {
	switch method {
	case "spsa":
		return NewSPSA(maxIter, seed), nil
	case "coordinate":
		return NewCoordinate(maxIter, seed), nil
	default:
		return nil, fmt.Errorf("unknown optimizer method %q", method)
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
