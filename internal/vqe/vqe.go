package vqe

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"cusp/internal/chem"
	"cusp/internal/circuit"
	"cusp/internal/config"
	"cusp/internal/logging"
	"cusp/internal/opt"
)

// Result is the Stage 1 output for one bond length.
type Result struct {
	Bond     float64
	Params   []float64
	Energy   float64 // exact energy of the accepted parameters
	Exact    float64 // reference ground energy
	Attempts int
	Accepted bool // error fell under the threshold within the retry budget
}

// PrepareBond optimizes the state-prep ansatz for one bond length. The
// optimizer is re-seeded from its best point and re-run while the energy
// error against the exact ground energy stays above the threshold, up to the
// configured retry budget; when the budget runs out the best-so-far vector is
// kept and reported as unaccepted.
func PrepareBond(ctx context.Context, cfg *config.Config, bond float64, seed int64) (Result, error) {
	log := logging.Get(logging.CategoryVQE)

	ground, err := chem.GroundEnergy(bond)
	if err != nil {
		return Result{}, fmt.Errorf("ground energy lookup: %w", err)
	}

	eval := NewEvaluator(cfg.Circuit.Qubits, cfg.Circuit.PrepLayers,
		cfg.Noise.Enabled, cfg.Noise.Probability, seed)
	dim := circuit.PrepParamCount(cfg.Circuit.Qubits, cfg.Circuit.PrepLayers)
	lower, upper := angleBounds(dim)

	var evalErr error
	objective := func(p []float64) float64 {
		energy, err := eval.Energy(p, bond, cfg.Run.Trials, false)
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return math.Inf(1)
		}
		return energy
	}

	optimizer, err := opt.New(cfg.Optimizer.Method, cfg.Optimizer.MaxIterations, seed)
	if err != nil {
		return Result{}, err
	}

	res := Result{Bond: bond, Exact: ground}
	best, _ := optimizer.Run(ctx, objective, lower, upper, dim)
	res.Attempts = 1

	for {
		if evalErr != nil {
			return Result{}, fmt.Errorf("energy evaluation: %w", evalErr)
		}
		exact, err := eval.Energy(best, bond, 1, true)
		if err != nil {
			return Result{}, err
		}
		res.Params = best
		res.Energy = exact

		errAbs := math.Abs(exact - ground)
		if errAbs <= cfg.Optimizer.EnergyThreshold {
			res.Accepted = true
			log.Info("bond %.4f accepted after %d attempt(s): E=%.6f (exact %.6f)",
				bond, res.Attempts, exact, ground)
			return res, nil
		}
		if res.Attempts > cfg.Optimizer.RetryBudget {
			log.Warn("bond %.4f retry budget exhausted: error %.6f above threshold %.6f, keeping best-so-far",
				bond, errAbs, cfg.Optimizer.EnergyThreshold)
			fmt.Printf("notice: bond %.4f did not reach the energy threshold (error %.6f); continuing with best parameters\n",
				bond, errAbs)
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		log.Warn("bond %.4f attempt %d above threshold (error %.6f), re-running optimizer",
			bond, res.Attempts, errAbs)
		fmt.Printf("warning: bond %.4f energy error %.6f above threshold %.6f, retrying (%d/%d)\n",
			bond, errAbs, cfg.Optimizer.EnergyThreshold, res.Attempts, cfg.Optimizer.RetryBudget)

		best, _ = optimizer.RunWithInitial(ctx, best, objective, lower, upper, dim)
		res.Attempts++
	}
}

// PrepareAll runs Stage 1 for every configured bond length. Bond lengths fan
// out across a bounded worker group; results come back sorted by bond.
func PrepareAll(ctx context.Context, cfg *config.Config) ([]Result, error) {
	timer := logging.StartTimer(logging.CategoryVQE, "PrepareAll")
	defer timer.Stop()

	results := make([]Result, len(cfg.Run.BondLengths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Optimizer.Workers)
	for i, bond := range cfg.Run.BondLengths {
		g.Go(func() error {
			// Distinct seeds keep workers decorrelated but reproducible.
			res, err := PrepareBond(ctx, cfg, bond, cfg.Optimizer.Seed+int64(i))
			if err != nil {
				return fmt.Errorf("bond %.4f: %w", bond, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Bond < results[j].Bond })
	return results, nil
}

func angleBounds(dim int) (lower, upper []float64) {
	lower = make([]float64, dim)
	upper = make([]float64, dim)
	for i := range lower {
		lower[i] = -math.Pi
		upper[i] = math.Pi
	}
	return lower, upper
}
