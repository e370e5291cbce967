// Package latent implements Stage 3: re-synthesizing each ground state from
// the compressed representation. With the encoder frozen, a small search over
// the latent-qubit angles finds the reduced vector whose decoded state
// minimizes the molecular energy at each bond length.
package latent

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
	"cusp/internal/vqe"
)

// Result is the Stage 3 output for one bond length: the reduced parameter
// vector and the energy of the state it decodes to.
type Result struct {
	Bond     float64
	Params   []float64 // latent-block angles, not full-register angles
	Energy   float64
	Exact    float64
	Attempts int
	Accepted bool
}

// RefineBond searches the latent space for one bond length. The encoder is
// fixed; only the latent preparation angles move. The bounded-retry loop
// matches Stage 1: re-run from the best point while the energy error exceeds
// the threshold, up to the retry budget.
func RefineBond(ctx context.Context, cfg *config.Config, encoder []float64, bond float64, seed int64) (Result, error) {
	log := logging.Get(logging.CategoryLatent)

	ground, err := chem.GroundEnergy(bond)
	if err != nil {
		return Result{}, fmt.Errorf("ground energy lookup: %w", err)
	}
	enc, err := circuit.Encoder(cfg.Circuit.Qubits, cfg.Circuit.EncoderLayers, encoder)
	if err != nil {
		return Result{}, fmt.Errorf("encoder rebuild: %w", err)
	}

	eval := vqe.NewEvaluator(cfg.Circuit.Qubits, cfg.Circuit.PrepLayers,
		cfg.Noise.Enabled, cfg.Noise.Probability, seed)

	dim := circuit.LatentParamCount(cfg.Circuit.LatentQubits)
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = -math.Pi
		upper[i] = math.Pi
	}

	var evalErr error
	objective := func(p []float64) float64 {
		c, err := circuit.Synthesis(cfg.Circuit.Qubits, cfg.Circuit.LatentQubits, p, enc)
		if err == nil {
			var energy float64
			energy, err = eval.CircuitEnergy(c, bond, cfg.Run.Trials, false)
			if err == nil {
				return energy
			}
		}
		if evalErr == nil {
			evalErr = err
		}
		return math.Inf(1)
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
			return Result{}, fmt.Errorf("synthesis evaluation: %w", evalErr)
		}
		c, err := circuit.Synthesis(cfg.Circuit.Qubits, cfg.Circuit.LatentQubits, best, enc)
		if err != nil {
			return Result{}, err
		}
		exact, err := eval.CircuitEnergy(c, bond, 1, true)
		if err != nil {
			return Result{}, err
		}
		res.Params = best
		res.Energy = exact

		errAbs := math.Abs(exact - ground)
		if errAbs <= cfg.Optimizer.EnergyThreshold {
			res.Accepted = true
			log.Info("bond %.4f latent search accepted after %d attempt(s): E=%.6f (exact %.6f)",
				bond, res.Attempts, exact, ground)
			return res, nil
		}
		if res.Attempts > cfg.Optimizer.RetryBudget {
			log.Warn("bond %.4f latent retry budget exhausted: error %.6f above threshold %.6f, keeping best-so-far",
				bond, errAbs, cfg.Optimizer.EnergyThreshold)
			fmt.Printf("notice: bond %.4f latent search did not reach the energy threshold (error %.6f); continuing with best parameters\n",
				bond, errAbs)
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		log.Warn("bond %.4f latent attempt %d above threshold (error %.6f), re-running optimizer",
			bond, res.Attempts, errAbs)
		fmt.Printf("warning: bond %.4f latent energy error %.6f above threshold %.6f, retrying (%d/%d)\n",
			bond, errAbs, cfg.Optimizer.EnergyThreshold, res.Attempts, cfg.Optimizer.RetryBudget)

		best, _ = optimizer.RunWithInitial(ctx, best, objective, lower, upper, dim)
		res.Attempts++
	}
}

// RefineAll runs Stage 3 for every configured bond length against the shared
// encoder, fanning out across the configured worker count. Results come back
// sorted by bond.
func RefineAll(ctx context.Context, cfg *config.Config, encoder []float64) ([]Result, error) {
	timer := logging.StartTimer(logging.CategoryLatent, "RefineAll")
	defer timer.Stop()

	results := make([]Result, len(cfg.Run.BondLengths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Optimizer.Workers)
	for i, bond := range cfg.Run.BondLengths {
		g.Go(func() error {
			res, err := RefineBond(ctx, cfg, encoder, bond, cfg.Optimizer.Seed+int64(i))
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
