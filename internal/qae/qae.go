// Package qae implements Stage 2: training a single shared quantum
// autoencoder over the Stage 1 ground states. The encoder is accepted when
// the mean trash-qubit fidelity across all bond lengths clears the configured
// threshold.
package qae

import (
	"context"
	"fmt"
	"math"

	"cusp/internal/circuit"
	"cusp/internal/config"
	"cusp/internal/logging"
	"cusp/internal/opt"
	"cusp/internal/sim"
	"cusp/internal/vqe"
)

// Result is the Stage 2 output: one encoder parameter vector shared by every
// bond length, with its compression quality.
type Result struct {
	Params   []float64
	Fidelity float64 // mean trash-qubit |0> probability across bond lengths
	Attempts int
	Accepted bool
}

// Trainer scores candidate encoder vectors against a fixed set of input
// states. The inputs are the Stage 1 ground-state approximations, simulated
// once up front and reused for every cost call.
type Trainer struct {
	Qubits       int
	Layers       int
	LatentQubits int

	inputs []*sim.State
}

// NewTrainer prepares the training set from the Stage 1 results. Each result
// vector is run through the state-prep ansatz once; the resulting states are
// the fixed inputs the encoder is trained against.
func NewTrainer(cfg *config.Config, stage1 []vqe.Result) (*Trainer, error) {
	if len(stage1) == 0 {
		return nil, fmt.Errorf("no input states to train on")
	}
	t := &Trainer{
		Qubits:       cfg.Circuit.Qubits,
		Layers:       cfg.Circuit.EncoderLayers,
		LatentQubits: cfg.Circuit.LatentQubits,
	}
	for _, r := range stage1 {
		c, err := circuit.StatePrep(cfg.Circuit.Qubits, cfg.Circuit.PrepLayers, r.Params)
		if err != nil {
			return nil, fmt.Errorf("bond %.4f state prep: %w", r.Bond, err)
		}
		state, err := sim.Run(c)
		if err != nil {
			return nil, fmt.Errorf("bond %.4f simulation: %w", r.Bond, err)
		}
		t.inputs = append(t.inputs, state)
	}
	return t, nil
}

// Fidelity returns the mean probability of finding every trash qubit in |0>
// after encoding, averaged over the training inputs. 1 means perfect
// compression into the latent block.
func (t *Trainer) Fidelity(params []float64) (float64, error) {
	enc, err := circuit.Encoder(t.Qubits, t.Layers, params)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, input := range t.inputs {
		state := input.Clone()
		for _, g := range enc.Gates {
			if err := state.Apply(g); err != nil {
				return 0, err
			}
		}
		// Trash qubits are the high indexes above the latent block.
		f := 1.0
		for q := t.LatentQubits; q < t.Qubits; q++ {
			f *= state.Prob0(q)
		}
		total += f
	}
	return total / float64(len(t.inputs)), nil
}

// Train optimizes the encoder with the bounded-retry loop: while the mean
// trash fidelity stays under the threshold, the optimizer is re-run from its
// best point, up to the retry budget; exhaustion keeps the best-so-far
// encoder and flags it unaccepted.
func Train(ctx context.Context, cfg *config.Config, stage1 []vqe.Result) (Result, error) {
	log := logging.Get(logging.CategoryQAE)
	timer := logging.StartTimer(logging.CategoryQAE, "Train")
	defer timer.Stop()

	trainer, err := NewTrainer(cfg, stage1)
	if err != nil {
		return Result{}, err
	}

	dim := circuit.EncoderParamCount(cfg.Circuit.Qubits, cfg.Circuit.EncoderLayers)
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = -math.Pi
		upper[i] = math.Pi
	}

	var evalErr error
	objective := func(p []float64) float64 {
		f, err := trainer.Fidelity(p)
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return math.Inf(1)
		}
		return 1 - f
	}

	optimizer, err := opt.New(cfg.Optimizer.Method, cfg.Optimizer.MaxIterations, cfg.Optimizer.Seed)
	if err != nil {
		return Result{}, err
	}

	res := Result{}
	best, cost := optimizer.Run(ctx, objective, lower, upper, dim)
	res.Attempts = 1

	for {
		if evalErr != nil {
			return Result{}, fmt.Errorf("fidelity evaluation: %w", evalErr)
		}
		res.Params = best
		res.Fidelity = 1 - cost

		if res.Fidelity >= cfg.Optimizer.FidelityThreshold {
			res.Accepted = true
			log.Info("encoder accepted after %d attempt(s): fidelity %.6f", res.Attempts, res.Fidelity)
			return res, nil
		}
		if res.Attempts > cfg.Optimizer.RetryBudget {
			log.Warn("encoder retry budget exhausted: fidelity %.6f under threshold %.6f, keeping best-so-far",
				res.Fidelity, cfg.Optimizer.FidelityThreshold)
			fmt.Printf("notice: encoder fidelity %.6f did not reach threshold %.6f; continuing with best parameters\n",
				res.Fidelity, cfg.Optimizer.FidelityThreshold)
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		log.Warn("encoder attempt %d fidelity %.6f under threshold, re-running optimizer",
			res.Attempts, res.Fidelity)
		fmt.Printf("warning: encoder fidelity %.6f under threshold %.6f, retrying (%d/%d)\n",
			res.Fidelity, cfg.Optimizer.FidelityThreshold, res.Attempts, cfg.Optimizer.RetryBudget)

		best, cost = optimizer.RunWithInitial(ctx, best, objective, lower, upper, dim)
		res.Attempts++
	}
}
