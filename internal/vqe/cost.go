// Package vqe implements Stage 1: per-bond-length variational preparation of
// the molecular ground state, with the bounded-retry acceptance loop around
// the optimizer.
package vqe

import (
	"fmt"
	"math/rand"
	"sync"

	"cusp/internal/chem"
	"cusp/internal/circuit"
	"cusp/internal/sim"
)

// Evaluator computes the energy of the state-prep ansatz against the
// molecular Hamiltonian. One evaluator per bond-length worker; safe for the
// optimizer's sequential calls and internally locked in case a caller shares
// one anyway.
type Evaluator struct {
	Qubits int
	Layers int
	Noisy  bool
	Prob   float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEvaluator returns an energy evaluator. seed drives the noise
// trajectories when the noisy flag is set.
func NewEvaluator(qubits, layers int, noisy bool, prob float64, seed int64) *Evaluator {
	return &Evaluator{
		Qubits: qubits,
		Layers: layers,
		Noisy:  noisy,
		Prob:   prob,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Energy evaluates the ansatz energy at the given bond length. reps is the
// trajectory count for noisy evaluation; exact forces a noiseless
// statevector evaluation regardless of the evaluator's noise flag.
func (e *Evaluator) Energy(params []float64, bond float64, reps int, exact bool) (float64, error) {
	terms, err := chem.Hamiltonian(bond)
	if err != nil {
		return 0, err
	}
	c, err := circuit.StatePrep(e.Qubits, e.Layers, params)
	if err != nil {
		return 0, err
	}
	return e.circuitEnergy(c, terms, reps, exact)
}

// CircuitEnergy evaluates an arbitrary circuit at the given bond length.
// Stage 3 uses this for the synthesis circuit.
func (e *Evaluator) CircuitEnergy(c *circuit.Circuit, bond float64, reps int, exact bool) (float64, error) {
	terms, err := chem.Hamiltonian(bond)
	if err != nil {
		return 0, err
	}
	return e.circuitEnergy(c, terms, reps, exact)
}

// circuitEnergy evaluates an arbitrary circuit against a Hamiltonian, shared
// with the Stage 3 synthesis evaluator.
func (e *Evaluator) circuitEnergy(c *circuit.Circuit, terms []chem.PauliTerm, reps int, exact bool) (float64, error) {
	if exact || !e.Noisy || e.Prob == 0 {
		state, err := sim.Run(c)
		if err != nil {
			return 0, err
		}
		return expectation(state, terms)
	}

	if reps < 1 {
		return 0, fmt.Errorf("repetition count must be positive, got %d", reps)
	}
	total := 0.0
	for i := 0; i < reps; i++ {
		e.mu.Lock()
		state, err := sim.NoisyRun(c, e.Prob, e.rng)
		e.mu.Unlock()
		if err != nil {
			return 0, err
		}
		energy, err := expectation(state, terms)
		if err != nil {
			return 0, err
		}
		total += energy
	}
	return total / float64(reps), nil
}

func expectation(state *sim.State, terms []chem.PauliTerm) (float64, error) {
	total := 0.0
	for _, term := range terms {
		v, err := sim.PauliExpectation(state, term.Word)
		if err != nil {
			return 0, err
		}
		total += term.Coeff * v
	}
	return total, nil
}
