package sim

import (
	"math/rand"

	"cusp/internal/circuit"
)

// NoisyRun applies the circuit with a depolarizing channel of strength p
// after every gate, realized as stochastic Pauli insertion on each qubit the
// gate touched. One call is one noise trajectory; callers average
// expectation values over trajectories.
func NoisyRun(c *circuit.Circuit, p float64, rng *rand.Rand) (*State, error) {
	s := NewState(c.NumQubits)
	for _, g := range c.Gates {
		if err := s.Apply(g); err != nil {
			return nil, err
		}
		for _, q := range g.Qubits {
			if rng.Float64() >= p {
				continue
			}
			switch rng.Intn(3) {
			case 0:
				s.applyX(q)
			case 1:
				s.applyY(q)
			case 2:
				s.applyZ(q)
			}
		}
	}
	return s, nil
}
