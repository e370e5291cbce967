// Package sim is a dense statevector simulator sized for the few-qubit
// circuits the pipeline produces. Exact evaluation applies gates to the full
// amplitude vector; noisy evaluation layers a stochastic depolarizing channel
// on top (see noise.go).
package sim

import (
	"fmt"
	"math"
	"math/cmplx"

	"cusp/internal/circuit"
)

// State is a statevector over 2^NumQubits amplitudes. Basis index bit q
// (1<<q) carries the value of qubit q.
type State struct {
	Amps      []complex128
	NumQubits int
}

// NewState returns |0...0>.
func NewState(n int) *State {
	amps := make([]complex128, 1<<n)
	amps[0] = 1
	return &State{Amps: amps, NumQubits: n}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	amps := make([]complex128, len(s.Amps))
	copy(amps, s.Amps)
	return &State{Amps: amps, NumQubits: s.NumQubits}
}

// Apply applies a single gate in place.
func (s *State) Apply(g circuit.Gate) error {
	switch g.Name {
	case "H":
		s.applyH(g.Qubits[0])
	case "X":
		s.applyX(g.Qubits[0])
	case "Y":
		s.applyY(g.Qubits[0])
	case "Z":
		s.applyZ(g.Qubits[0])
	case "S":
		s.applyPhase(g.Qubits[0], 1i)
	case "SDG":
		s.applyPhase(g.Qubits[0], -1i)
	case "T":
		s.applyPhase(g.Qubits[0], cmplx.Exp(complex(0, math.Pi/4)))
	case "TDG":
		s.applyPhase(g.Qubits[0], cmplx.Exp(complex(0, -math.Pi/4)))
	case "RX":
		s.applyRX(g.Qubits[0], g.Params[0])
	case "RY":
		s.applyRY(g.Qubits[0], g.Params[0])
	case "RZ":
		s.applyRZ(g.Qubits[0], g.Params[0])
	case "CX":
		s.applyCX(g.Qubits[0], g.Qubits[1])
	case "CZ":
		s.applyCZ(g.Qubits[0], g.Qubits[1])
	case "SWAP":
		s.applySWAP(g.Qubits[0], g.Qubits[1])
	default:
		return fmt.Errorf("unsupported gate %q", g.Name)
	}
	return nil
}

// Run applies every gate of a circuit to |0...0> and returns the resulting
// state.
func Run(c *circuit.Circuit) (*State, error) {
	s := NewState(c.NumQubits)
	for _, g := range c.Gates {
		if err := s.Apply(g); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *State) applyH(q int) {
	h := complex(1.0/math.Sqrt2, 0)
	bit := 1 << q
	for i := range s.Amps {
		if i&bit == 0 {
			j := i | bit
			a, b := s.Amps[i], s.Amps[j]
			s.Amps[i] = h * (a + b)
			s.Amps[j] = h * (a - b)
		}
	}
}

func (s *State) applyX(q int) {
	bit := 1 << q
	for i := range s.Amps {
		if i&bit == 0 {
			j := i | bit
			s.Amps[i], s.Amps[j] = s.Amps[j], s.Amps[i]
		}
	}
}

func (s *State) applyY(q int) {
	bit := 1 << q
	for i := range s.Amps {
		if i&bit == 0 {
			j := i | bit
			s.Amps[i], s.Amps[j] = -1i*s.Amps[j], 1i*s.Amps[i]
		}
	}
}

func (s *State) applyZ(q int) {
	bit := 1 << q
	for i := range s.Amps {
		if i&bit != 0 {
			s.Amps[i] = -s.Amps[i]
		}
	}
}

func (s *State) applyPhase(q int, factor complex128) {
	bit := 1 << q
	for i := range s.Amps {
		if i&bit != 0 {
			s.Amps[i] *= factor
		}
	}
}

func (s *State) applyRX(q int, theta float64) {
	bit := 1 << q
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	for i := range s.Amps {
		if i&bit == 0 {
			j := i | bit
			a, b := s.Amps[i], s.Amps[j]
			s.Amps[i] = c*a + js*b
			s.Amps[j] = js*a + c*b
		}
	}
}

func (s *State) applyRY(q int, theta float64) {
	bit := 1 << q
	c := complex(math.Cos(theta/2), 0)
	sn := complex(math.Sin(theta/2), 0)
	for i := range s.Amps {
		if i&bit == 0 {
			j := i | bit
			a, b := s.Amps[i], s.Amps[j]
			s.Amps[i] = c*a - sn*b
			s.Amps[j] = sn*a + c*b
		}
	}
}

func (s *State) applyRZ(q int, theta float64) {
	bit := 1 << q
	phase := cmplx.Exp(complex(0, theta/2))
	for i := range s.Amps {
		if i&bit != 0 {
			s.Amps[i] *= phase
		} else {
			s.Amps[i] *= cmplx.Conj(phase)
		}
	}
}

func (s *State) applyCX(control, target int) {
	cBit, tBit := 1<<control, 1<<target
	for i := range s.Amps {
		if i&cBit != 0 && i&tBit == 0 {
			j := i | tBit
			s.Amps[i], s.Amps[j] = s.Amps[j], s.Amps[i]
		}
	}
}

func (s *State) applyCZ(control, target int) {
	cBit, tBit := 1<<control, 1<<target
	for i := range s.Amps {
		if i&cBit != 0 && i&tBit != 0 {
			s.Amps[i] = -s.Amps[i]
		}
	}
}

func (s *State) applySWAP(q1, q2 int) {
	bit1, bit2 := 1<<q1, 1<<q2
	for i := range s.Amps {
		if i&bit1 != 0 && i&bit2 == 0 {
			j := (i &^ bit1) | bit2
			s.Amps[i], s.Amps[j] = s.Amps[j], s.Amps[i]
		}
	}
}
