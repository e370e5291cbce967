package sim

import (
	"fmt"
	"math/cmplx"
)

// InnerProduct returns <a|b>.
func InnerProduct(a, b *State) complex128 {
	var sum complex128
	for i := range a.Amps {
		sum += cmplx.Conj(a.Amps[i]) * b.Amps[i]
	}
	return sum
}

// Prob0 returns the probability of measuring qubit q as 0.
func (s *State) Prob0(q int) float64 {
	bit := 1 << q
	p := 0.0
	for i, a := range s.Amps {
		if i&bit == 0 {
			p += real(a * cmplx.Conj(a))
		}
	}
	return p
}

// PauliExpectation returns <s| P |s> for a Pauli word. word[q] is the
// operator on qubit q, one of 'I', 'X', 'Y', 'Z'.
func PauliExpectation(s *State, word string) (float64, error) {
	if len(word) != s.NumQubits {
		return 0, fmt.Errorf("pauli word %q does not cover %d qubits", word, s.NumQubits)
	}
	applied := s.Clone()
	for q, op := range word {
		switch op {
		case 'I':
		case 'X':
			applied.applyX(q)
		case 'Y':
			applied.applyY(q)
		case 'Z':
			applied.applyZ(q)
		default:
			return 0, fmt.Errorf("invalid pauli operator %q in word %q", op, word)
		}
	}
	return real(InnerProduct(s, applied)), nil
}
