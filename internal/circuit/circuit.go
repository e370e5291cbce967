// Package circuit holds the gate-level circuit representation shared by the
// CUSP stages: the state-preparation ansatz, the autoencoder, and the latent
// synthesis circuit are all built here and handed to the simulator.
package circuit

import (
	"fmt"
	"slices"
)

// Gate is a single operation placed on the circuit. Qubits are listed
// control-first for two-qubit gates.
type Gate struct {
	Name   string    `json:"name"`
	Qubits []int     `json:"qubits"`
	Params []float64 `json:"params,omitempty"`
}

// Circuit is an ordered gate list over a fixed qubit register.
type Circuit struct {
	NumQubits int    `json:"num_qubits"`
	Gates     []Gate `json:"gates"`
}

// New returns an empty circuit over n qubits.
func New(n int) *Circuit {
	return &Circuit{NumQubits: n}
}

// Add appends a gate.
func (c *Circuit) Add(name string, qubits []int, params ...float64) {
	g := Gate{Name: name, Qubits: qubits}
	if len(params) > 0 {
		g.Params = append(g.Params, params...)
	}
	c.Gates = append(c.Gates, g)
}

// Append concatenates another circuit's gates onto this one. The registers
// must match.
func (c *Circuit) Append(other *Circuit) error {
	if other.NumQubits != c.NumQubits {
		return fmt.Errorf("register mismatch: %d vs %d qubits", c.NumQubits, other.NumQubits)
	}
	c.Gates = append(c.Gates, other.Gates...)
	return nil
}

// Clone returns a deep copy.
func (c *Circuit) Clone() *Circuit {
	out := &Circuit{NumQubits: c.NumQubits, Gates: make([]Gate, len(c.Gates))}
	for i, g := range c.Gates {
		out.Gates[i] = Gate{
			Name:   g.Name,
			Qubits: slices.Clone(g.Qubits),
			Params: slices.Clone(g.Params),
		}
	}
	return out
}

// Depth returns the gate count. Gates are strictly sequenced, so this is the
// circuit timeline length.
func (c *Circuit) Depth() int { return len(c.Gates) }

// inverses of the self-inverse gates map to themselves.
var inverseName = map[string]string{
	"H": "H", "X": "X", "Y": "Y", "Z": "Z",
	"CX": "CX", "CZ": "CZ", "SWAP": "SWAP",
	"S": "SDG", "SDG": "S", "T": "TDG", "TDG": "T",
	"RX": "RX", "RY": "RY", "RZ": "RZ",
}

// Inverse returns the adjoint circuit: gates reversed, rotation angles
// negated, S/T swapped with their daggers.
func (c *Circuit) Inverse() (*Circuit, error) {
	out := &Circuit{NumQubits: c.NumQubits, Gates: make([]Gate, 0, len(c.Gates))}
	for i := len(c.Gates) - 1; i >= 0; i-- {
		g := c.Gates[i]
		name, ok := inverseName[g.Name]
		if !ok {
			return nil, fmt.Errorf("gate %q has no inverse", g.Name)
		}
		inv := Gate{Name: name, Qubits: slices.Clone(g.Qubits)}
		if len(g.Params) > 0 {
			inv.Params = make([]float64, len(g.Params))
			for j, p := range g.Params {
				inv.Params[j] = -p
			}
		}
		out.Gates = append(out.Gates, inv)
	}
	return out, nil
}

// Validate checks qubit indexes and parameter arity.
func (c *Circuit) Validate() error {
	if c.NumQubits < 1 {
		return fmt.Errorf("circuit needs at least one qubit, got %d", c.NumQubits)
	}
	for i, g := range c.Gates {
		if len(g.Qubits) == 0 {
			return fmt.Errorf("gate %d (%s): no qubits", i, g.Name)
		}
		for _, q := range g.Qubits {
			if q < 0 || q >= c.NumQubits {
				return fmt.Errorf("gate %d (%s): qubit %d out of range [0,%d)", i, g.Name, q, c.NumQubits)
			}
		}
		switch g.Name {
		case "RX", "RY", "RZ":
			if len(g.Params) != 1 {
				return fmt.Errorf("gate %d (%s): want 1 parameter, got %d", i, g.Name, len(g.Params))
			}
		case "CX", "CZ", "SWAP":
			if len(g.Qubits) != 2 {
				return fmt.Errorf("gate %d (%s): want 2 qubits, got %d", i, g.Name, len(g.Qubits))
			}
			if g.Qubits[0] == g.Qubits[1] {
				return fmt.Errorf("gate %d (%s): control equals target", i, g.Name)
			}
		}
	}
	return nil
}
