package circuit

import (
	"fmt"
	"strings"
)

var qasmNames = map[string]string{
	"H": "h", "X": "x", "Y": "y", "Z": "z",
	"CX": "cx", "CZ": "cz", "SWAP": "swap",
	"RX": "rx", "RY": "ry", "RZ": "rz",
	"S": "s", "T": "t", "SDG": "sdg", "TDG": "tdg",
}

// ToQASM renders the circuit as OpenQASM 3.0 with a terminal measurement of
// the full register. Used for interop and debug dumps, not by the simulator.
func (c *Circuit) ToQASM() string {
	var sb strings.Builder
	sb.WriteString("OPENQASM 3.0;\n")
	sb.WriteString("include \"stdgates.inc\";\n")
	fmt.Fprintf(&sb, "qubit[%d] q;\n", c.NumQubits)
	fmt.Fprintf(&sb, "bit[%d] c;\n\n", c.NumQubits)

	for _, g := range c.Gates {
		name, ok := qasmNames[g.Name]
		if !ok {
			name = strings.ToLower(g.Name)
		}
		sb.WriteString(name)
		if len(g.Params) > 0 {
			sb.WriteString("(")
			for i, p := range g.Params {
				if i > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(&sb, "%g", p)
			}
			sb.WriteString(")")
		}
		sb.WriteString(" ")
		for i, q := range g.Qubits {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "q[%d]", q)
		}
		sb.WriteString(";\n")
	}

	sb.WriteString("\nc = measure q;\n")
	return sb.String()
}
