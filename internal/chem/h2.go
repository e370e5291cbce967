// Package chem carries the molecular model the pipeline trains against: the
// minimal-basis two-qubit hydrogen Hamiltonian and its exact ground energies.
package chem

import (
	"errors"
	"fmt"
	"sort"
)

// ErrBondOutOfRange is returned for bond lengths outside the tabulated range.
var ErrBondOutOfRange = errors.New("bond length outside tabulated range")

// PauliTerm is one weighted Pauli word of a qubit Hamiltonian. Word[q] is
// the operator acting on qubit q.
type PauliTerm struct {
	Coeff float64 `json:"coeff"`
	Word  string  `json:"word"`
}

// row holds the reduced H2 Hamiltonian coefficients at one bond length:
// H = G0*II + G1*ZI + G2*IZ + G3*ZZ + G4*XX + G5*YY, with G4 == G5.
// Bond lengths in angstroms, energies in hartree; nuclear repulsion excluded.
type row struct {
	bond                   float64
	g0, g1, g2, g3, g4, g5 float64
}

var table = []row{
	{0.30, -0.0781, 0.5132, -1.1008, 0.6598, 0.0809, 0.0809},
	{0.45, -0.2179, 0.4504, -0.7961, 0.6242, 0.0844, 0.0844},
	{0.60, -0.3740, 0.3913, -0.5848, 0.5942, 0.0878, 0.0878},
	{0.75, -0.4804, 0.3435, -0.4347, 0.5716, 0.0910, 0.0910},
	{0.90, -0.5062, 0.2982, -0.3286, 0.5468, 0.0951, 0.0951},
	{1.05, -0.5298, 0.2564, -0.2526, 0.5234, 0.0999, 0.0999},
	{1.20, -0.5448, 0.2178, -0.1964, 0.5004, 0.1055, 0.1055},
	{1.35, -0.5596, 0.1819, -0.1536, 0.4771, 0.1119, 0.1119},
	{1.50, -0.5577, 0.1488, -0.1202, 0.4534, 0.1188, 0.1188},
}

// Qubits is the register width of the reduced H2 Hamiltonian.
const Qubits = 2

// BondRange returns the tabulated bond-length bounds in angstroms.
func BondRange() (min, max float64) {
	return table[0].bond, table[len(table)-1].bond
}

// Hamiltonian returns the Pauli decomposition at the given bond length.
// Coefficients between table points are interpolated linearly.
func Hamiltonian(bond float64) ([]PauliTerm, error) {
	r, err := coefficients(bond)
	if err != nil {
		return nil, err
	}
	return []PauliTerm{
		{Coeff: r.g0, Word: "II"},
		{Coeff: r.g1, Word: "ZI"},
		{Coeff: r.g2, Word: "IZ"},
		{Coeff: r.g3, Word: "ZZ"},
		{Coeff: r.g4, Word: "XX"},
		{Coeff: r.g5, Word: "YY"},
	}, nil
}

func coefficients(bond float64) (row, error) {
	lo, hi := BondRange()
	if bond < lo || bond > hi {
		return row{}, fmt.Errorf("%w: %.4f not in [%.2f, %.2f]", ErrBondOutOfRange, bond, lo, hi)
	}
	i := sort.Search(len(table), func(i int) bool { return table[i].bond >= bond })
	if table[i].bond == bond {
		return table[i], nil
	}
	a, b := table[i-1], table[i]
	t := (bond - a.bond) / (b.bond - a.bond)
	lerp := func(x, y float64) float64 { return x + t*(y-x) }
	return row{
		bond: bond,
		g0:   lerp(a.g0, b.g0),
		g1:   lerp(a.g1, b.g1),
		g2:   lerp(a.g2, b.g2),
		g3:   lerp(a.g3, b.g3),
		g4:   lerp(a.g4, b.g4),
		g5:   lerp(a.g5, b.g5),
	}, nil
}

// GroundEnergy returns the exact lowest eigenvalue of the Hamiltonian at the
// given bond length. This is the reference every stage compares against.
func GroundEnergy(bond float64) (float64, error) {
	terms, err := Hamiltonian(bond)
	if err != nil {
		return 0, err
	}
	m, err := Matrix(terms, Qubits)
	if err != nil {
		return 0, err
	}
	eigs, err := EigenvaluesSym(m)
	if err != nil {
		return 0, err
	}
	return eigs[0], nil
}
