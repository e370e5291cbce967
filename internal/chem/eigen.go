package chem

import (
	"fmt"
	"math"
	"sort"
)

// Matrix expands a Pauli decomposition over n qubits into its dense matrix.
// Every Hamiltonian this package produces is real symmetric (the YY term
// contributes real entries), so the result is returned as float64; a residual
// imaginary part means the decomposition was invalid.
func Matrix(terms []PauliTerm, n int) ([][]float64, error) {
	dim := 1 << n
	re := make([][]float64, dim)
	im := make([][]float64, dim)
	for i := range re {
		re[i] = make([]float64, dim)
		im[i] = make([]float64, dim)
	}

	for _, term := range terms {
		if len(term.Word) != n {
			return nil, fmt.Errorf("pauli word %q does not cover %d qubits", term.Word, n)
		}
		for col := 0; col < dim; col++ {
			target := col
			phaseRe, phaseIm := 1.0, 0.0
			for q := 0; q < n; q++ {
				bit := (target >> q) & 1
				switch term.Word[q] {
				case 'I':
				case 'X':
					target ^= 1 << q
				case 'Y':
					// Y|0> = i|1>, Y|1> = -i|0>
					target ^= 1 << q
					if bit == 0 {
						phaseRe, phaseIm = -phaseIm, phaseRe
					} else {
						phaseRe, phaseIm = phaseIm, -phaseRe
					}
				case 'Z':
					if bit == 1 {
						phaseRe, phaseIm = -phaseRe, -phaseIm
					}
				default:
					return nil, fmt.Errorf("invalid pauli operator %q in word %q", term.Word[q], term.Word)
				}
			}
			re[target][col] += term.Coeff * phaseRe
			im[target][col] += term.Coeff * phaseIm
		}
	}

	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			if math.Abs(im[i][j]) > 1e-12 {
				return nil, fmt.Errorf("decomposition is not real symmetric: imag %g at (%d,%d)", im[i][j], i, j)
			}
		}
	}
	return re, nil
}

// EigenvaluesSym returns the eigenvalues of a real symmetric matrix in
// ascending order, computed by cyclic Jacobi rotations. Matrices here are
// 4x4, so convergence is immediate.
func EigenvaluesSym(m [][]float64) ([]float64, error) {
	n := len(m)
	a := make([][]float64, n)
	for i := range a {
		if len(m[i]) != n {
			return nil, fmt.Errorf("matrix is not square: row %d has %d entries", i, len(m[i]))
		}
		a[i] = append([]float64(nil), m[i]...)
	}

	const maxSweeps = 100
	for sweep := 0; sweep < maxSweeps; sweep++ {
		off := 0.0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				off += a[i][j] * a[i][j]
			}
		}
		if off < 1e-22 {
			break
		}
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				if math.Abs(a[p][q]) < 1e-15 {
					continue
				}
				theta := (a[q][q] - a[p][p]) / (2 * a[p][q])
				t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				c := 1 / math.Sqrt(t*t+1)
				s := t * c
				for k := 0; k < n; k++ {
					akp, akq := a[k][p], a[k][q]
					a[k][p] = c*akp - s*akq
					a[k][q] = s*akp + c*akq
				}
				for k := 0; k < n; k++ {
					apk, aqk := a[p][k], a[q][k]
					a[p][k] = c*apk - s*aqk
					a[q][k] = s*apk + c*aqk
				}
			}
		}
	}

	eigs := make([]float64, n)
	for i := 0; i < n; i++ {
		eigs[i] = a[i][i]
	}
	sort.Float64s(eigs)
	return eigs, nil
}
