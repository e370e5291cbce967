package circuit

import "fmt"

// The three parameterized circuit families used by the pipeline. All of them
// follow the hardware-efficient pattern: a column of RY rotations per layer
// with a CZ entangler chain between columns.

// PrepParamCount returns the parameter count of the state-preparation ansatz.
func PrepParamCount(qubits, layers int) int { return qubits * (layers + 1) }

// StatePrep builds the variational state-preparation ansatz over the full
// register.
func StatePrep(qubits, layers int, params []float64) (*Circuit, error) {
	return hardwareEfficient(qubits, layers, params)
}

// EncoderParamCount returns the parameter count of the autoencoder's encoder.
func EncoderParamCount(qubits, layers int) int { return qubits * (layers + 1) }

// Encoder builds the trainable compression unitary over the full register.
// After the encoder runs, the trash qubits (the high indexes above the latent
// block) should be close to |0>.
func Encoder(qubits, layers int, params []float64) (*Circuit, error) {
	return hardwareEfficient(qubits, layers, params)
}

// LatentParamCount returns the parameter count of the latent preparation
// block: one RY and one RZ per latent qubit.
func LatentParamCount(latentQubits int) int { return 2 * latentQubits }

// Synthesis builds the Stage 3 circuit: prepare the latent qubits from the
// reduced parameter vector, leave the trash qubits in |0>, then run the
// frozen decoder (the encoder's adjoint).
func Synthesis(qubits, latentQubits int, latentParams []float64, encoder *Circuit) (*Circuit, error) {
	if latentQubits < 1 || latentQubits >= qubits {
		return nil, fmt.Errorf("latent block must be smaller than the register: %d of %d", latentQubits, qubits)
	}
	if want := LatentParamCount(latentQubits); len(latentParams) != want {
		return nil, fmt.Errorf("latent parameter count: want %d, got %d", want, len(latentParams))
	}
	c := New(qubits)
	for q := 0; q < latentQubits; q++ {
		c.Add("RY", []int{q}, latentParams[2*q])
		c.Add("RZ", []int{q}, latentParams[2*q+1])
	}
	decoder, err := encoder.Inverse()
	if err != nil {
		return nil, fmt.Errorf("failed to invert encoder: %w", err)
	}
	if err := c.Append(decoder); err != nil {
		return nil, err
	}
	return c, nil
}

func hardwareEfficient(qubits, layers int, params []float64) (*Circuit, error) {
	if qubits < 1 {
		return nil, fmt.Errorf("ansatz needs at least one qubit, got %d", qubits)
	}
	if layers < 0 {
		return nil, fmt.Errorf("negative layer count %d", layers)
	}
	want := qubits * (layers + 1)
	if len(params) != want {
		return nil, fmt.Errorf("parameter count: want %d for %d qubits x %d layers, got %d",
			want, qubits, layers, len(params))
	}
	c := New(qubits)
	p := 0
	for l := 0; l <= layers; l++ {
		for q := 0; q < qubits; q++ {
			c.Add("RY", []int{q}, params[p])
			p++
		}
		if l < layers {
			for q := 0; q < qubits-1; q++ {
				c.Add("CZ", []int{q, q + 1})
			}
		}
	}
	return c, nil
}
