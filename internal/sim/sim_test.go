package sim

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"cusp/internal/circuit"
)

const tol = 1e-12

func TestBellState(t *testing.T) {
	c := circuit.New(2)
	c.Add("H", []int{0})
	c.Add("CX", []int{0, 1})

	s, err := Run(c)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := 1.0 / math.Sqrt2
	if math.Abs(real(s.Amps[0])-want) > tol {
		t.Errorf("amp(|00>) = %v, want %v", s.Amps[0], want)
	}
	if math.Abs(real(s.Amps[3])-want) > tol {
		t.Errorf("amp(|11>) = %v, want %v", s.Amps[3], want)
	}
	if cmplx.Abs(s.Amps[1]) > tol || cmplx.Abs(s.Amps[2]) > tol {
		t.Errorf("odd-parity amplitudes nonzero: %v %v", s.Amps[1], s.Amps[2])
	}
}

func TestRYRotation(t *testing.T) {
	theta := 0.73
	c := circuit.New(1)
	c.Add("RY", []int{0}, theta)

	s, err := Run(c)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got, want := real(s.Amps[0]), math.Cos(theta/2); math.Abs(got-want) > tol {
		t.Errorf("amp(|0>) = %v, want %v", got, want)
	}
	if got, want := real(s.Amps[1]), math.Sin(theta/2); math.Abs(got-want) > tol {
		t.Errorf("amp(|1>) = %v, want %v", got, want)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	c := circuit.New(2)
	c.Add("RY", []int{0}, 0.4)
	c.Add("CZ", []int{0, 1})
	c.Add("RZ", []int{1}, -1.1)
	c.Add("RY", []int{1}, 2.2)

	inv, err := c.Inverse()
	if err != nil {
		t.Fatalf("Inverse failed: %v", err)
	}
	if err := c.Append(inv); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	s, err := Run(c)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// U U^-1 |00> = |00>
	if math.Abs(cmplx.Abs(s.Amps[0])-1) > 1e-9 {
		t.Errorf("round trip did not return to |00>: %v", s.Amps)
	}
}

func TestPauliExpectation(t *testing.T) {
	// |+> has <X> = 1, <Z> = 0.
	c := circuit.New(1)
	c.Add("H", []int{0})
	s, err := Run(c)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	x, err := PauliExpectation(s, "X")
	if err != nil {
		t.Fatalf("PauliExpectation failed: %v", err)
	}
	if math.Abs(x-1) > tol {
		t.Errorf("<X> on |+> = %v, want 1", x)
	}
	z, err := PauliExpectation(s, "Z")
	if err != nil {
		t.Fatalf("PauliExpectation failed: %v", err)
	}
	if math.Abs(z) > tol {
		t.Errorf("<Z> on |+> = %v, want 0", z)
	}

	// Bell state has <ZZ> = <XX> = 1, <YY> = -1.
	bell := circuit.New(2)
	bell.Add("H", []int{0})
	bell.Add("CX", []int{0, 1})
	bs, err := Run(bell)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for word, want := range map[string]float64{"ZZ": 1, "XX": 1, "YY": -1, "IZ": 0} {
		got, err := PauliExpectation(bs, word)
		if err != nil {
			t.Fatalf("PauliExpectation(%s) failed: %v", word, err)
		}
		if math.Abs(got-want) > tol {
			t.Errorf("<%s> on Bell = %v, want %v", word, got, want)
		}
	}

	if _, err := PauliExpectation(bs, "Z"); err == nil {
		t.Error("expected error for short pauli word")
	}
	if _, err := PauliExpectation(bs, "ZQ"); err == nil {
		t.Error("expected error for invalid pauli operator")
	}
}

func TestProb0(t *testing.T) {
	theta := 1.1
	c := circuit.New(2)
	c.Add("RY", []int{1}, theta)
	s, err := Run(c)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := math.Cos(theta/2) * math.Cos(theta/2)
	if got := s.Prob0(1); math.Abs(got-want) > tol {
		t.Errorf("Prob0(1) = %v, want %v", got, want)
	}
	if got := s.Prob0(0); math.Abs(got-1) > tol {
		t.Errorf("Prob0(0) = %v, want 1", got)
	}
}

func TestNoisyRun_ZeroStrengthMatchesExact(t *testing.T) {
	c := circuit.New(2)
	c.Add("H", []int{0})
	c.Add("CX", []int{0, 1})
	c.Add("RY", []int{1}, 0.3)

	exact, err := Run(c)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	noisy, err := NoisyRun(c, 0, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NoisyRun failed: %v", err)
	}
	for i := range exact.Amps {
		if cmplx.Abs(exact.Amps[i]-noisy.Amps[i]) > tol {
			t.Fatalf("amp %d differs: %v vs %v", i, exact.Amps[i], noisy.Amps[i])
		}
	}
}

func TestNoisyRun_PreservesNorm(t *testing.T) {
	c := circuit.New(2)
	c.Add("H", []int{0})
	c.Add("CX", []int{0, 1})

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		s, err := NoisyRun(c, 0.5, rng)
		if err != nil {
			t.Fatalf("NoisyRun failed: %v", err)
		}
		norm := 0.0
		for _, a := range s.Amps {
			norm += real(a * cmplx.Conj(a))
		}
		if math.Abs(norm-1) > 1e-9 {
			t.Fatalf("trial %d: norm %v", trial, norm)
		}
	}
}

func TestUnsupportedGate(t *testing.T) {
	c := circuit.New(1)
	c.Add("FOO", []int{0})
	if _, err := Run(c); err == nil {
		t.Fatal("expected error for unsupported gate")
	}
}
