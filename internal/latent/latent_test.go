package latent

import (
	"context"
	"math"
	"testing"

	"cusp/internal/chem"
	"cusp/internal/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Run.BondLengths = []float64{0.75}
	cfg.Noise.Enabled = false
	cfg.Optimizer.Method = "spsa"
	cfg.Optimizer.MaxIterations = 800
	cfg.Optimizer.EnergyThreshold = 0.1
	cfg.Optimizer.RetryBudget = 2
	cfg.Optimizer.Workers = 2
	cfg.Optimizer.Seed = 13
	return cfg
}

// identityEncoder returns an all-zero encoder vector. The decoder is then
// the identity, so the latent search reduces to preparing the ground state
// directly with one RY/RZ pair on the latent qubit.
func identityEncoder(cfg *config.Config) []float64 {
	return make([]float64, cfg.Circuit.Qubits*(cfg.Circuit.EncoderLayers+1))
}

func TestRefineBond_EnergyAboveGround(t *testing.T) {
	cfg := testConfig()
	// Threshold loose enough that any reasonable search passes; the real
	// assertion is the variational bound.
	cfg.Optimizer.EnergyThreshold = 1.0

	res, err := RefineBond(context.Background(), cfg, identityEncoder(cfg), 0.75, 1)
	if err != nil {
		t.Fatalf("RefineBond failed: %v", err)
	}
	ground, _ := chem.GroundEnergy(0.75)
	if res.Energy < ground-1e-9 {
		t.Errorf("synthesized energy %v below exact ground %v", res.Energy, ground)
	}
	if res.Exact != ground {
		t.Errorf("stored exact energy %v, want %v", res.Exact, ground)
	}
	if want := 2 * cfg.Circuit.LatentQubits; len(res.Params) != want {
		t.Errorf("expected %d latent parameters, got %d", want, len(res.Params))
	}
}

func TestRefineBond_ImprovesOnRandomStart(t *testing.T) {
	cfg := testConfig()
	cfg.Optimizer.EnergyThreshold = 1.0

	res, err := RefineBond(context.Background(), cfg, identityEncoder(cfg), 0.90, 7)
	if err != nil {
		t.Fatalf("RefineBond failed: %v", err)
	}
	ground, _ := chem.GroundEnergy(0.90)
	// The |00> baseline sits well above ground for H2; the search must at
	// least beat sitting still.
	terms, _ := chem.Hamiltonian(0.90)
	baseline := 0.0
	for _, term := range terms {
		switch term.Word {
		case "II", "ZI", "IZ", "ZZ":
			baseline += term.Coeff
		}
	}
	if res.Energy >= baseline {
		t.Errorf("search did not improve on |00>: %v vs baseline %v (ground %v)",
			res.Energy, baseline, ground)
	}
}

func TestRefineBond_RetryBudgetExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.Optimizer.EnergyThreshold = 0
	cfg.Optimizer.MaxIterations = 5
	cfg.Optimizer.RetryBudget = 2

	res, err := RefineBond(context.Background(), cfg, identityEncoder(cfg), 0.75, 1)
	if err != nil {
		t.Fatalf("RefineBond failed: %v", err)
	}
	if res.Accepted {
		t.Error("result accepted despite impossible threshold")
	}
	if res.Attempts != cfg.Optimizer.RetryBudget+1 {
		t.Errorf("expected %d attempts, got %d", cfg.Optimizer.RetryBudget+1, res.Attempts)
	}
}

func TestRefineBond_BadEncoder(t *testing.T) {
	cfg := testConfig()
	if _, err := RefineBond(context.Background(), cfg, []float64{1, 2}, 0.75, 1); err == nil {
		t.Fatal("expected error for wrong encoder parameter count")
	}
}

func TestRefineBond_UnknownBond(t *testing.T) {
	cfg := testConfig()
	if _, err := RefineBond(context.Background(), cfg, identityEncoder(cfg), 5.0, 1); err == nil {
		t.Fatal("expected error for bond outside the table")
	}
}

func TestRefineAll_SortedResults(t *testing.T) {
	cfg := testConfig()
	cfg.Run.BondLengths = []float64{0.90, 0.60}
	cfg.Optimizer.MaxIterations = 200
	cfg.Optimizer.EnergyThreshold = 1.0
	cfg.Optimizer.RetryBudget = 0

	results, err := RefineAll(context.Background(), cfg, identityEncoder(cfg))
	if err != nil {
		t.Fatalf("RefineAll failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !(results[0].Bond < results[1].Bond) {
		t.Errorf("results not sorted by bond: %v, %v", results[0].Bond, results[1].Bond)
	}
	for _, r := range results {
		if math.IsNaN(r.Energy) || math.IsInf(r.Energy, 0) {
			t.Errorf("bond %v produced a non-finite energy", r.Bond)
		}
	}
}
