// Package pipeline sequences the three compression stages and enforces their
// ordering through the run store: training needs Stage 1 vectors, refinement
// needs both earlier stages, and every stage persists before the next begins.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"cusp/internal/config"
	"cusp/internal/latent"
	"cusp/internal/logging"
	"cusp/internal/qae"
	"cusp/internal/store"
	"cusp/internal/vqe"
)

// Pipeline drives the staged workflow against one run record.
type Pipeline struct {
	cfg   *config.Config
	store *store.RunStore
}

// New returns a pipeline over the given configuration and run store.
func New(cfg *config.Config, st *store.RunStore) *Pipeline {
	return &Pipeline{cfg: cfg, store: st}
}

// Start creates a fresh run record carrying the configuration snapshot and
// returns its identifier.
func (p *Pipeline) Start() (string, error) {
	if !p.cfg.Run.Enabled {
		return "", fmt.Errorf("run is disabled in the configuration")
	}
	id, err := p.store.CreateRun(p.cfg)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	logging.Get(logging.CategoryPipeline).Info("created run %s", id)
	return id, nil
}

// Prepare runs Stage 1 for every configured bond length and persists the
// accepted parameter vectors.
func (p *Pipeline) Prepare(ctx context.Context, runID string) ([]vqe.Result, error) {
	log := logging.Get(logging.CategoryPipeline)
	log.Info("run %s: stage 1 over %d bond length(s)", runID, len(p.cfg.Run.BondLengths))

	results, err := vqe.PrepareAll(ctx, p.cfg)
	if err != nil {
		return nil, fmt.Errorf("stage 1: %w", err)
	}
	for _, r := range results {
		if err := p.store.PutStageOne(runID, r.Bond, r.Params, r.Energy); err != nil {
			return nil, fmt.Errorf("persist stage 1 bond %.4f: %w", r.Bond, err)
		}
	}
	if err := p.store.TouchFile("stage1"); err != nil {
		log.Warn("stage 1 marker: %v", err)
	}
	return results, nil
}

// Train runs Stage 2 against the persisted Stage 1 vectors. It fails with
// the store's stage-missing error when Stage 1 has not run for this record.
func (p *Pipeline) Train(ctx context.Context, runID string) (qae.Result, error) {
	log := logging.Get(logging.CategoryPipeline)

	stage1, err := p.loadStageOne(runID)
	if err != nil {
		return qae.Result{}, err
	}
	log.Info("run %s: stage 2 over %d input state(s)", runID, len(stage1))

	res, err := qae.Train(ctx, p.cfg, stage1)
	if err != nil {
		return qae.Result{}, fmt.Errorf("stage 2: %w", err)
	}
	if err := p.store.PutEncoder(runID, res.Params, res.Fidelity); err != nil {
		return qae.Result{}, fmt.Errorf("persist encoder: %w", err)
	}
	if err := p.store.TouchFile("stage2"); err != nil {
		log.Warn("stage 2 marker: %v", err)
	}
	return res, nil
}

// Refine runs Stage 3 against the persisted encoder and stores the final
// per-bond vectors and energies. Both earlier stages must have run.
func (p *Pipeline) Refine(ctx context.Context, runID string) ([]latent.Result, error) {
	log := logging.Get(logging.CategoryPipeline)

	if _, err := p.loadStageOne(runID); err != nil {
		return nil, err
	}
	encoder, fidelity, err := p.store.Encoder(runID)
	if err != nil {
		return nil, fmt.Errorf("load encoder: %w", err)
	}
	log.Info("run %s: stage 3 against encoder with fidelity %.6f", runID, fidelity)

	results, err := latent.RefineAll(ctx, p.cfg, encoder)
	if err != nil {
		return nil, fmt.Errorf("stage 3: %w", err)
	}
	for _, r := range results {
		if err := p.store.PutFinal(runID, r.Bond, r.Params, r.Energy); err != nil {
			return nil, fmt.Errorf("persist stage 3 bond %.4f: %w", r.Bond, err)
		}
	}
	if err := p.store.TouchFile("stage3"); err != nil {
		log.Warn("stage 3 marker: %v", err)
	}
	return results, nil
}

// Run executes all three stages in order against a fresh run record and
// returns its identifier.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	timer := logging.StartTimer(logging.CategoryPipeline, "Run")
	defer timer.Stop()

	runID, err := p.Start()
	if err != nil {
		return "", err
	}
	if _, err := p.Prepare(ctx, runID); err != nil {
		return runID, err
	}
	if _, err := p.Train(ctx, runID); err != nil {
		return runID, err
	}
	if _, err := p.Refine(ctx, runID); err != nil {
		return runID, err
	}
	return runID, nil
}

// loadStageOne reconstructs the Stage 1 results from the store, sorted by
// bond length.
func (p *Pipeline) loadStageOne(runID string) ([]vqe.Result, error) {
	params, err := p.store.StageOne(runID)
	if err != nil {
		return nil, fmt.Errorf("load stage 1: %w", err)
	}
	energies, err := p.store.StageOneEnergies(runID)
	if err != nil {
		return nil, fmt.Errorf("load stage 1 energies: %w", err)
	}
	results := make([]vqe.Result, 0, len(params))
	for bond, ps := range params {
		results = append(results, vqe.Result{Bond: bond, Params: ps, Energy: energies[bond]})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Bond < results[j].Bond })
	return results, nil
}
