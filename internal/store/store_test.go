package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"cusp/internal/config"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cusp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateRun_ConfigRoundTrip(t *testing.T) {
	s := openTestStore(t)

	cfg := config.DefaultConfig()
	cfg.Run.Trials = 17
	cfg.Noise.Enabled = true

	runID, err := s.CreateRun(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	loaded, err := s.RunConfig(runID)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("config round trip mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestRunConfig_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.RunConfig("no-such-run")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestLatestRun(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LatestRun()
	require.ErrorIs(t, err, ErrRunNotFound)

	first, err := s.CreateRun(config.DefaultConfig())
	require.NoError(t, err)
	second, err := s.CreateRun(config.DefaultConfig())
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	latest, err := s.LatestRun()
	require.NoError(t, err)
	require.Equal(t, second, latest)
}

func TestStageOrdering(t *testing.T) {
	s := openTestStore(t)
	runID, err := s.CreateRun(config.DefaultConfig())
	require.NoError(t, err)

	// Nothing persisted yet: every stage's inputs are missing.
	_, err = s.StageOne(runID)
	require.ErrorIs(t, err, ErrStageMissing)
	_, _, err = s.Encoder(runID)
	require.ErrorIs(t, err, ErrStageMissing)
	_, err = s.Finals(runID)
	require.ErrorIs(t, err, ErrStageMissing)

	require.NoError(t, s.PutStageOne(runID, 0.75, []float64{0.1, 0.2, 0.3}, -1.84))
	require.NoError(t, s.PutStageOne(runID, 0.90, []float64{0.4, 0.5, 0.6}, -1.70))

	params, err := s.StageOne(runID)
	require.NoError(t, err)
	require.Len(t, params, 2)
	require.Equal(t, []float64{0.1, 0.2, 0.3}, params[0.75])

	energies, err := s.StageOneEnergies(runID)
	require.NoError(t, err)
	require.InDelta(t, -1.84, energies[0.75], 1e-12)

	// Stage 2 still missing until its vector lands.
	_, _, err = s.Encoder(runID)
	require.ErrorIs(t, err, ErrStageMissing)

	require.NoError(t, s.PutEncoder(runID, []float64{1, 2, 3, 4}, 0.993))
	enc, fid, err := s.Encoder(runID)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3, 4}, enc)
	require.InDelta(t, 0.993, fid, 1e-12)

	require.NoError(t, s.PutFinal(runID, 0.90, []float64{0.7, 0.8}, -1.69))
	require.NoError(t, s.PutFinal(runID, 0.75, []float64{0.9, 1.0}, -1.83))

	finals, err := s.Finals(runID)
	require.NoError(t, err)
	require.Len(t, finals, 2)
	// Ordered by bond length.
	require.Equal(t, 0.75, finals[0].Bond)
	require.Equal(t, 0.90, finals[1].Bond)
	require.InDelta(t, -1.83, finals[0].Energy, 1e-12)
}

func TestPutStageOne_Replaces(t *testing.T) {
	s := openTestStore(t)
	runID, err := s.CreateRun(config.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, s.PutStageOne(runID, 0.60, []float64{1}, -1.0))
	require.NoError(t, s.PutStageOne(runID, 0.60, []float64{2}, -1.5))

	params, err := s.StageOne(runID)
	require.NoError(t, err)
	require.Len(t, params, 1)
	require.Equal(t, []float64{2}, params[0.60])
}

func TestRunsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	a, err := s.CreateRun(config.DefaultConfig())
	require.NoError(t, err)
	b, err := s.CreateRun(config.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, s.PutStageOne(a, 0.75, []float64{1}, -1.8))

	_, err = s.StageOne(b)
	if !errors.Is(err, ErrStageMissing) {
		t.Errorf("run b should not see run a's stage 1 output, got %v", err)
	}
}
