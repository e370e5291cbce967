// Package store persists a run's configuration record and the per-stage
// outputs: Stage 1 parameter vectors keyed by bond length, the single shared
// Stage 2 encoder vector, and Stage 3 final vectors with their energies. It
// also enforces the pipeline's ordering rule: a stage cannot load inputs its
// predecessor never wrote.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"cusp/internal/config"
	"cusp/internal/logging"
)

var (
	// ErrRunNotFound is returned when a run ID has no record.
	ErrRunNotFound = errors.New("run not found")
	// ErrStageMissing is returned when a stage's inputs were never
	// persisted by the previous stage.
	ErrStageMissing = errors.New("previous stage output missing")
)

// FinalResult is one Stage 3 output row.
type FinalResult struct {
	Bond   float64
	Params []float64
	Energy float64
}

// RunStore is the SQLite-backed run store. A single writer connection with
// WAL journaling, following the same discipline as the rest of the data
// layer.
type RunStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// Open initializes the SQLite database at the given path.
func Open(path string) (*RunStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.Get(logging.CategoryStore).Debug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.Get(logging.CategoryStore).Debug("failed to set journal_mode=WAL: %v", err)
	}

	s := &RunStore{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Get(logging.CategoryStore).Info("run store ready at %s", path)
	return s, nil
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *RunStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		config TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS stage1_params (
		run_id TEXT NOT NULL REFERENCES runs(id),
		bond REAL NOT NULL,
		params TEXT NOT NULL,
		energy REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, bond)
	);
	CREATE TABLE IF NOT EXISTS stage2_params (
		run_id TEXT PRIMARY KEY REFERENCES runs(id),
		params TEXT NOT NULL,
		fidelity REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS stage3_results (
		run_id TEXT NOT NULL REFERENCES runs(id),
		bond REAL NOT NULL,
		params TEXT NOT NULL,
		energy REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, bond)
	);
	CREATE INDEX IF NOT EXISTS idx_stage1_run ON stage1_params(run_id);
	CREATE INDEX IF NOT EXISTS idx_stage3_run ON stage3_results(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateRun persists the configuration record and returns the new run ID.
func (s *RunStore) CreateRun(cfg *config.Config) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	id := uuid.NewString()
	if _, err := s.db.Exec("INSERT INTO runs (id, config) VALUES (?, ?)", id, string(blob)); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	logging.Get(logging.CategoryStore).Info("created run %s", id)
	return id, nil
}

// RunConfig loads the configuration record persisted with a run.
func (s *RunStore) RunConfig(runID string) (*config.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRow("SELECT config FROM runs WHERE id = ?", runID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(blob), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// LatestRun returns the most recently created run ID.
func (s *RunStore) LatestRun() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRow("SELECT id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query runs: %w", err)
	}
	return id, nil
}

// PutStageOne stores a Stage 1 parameter vector for one bond length,
// replacing any earlier vector for the same bond.
func (s *RunStore) PutStageOne(runID string, bond float64, params []float64, energy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO stage1_params (run_id, bond, params, energy) VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id, bond) DO UPDATE SET params=excluded.params, energy=excluded.energy`,
		runID, bond, string(blob), energy)
	if err != nil {
		return fmt.Errorf("failed to store stage 1 params: %w", err)
	}
	return nil
}

// StageOne loads every Stage 1 vector of a run keyed by bond length. Returns
// ErrStageMissing when the stage never ran.
func (s *RunStore) StageOne(runID string) (map[float64][]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT bond, params FROM stage1_params WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage 1 params: %w", err)
	}
	defer rows.Close()

	out := make(map[float64][]float64)
	for rows.Next() {
		var bond float64
		var blob string
		if err := rows.Scan(&bond, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan stage 1 row: %w", err)
		}
		var params []float64
		if err := json.Unmarshal([]byte(blob), &params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stage 1 params: %w", err)
		}
		out[bond] = params
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: stage 1 for run %s", ErrStageMissing, runID)
	}
	return out, nil
}

// StageOneEnergies loads the Stage 1 energies keyed by bond length.
func (s *RunStore) StageOneEnergies(runID string) (map[float64]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT bond, energy FROM stage1_params WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage 1 energies: %w", err)
	}
	defer rows.Close()

	out := make(map[float64]float64)
	for rows.Next() {
		var bond, energy float64
		if err := rows.Scan(&bond, &energy); err != nil {
			return nil, fmt.Errorf("failed to scan stage 1 row: %w", err)
		}
		out[bond] = energy
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: stage 1 for run %s", ErrStageMissing, runID)
	}
	return out, nil
}

// PutEncoder stores the shared Stage 2 encoder vector for a run.
func (s *RunStore) PutEncoder(runID string, params []float64, fidelity float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO stage2_params (run_id, params, fidelity) VALUES (?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET params=excluded.params, fidelity=excluded.fidelity`,
		runID, string(blob), fidelity)
	if err != nil {
		return fmt.Errorf("failed to store encoder params: %w", err)
	}
	return nil
}

// Encoder loads the shared Stage 2 encoder vector. Returns ErrStageMissing
// when Stage 2 never ran.
func (s *RunStore) Encoder(runID string) ([]float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	var fidelity float64
	err := s.db.QueryRow("SELECT params, fidelity FROM stage2_params WHERE run_id = ?", runID).Scan(&blob, &fidelity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%w: stage 2 for run %s", ErrStageMissing, runID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load encoder params: %w", err)
	}
	var params []float64
	if err := json.Unmarshal([]byte(blob), &params); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal encoder params: %w", err)
	}
	return params, fidelity, nil
}

// PutFinal stores a Stage 3 result for one bond length.
func (s *RunStore) PutFinal(runID string, bond float64, params []float64, energy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO stage3_results (run_id, bond, params, energy) VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id, bond) DO UPDATE SET params=excluded.params, energy=excluded.energy`,
		runID, bond, string(blob), energy)
	if err != nil {
		return fmt.Errorf("failed to store stage 3 result: %w", err)
	}
	return nil
}

// Finals loads the Stage 3 results ordered by bond length. Returns
// ErrStageMissing when Stage 3 never ran.
func (s *RunStore) Finals(runID string) ([]FinalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT bond, params, energy FROM stage3_results WHERE run_id = ? ORDER BY bond", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage 3 results: %w", err)
	}
	defer rows.Close()

	var out []FinalResult
	for rows.Next() {
		var r FinalResult
		var blob string
		if err := rows.Scan(&r.Bond, &blob, &r.Energy); err != nil {
			return nil, fmt.Errorf("failed to scan stage 3 row: %w", err)
		}
		if err := json.Unmarshal([]byte(blob), &r.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stage 3 params: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: stage 3 for run %s", ErrStageMissing, runID)
	}
	return out, nil
}

// TouchFile writes a marker file next to the database after every stage so
// directory watchers can react without polling SQLite.
func (s *RunStore) TouchFile(stage string) error {
	marker := filepath.Join(filepath.Dir(s.path), fmt.Sprintf("%s.done", stage))
	return os.WriteFile(marker, []byte(time.Now().Format(time.RFC3339)+"\n"), 0644)
}
