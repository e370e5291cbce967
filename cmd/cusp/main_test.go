package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cusp/internal/config"
	"cusp/internal/store"
)

func TestRunInitWritesConfig(t *testing.T) {
	logger = zap.NewNop()
	configPath = filepath.Join(t.TempDir(), "cusp.yaml")

	output := captureOutput(t, func() {
		if err := runInit(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runInit returned error: %v", err)
		}
	})
	if !strings.Contains(output, "Wrote default configuration") {
		t.Fatalf("expected confirmation message, got: %s", output)
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if err := loaded.Validate(); err != nil {
		t.Fatalf("written config does not validate: %v", err)
	}
}

func TestRunInitRefusesOverwrite(t *testing.T) {
	logger = zap.NewNop()
	configPath = filepath.Join(t.TempDir(), "cusp.yaml")
	if err := os.WriteFile(configPath, []byte("name: existing\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := runInit(&cobra.Command{}, nil); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestResolveRun(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "cusp.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	if _, err := resolveRun(st, nil); err == nil {
		t.Fatal("expected error with no runs persisted")
	}

	id, err := st.CreateRun(config.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	got, err := resolveRun(st, nil)
	if err != nil {
		t.Fatalf("resolveRun returned error: %v", err)
	}
	if got != id {
		t.Fatalf("expected latest run %s, got %s", id, got)
	}

	got, err = resolveRun(st, []string{"explicit"})
	if err != nil {
		t.Fatalf("resolveRun returned error: %v", err)
	}
	if got != "explicit" {
		t.Fatalf("explicit run ID not honored, got %s", got)
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		_, _ = io.Copy(&buf, rErr)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return <-done
}
