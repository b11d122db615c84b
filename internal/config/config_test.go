package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultBaseline(t *testing.T) {
	cfg := Default()
	if cfg.Cols != 80 || cfg.Rows != 24 {
		t.Fatalf("Cols/Rows = %d/%d, want 80/24", cfg.Cols, cfg.Rows)
	}
	if cfg.Verbose {
		t.Fatal("Verbose = true, want false")
	}
	if cfg.Timing.QuiescenceWindow != 200*time.Millisecond {
		t.Fatalf("QuiescenceWindow = %v, want 200ms", cfg.Timing.QuiescenceWindow)
	}
}

func TestLoadLayersFileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "htrunner.yaml")
	content := "cols: 100\nrows: 40\ntiming:\n  quiescenceWindow: 500ms\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"-rows", "50"}, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cols != 100 {
		t.Fatalf("Cols = %d, want 100 (from file)", cfg.Cols)
	}
	if cfg.Rows != 50 {
		t.Fatalf("Rows = %d, want 50 (flag overrides file)", cfg.Rows)
	}
	if cfg.Timing.QuiescenceWindow != 500*time.Millisecond {
		t.Fatalf("QuiescenceWindow = %v, want 500ms", cfg.Timing.QuiescenceWindow)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cols != 80 || cfg.Rows != 24 {
		t.Fatalf("Cols/Rows = %d/%d, want defaults 80/24", cfg.Cols, cfg.Rows)
	}
}

func TestLoadRejectsOutOfRangeGeometry(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if _, err := Load(fs, []string{"-cols", "0"}, ""); err == nil {
		t.Fatal("Load with cols=0, want error")
	}

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	if _, err := Load(fs, []string{"-rows", "2000"}, ""); err == nil {
		t.Fatal("Load with rows=2000, want error")
	}
}

func TestLoadReadsTestShellFromEnv(t *testing.T) {
	t.Setenv(TestShellEnvVar, "/bin/dash")
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TestShell != "/bin/dash" {
		t.Fatalf("TestShell = %q, want /bin/dash", cfg.TestShell)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if _, err := Load(fs, nil, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load with missing config file, want error")
	}
}
