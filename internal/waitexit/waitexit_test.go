package waitexit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunReleasesOnExitLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exit")

	done := make(chan error, 1)
	go func() { done <- Run(path) }()

	deadline := time.Now().Add(time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("fifo never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open for write: %v", err)
	}
	if _, err := w.WriteString("exit\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after release write")
	}
}

func TestRunIgnoresNonExitLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exit")

	done := make(chan error, 1)
	go func() { done <- Run(path) }()

	deadline := time.Now().Add(time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("fifo never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open for write: %v", err)
	}
	w.WriteString("not yet\n")

	select {
	case <-done:
		t.Fatal("Run returned before the exit line was written")
	case <-time.After(100 * time.Millisecond):
	}

	w.WriteString("exit\n")
	w.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after release write")
	}
}
