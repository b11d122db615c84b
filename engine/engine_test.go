package engine

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestStartEchoAndSubscribe(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Argv = []string{"echo", "engine-test"}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Start(ctx, cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sub, err := s.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	var output strings.Builder
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				t.Fatal("subscription closed before ExitCode")
			}
			if ev.Kind == KindEventOutput {
				output.Write(ev.Output)
			}
			if ev.Kind == KindEventExitCode {
				if ev.ExitCode != 0 {
					t.Errorf("ExitCode = %d, want 0", ev.ExitCode)
				}
				if !strings.Contains(output.String(), "engine-test") {
					t.Errorf("output = %q, want it to contain engine-test", output.String())
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for ExitCode")
		}
	}
}

func TestExpectAndSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Argv = []string{"/bin/sh", "-c", "sleep 0.1; echo ready"}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Start(ctx, cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Submit(Exit{})

	if err := s.Expect("ready"); err != nil {
		t.Fatalf("Expect: %v", err)
	}

	snap, err := s.Snapshot(false)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	rows := strings.Split(snap.Text, "\n")
	if len(rows) == 0 || !strings.Contains(rows[0], "ready") {
		t.Errorf("first row = %q, want it to contain ready", rows[0])
	}

	code, err := s.WaitExit()
	if err != nil {
		t.Fatalf("WaitExit: %v", err)
	}
	if code != 0 {
		t.Errorf("WaitExit = %d, want 0", code)
	}
}

func TestSplitCommandLineFallsBackToShellOnMetacharacters(t *testing.T) {
	argv, err := splitCommandLine("echo hi | cat")
	if err != nil {
		t.Fatalf("splitCommandLine: %v", err)
	}
	want := []string{"/bin/sh", "-c", "echo hi | cat"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Fatalf("argv = %v, want %v", argv, want)
		}
	}
}

func TestSplitCommandLineSplitsPlainWords(t *testing.T) {
	argv, err := splitCommandLine(`vim -u NONE "my file.txt"`)
	if err != nil {
		t.Fatalf("splitCommandLine: %v", err)
	}
	want := []string{"vim", "-u", "NONE", "my file.txt"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Fatalf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}
