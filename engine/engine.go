// Package engine is the library-addressable entry point for the headless
// terminal-session engine: start a session, submit commands, subscribe to
// events. The PTY Driver, Terminal Model, Session Broker, and Exit
// Coordinator are all implementation detail behind this one surface; a
// JSON-lines protocol shim (package protocol) sits beside it as a thin
// adapter for callers that want a byte-stream transport instead.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/htrunner/htrunner/internal/broker"
	"github.com/htrunner/htrunner/internal/term"
)

// Re-exported types. Aliasing rather than wrapping keeps the broker package
// internal while letting embedders name these types through engine alone.
type (
	EventKind    = broker.EventKind
	Event        = broker.Event
	Command      = broker.Command
	SendKeys     = broker.SendKeys
	TakeSnapshot = broker.TakeSnapshot
	Resize       = broker.Resize
	Exit         = broker.Exit
	DebugCmd     = broker.DebugCmd
	Subscription = broker.Subscription
	State        = broker.State
	Timing       = broker.Config
	Snapshot     = term.Snapshot
)

const (
	KindEventOutput   = broker.KindEventOutput
	KindEventSnapshot = broker.KindEventSnapshot
	KindEventPid      = broker.KindEventPid
	KindEventExitCode = broker.KindEventExitCode
	KindEventResize   = broker.KindEventResize
	KindEventDebug    = broker.KindEventDebug
	KindEventInit     = broker.KindEventInit

	StateStarting   = broker.StateStarting
	StateRunning    = broker.StateRunning
	StateDraining   = broker.StateDraining
	StateTerminated = broker.StateTerminated
)

// DefaultTiming returns the engine's tuned default timers (quiescence
// window, heartbeat, forced-exit wait, and the rest).
func DefaultTiming() Timing { return broker.DefaultConfig() }

// Config describes a session to start: the argument vector to spawn, the
// PTY geometry, and (optionally) a non-default timer set and logger.
type Config struct {
	Argv   []string
	Env    []string
	Cols   int
	Rows   int
	Timing Timing
	Logger *slog.Logger
}

// DefaultConfig returns a Config with an 80x24 PTY and the engine's tuned
// timers; callers still must set Argv.
func DefaultConfig() Config {
	return Config{Cols: 80, Rows: 24, Timing: DefaultTiming()}
}

// Ack confirms a command was accepted onto the broker's queue. It does not
// mean the command has taken effect yet.
type Ack struct{ Accepted bool }

// Session is one running terminal-session engine instance.
type Session struct {
	b      *broker.Broker
	timing Timing
}

// Start spawns cfg.Argv under a fresh PTY and begins the session. Canceling
// ctx requests graceful shutdown, equivalent to Submit(Exit{}).
func Start(ctx context.Context, cfg Config) (*Session, error) {
	if len(cfg.Argv) == 0 {
		return nil, errors.New("engine: Config.Argv must not be empty")
	}
	timing := cfg.Timing
	if timing == (Timing{}) {
		timing = DefaultTiming()
	}
	b, err := broker.New(cfg.Argv, cfg.Env, cfg.Cols, cfg.Rows, timing, cfg.Logger)
	if err != nil {
		return nil, err
	}
	s := &Session{b: b, timing: timing}
	go func() {
		select {
		case <-ctx.Done():
			s.b.Submit(broker.Exit{})
		case <-s.b.Done():
		}
	}()
	return s, nil
}

// StartCommandLine is a convenience for embedders holding a single command
// line rather than a pre-split argv. It follows the shell-metacharacter
// heuristic common to such splitters: a line containing pipes, redirects,
// backgrounding, command separators, newlines, variable or command
// substitution ($, `), globs (*, ?), or ~ is handed to /bin/sh -c whole (so
// that syntax keeps its meaning); anything else is split into argv with
// proper quote handling via shellquote.Split.
func StartCommandLine(ctx context.Context, cfg Config, line string) (*Session, error) {
	argv, err := splitCommandLine(line)
	if err != nil {
		return nil, err
	}
	cfg.Argv = argv
	return Start(ctx, cfg)
}

func splitCommandLine(line string) ([]string, error) {
	if containsShellMetacharacters(line) {
		return []string{"/bin/sh", "-c", line}, nil
	}
	words, err := shellquote.Split(line)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, errors.New("engine: empty command line")
	}
	return words, nil
}

func containsShellMetacharacters(line string) bool {
	for _, r := range line {
		switch r {
		case '|', '&', ';', '<', '>', '\n', '$', '`', '*', '?', '~':
			return true
		}
	}
	return false
}

// Submit enqueues cmd for processing by the session's broker.
func (s *Session) Submit(cmd Command) (Ack, error) {
	err := s.b.Submit(cmd)
	return Ack{Accepted: err == nil}, err
}

// Subscribe registers interest in the given event kinds (or everything, if
// none are given) and returns a handle streaming matching events.
func (s *Session) Subscribe(kinds ...EventKind) (*Subscription, error) {
	return s.b.Subscribe(kinds, 2*time.Second)
}

// State reports the session's current lifecycle state.
func (s *Session) State() State { return s.b.State() }

// Done is closed once the session has fully terminated.
func (s *Session) Done() <-chan struct{} { return s.b.Done() }

// Snapshot blocks for a fresh snapshot of the terminal model, honoring
// Timing.SnapshotTimeout.
func (s *Session) Snapshot(styled bool) (Snapshot, error) {
	sub, err := s.Subscribe(KindEventSnapshot)
	if err != nil {
		return Snapshot{}, err
	}
	if _, err := s.Submit(TakeSnapshot{Styled: styled}); err != nil {
		return Snapshot{}, err
	}
	deadline := time.After(s.timing.SnapshotTimeout)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return Snapshot{}, errors.New("engine: session terminated before snapshot")
			}
			if ev.Kind == KindEventSnapshot {
				return ev.Snapshot, nil
			}
		case <-deadline:
			return Snapshot{}, errors.New("engine: snapshot timed out")
		}
	}
}

// WaitExit blocks until the session's exit code is observed, honoring
// Timing.ExitTimeout.
func (s *Session) WaitExit() (int, error) {
	sub, err := s.Subscribe(KindEventExitCode)
	if err != nil {
		return 0, err
	}
	deadline := time.After(s.timing.ExitTimeout)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return 0, errors.New("engine: session terminated before exit code observed")
			}
			if ev.Kind == KindEventExitCode {
				return ev.ExitCode, nil
			}
		case <-deadline:
			return 0, errors.New("engine: wait for exit code timed out")
		}
	}
}

// Expect blocks until the session's cumulative output contains pattern,
// honoring Timing.ExpectTimeout. It opens its own subscription rather than
// consuming events another subscriber is watching.
func (s *Session) Expect(pattern string) error {
	sub, err := s.Subscribe(KindEventOutput)
	if err != nil {
		return err
	}
	var buf strings.Builder
	deadline := time.After(s.timing.ExpectTimeout)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return errors.New("engine: session terminated before pattern matched")
			}
			switch ev.Kind {
			case KindEventInit:
				buf.WriteString(ev.Snapshot.Text)
			case KindEventOutput:
				buf.Write(ev.Output)
			}
			if strings.Contains(buf.String(), pattern) {
				return nil
			}
		case <-deadline:
			return errors.New("engine: expect timed out")
		}
	}
}
