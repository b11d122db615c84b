// Package broker implements the Session Broker: the single event loop that
// owns the Terminal Model, dispatches commands to the PTY Driver, fans
// events out to subscribers, and hosts the Exit Coordinator. All mutable
// engine state lives on the broker's own goroutine; every other goroutine
// (the PTY read loop, the FIFO watcher, timers) talks to it exclusively
// through channels.
package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/htrunner/htrunner/internal/keys"
	"github.com/htrunner/htrunner/internal/pty"
	"github.com/htrunner/htrunner/internal/term"
)

// Broker is a single terminal-session engine instance: one child process,
// one Terminal Model, one dispatch loop.
type Broker struct {
	cfg Config
	log *slog.Logger

	driver *pty.Driver
	vt     *term.VT

	fifo *exitCoordinator

	cmdCh chan Command

	state atomic.Int32

	done chan struct{}
}

// New spawns argv under a fresh PTY of the given geometry and starts the
// broker's dispatch loop. argv is the exact argument vector (no shell
// involved for the caller's own command); it is shell-quoted and embedded
// in a /bin/sh -c wrapper only so the shell can capture and preserve the
// command's own exit status across the exit-coordination rendezvous.
func New(argv []string, envOverrides []string, cols, rows int, cfg Config, log *slog.Logger) (*Broker, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(argv) == 0 {
		return nil, newError(KindSpawnFailed, "new", errors.New("argv must not be empty"))
	}

	fifo, err := newExitCoordinator()
	if err != nil {
		return nil, newError(KindSpawnFailed, "new", err)
	}

	enginePath, err := os.Executable()
	if err != nil {
		fifo.close()
		return nil, newError(KindSpawnFailed, "new", err)
	}

	wrapper := fmt.Sprintf("%s; ec=$?; %s wait-exit %s; exit $ec",
		shellquote.Join(argv...), shellquote.Join(enginePath), shellquote.Join(fifo.path))

	b := &Broker{
		cfg:   cfg,
		log:   log,
		vt:    term.New(cols, rows),
		fifo:  fifo,
		cmdCh: make(chan Command, 256),
		done:  make(chan struct{}),
	}
	if cfg.StartOnOutput {
		b.state.Store(int32(StateStarting))
	} else {
		b.state.Store(int32(StateRunning))
	}

	b.driver = pty.New()
	res, err := b.driver.Start("/bin/sh", []string{"/bin/sh", "-c", wrapper}, envOverrides, cols, rows)
	if err != nil {
		fifo.close()
		var perr *pty.Error
		if errors.As(err, &perr) && perr.Kind == pty.KindPtyAllocFailed {
			return nil, newError(KindPtyAllocFailed, "new", err)
		}
		return nil, newError(KindSpawnFailed, "new", err)
	}

	go b.fifo.watch(b.cmdCh, cfg.FifoPollInterval)
	go b.run(res)
	return b, nil
}

// State returns the broker's current lifecycle state.
func (b *Broker) State() State { return State(b.state.Load()) }

// Done is closed once the broker's dispatch loop returns (Terminated).
func (b *Broker) Done() <-chan struct{} { return b.done }

// Submit enqueues cmd for processing. It does not wait for the command's
// effect; acks are implicit in queue acceptance, per the ordering guarantee
// that a client wanting to observe an effect should follow up with
// TakeSnapshot or a subscription.
func (b *Broker) Submit(cmd Command) error {
	if State(b.state.Load()) == StateTerminated {
		return newError(KindChildExited, "submit", errors.New("session already terminated"))
	}
	select {
	case b.cmdCh <- cmd:
		return nil
	default:
		return newError(KindTimedOut, "submit", errors.New("command queue full"))
	}
}

// Subscribe registers a new subscription and blocks until the broker has
// processed it (or the timeout elapses).
func (b *Broker) Subscribe(kindsFilter []EventKind, timeout time.Duration) (*Subscription, error) {
	resp := make(chan *Subscription, 1)
	if err := b.Submit(SubscribeCmd{Kinds: kindsFilter, Resp: resp}); err != nil {
		return nil, err
	}
	select {
	case sub := <-resp:
		return sub, nil
	case <-time.After(timeout):
		return nil, newError(KindTimedOut, "subscribe", errors.New("subscribe did not complete"))
	case <-b.done:
		return nil, newError(KindChildExited, "subscribe", errors.New("broker terminated"))
	}
}

// run is the single dispatch loop. It is the only goroutine that mutates
// b.vt, the subscription list, and the exit-coordinator's timing state.
func (b *Broker) run(res *pty.StartResult) {
	defer close(b.done)
	defer b.fifo.close()
	defer b.driver.Close()

	var subs []*Subscription

	var pid int
	var exitCode *int
	exitCodeSeen := make(chan struct{})

	var pendingWaitexit string
	var waitexitReleasing bool
	var explicitExit bool
	lastCommandAt := time.Now()

	quiesce := time.NewTicker(b.cfg.QuiescenceCheckInterval)
	defer quiesce.Stop()
	heartbeat := time.NewTicker(b.cfg.Heartbeat)
	defer heartbeat.Stop()
	var subprocessWait <-chan time.Time

	releaseDone := make(chan error, 1)
	forceExitCh := make(chan struct{}, 1)

	broadcast := func(ev Event) {
		ev.At = time.Now()
		kept := subs[:0]
		for _, s := range subs {
			if !s.wants(ev.Kind) {
				kept = append(kept, s)
				continue
			}
			if s.try(ev) {
				kept = append(kept, s)
			} else {
				b.log.Debug("subscriber overrun, closing", "kind", ev.Kind)
			}
		}
		subs = kept
	}

	emitDebug := func(tag string) {
		b.log.Debug("debug event", "tag", tag)
		broadcast(Event{Kind: KindEventDebug, Debug: tag})
	}

	handleOutputEvent := func(ev pty.Event) {
		switch ev.Type {
		case pty.EventOutput:
			if State(b.state.Load()) == StateStarting {
				b.state.Store(int32(StateRunning))
			}
			b.vt.Feed(ev.Data)
			broadcast(Event{Kind: KindEventOutput, Output: ev.Data})
		case pty.EventPid:
			pid = ev.Pid
			broadcast(Event{Kind: KindEventPid, Pid: ev.Pid})
		case pty.EventDebug:
			emitDebug(ev.Tag)
		}
	}

	// drainOutput feeds every already-read output chunk still queued on
	// res.Output into the terminal model before a snapshot is taken, so a
	// TakeSnapshot racing a buffered read never misses bytes the PTY driver
	// already delivered.
	drainOutput := func() {
		for {
			select {
			case ev, ok := <-res.Output:
				if !ok {
					return
				}
				handleOutputEvent(ev)
			default:
				return
			}
		}
	}

	finalize := func() {
		for _, s := range subs {
			close(s.ch)
		}
		subs = nil
		b.state.Store(int32(StateTerminated))
	}

	forceExitSequence := func() {
		select {
		case <-time.After(b.cfg.ForcedExitInitialWait):
		case <-exitCodeSeen:
			return
		}
		b.driver.TerminateGraceful()
		select {
		case <-time.After(b.cfg.GracefulTimeout):
		case <-exitCodeSeen:
			return
		}
		b.driver.TerminateForced()
		select {
		case forceExitCh <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case cmd, ok := <-b.cmdCh:
			if !ok {
				return
			}
			lastCommandAt = time.Now()

			switch c := cmd.(type) {
			case SendKeys:
				var payload []byte
				for _, k := range c.Keys {
					payload = append(payload, keys.Translate(k, b.vt)...)
				}
				if _, err := b.driver.Write(payload); err != nil {
					emitDebug("writeFailed:" + err.Error())
				}

			case TakeSnapshot:
				drainOutput()
				broadcast(Event{Kind: KindEventSnapshot, Snapshot: b.vt.Snapshot(c.Styled)})

			case Resize:
				if err := b.driver.Resize(c.Cols, c.Rows); err != nil {
					emitDebug("resizeFailed:" + err.Error())
					break
				}
				b.vt.Resize(c.Cols, c.Rows)
				broadcast(Event{Kind: KindEventResize, Cols: c.Cols, Rows: c.Rows})

			case SubscribeCmd:
				sub := newSubscription(c.Kinds)
				subs = append(subs, sub)
				cols, rows := b.vt.Size()
				sub.try(Event{
					Kind:     KindEventInit,
					Pid:      pid,
					Cols:     cols,
					Rows:     rows,
					Snapshot: b.vt.Snapshot(false),
				})
				select {
				case c.Resp <- sub:
				default:
				}

			case DebugCmd:
				emitDebug(c.Tag)

			case commandCompleted:
				emitDebug("commandCompleted")
				pendingWaitexit = c.fifoPath

			case Exit:
				explicitExit = true
				if exitCode != nil {
					finalize()
					return
				}
				b.state.Store(int32(StateDraining))
				go forceExitSequence()
			}

		case ev, ok := <-res.Output:
			if !ok {
				continue
			}
			handleOutputEvent(ev)

		case code, ok := <-res.ExitCode:
			if !ok {
				continue
			}
			c := code
			exitCode = &c
			close(exitCodeSeen)
			broadcast(Event{Kind: KindEventExitCode, ExitCode: code})
			if explicitExit {
				finalize()
				return
			}

		case <-res.Done:
			emitDebug("ptyEOF")

		case <-quiesce.C:
			quiescent := time.Since(lastCommandAt) >= b.cfg.QuiescenceWindow
			if pendingWaitexit != "" && quiescent && !waitexitReleasing {
				waitexitReleasing = true
				path := pendingWaitexit
				pendingWaitexit = ""
				b.fifo.path = path
				b.fifo.release(releaseDone)
			}

		case err := <-releaseDone:
			if err != nil {
				emitDebug("exitSignalFailed:" + err.Error())
			} else {
				emitDebug("exitSignalSent")
			}

		case <-forceExitCh:
			// TerminateForced was issued; ExitCode should arrive on
			// res.ExitCode shortly. Guard against a child SIGKILL can't
			// reap (e.g. stuck in uninterruptible sleep) with a timeout.
			subprocessWait = time.After(b.cfg.SubprocessWait)

		case <-subprocessWait:
			subprocessWait = nil
			if exitCode == nil {
				emitDebug("subprocessWaitTimedOut")
				finalize()
				return
			}

		case <-heartbeat.C:
			emitDebug("heartbeat")
		}
	}
}
