// Package pty implements the PTY Driver: it owns the master/slave PTY pair,
// spawns and reaps the child process, performs all raw reads/writes, and
// enforces window size. Every operation here is meant to be invoked only by
// the Session Broker (package broker) — the Driver itself holds no view of
// command/event fan-out or exit coordination.
package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	creackpty "github.com/creack/pty"
	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// readBufSize is the fixed-size buffer the read loop fills from the master
// fd on each iteration.
const readBufSize = 128 * 1024

const (
	minCols, maxCols = 1, 1024
	minRows, maxRows = 1, 1024
)

// maxWriteRetries bounds the short-write retry loop so a persistently
// non-draining fd eventually surfaces WriteBroken instead of looping
// forever.
const maxWriteRetries = 64

// Driver owns one child process attached to a PTY slave.
type Driver struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu     sync.Mutex
	closed bool

	output   chan Event
	done     chan struct{}
	doneOnce sync.Once
	exitCode chan int
}

// New constructs an unstarted Driver. Call Start to spawn the child.
func New() *Driver {
	return &Driver{}
}

// Start spawns argv[0] with the remaining argv as arguments, attached to a
// freshly allocated PTY of the given geometry. envOverrides, when non-nil,
// replaces the child's environment wholesale (the caller is responsible for
// inheriting os.Environ() first if that's desired).
func (d *Driver) Start(cmd string, argv []string, envOverrides []string, cols, rows int) (*StartResult, error) {
	if len(argv) == 0 {
		return nil, newError(KindSpawnFailed, "start", errors.New("argv must not be empty"))
	}
	if err := validateSize(cols, rows); err != nil {
		return nil, newError(KindPtyAllocFailed, "start", err)
	}

	c := exec.Command(argv[0], argv[1:]...)
	if len(envOverrides) > 0 {
		c.Env = envOverrides
	}
	// Run the child as its own process-group leader so terminate_graceful
	// and terminate_forced can signal the whole group (a shell that forks
	// children of its own must be reaped together with it).
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	ptmx, err := creackpty.StartWithSize(c, &creackpty.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	})
	if err != nil {
		return nil, newError(KindPtyAllocFailed, "start", err)
	}

	d.cmd = c
	d.ptmx = ptmx
	d.output = make(chan Event, 1024)
	d.done = make(chan struct{})
	d.exitCode = make(chan int, 1)

	pid := c.Process.Pid

	// EventPid is emitted exactly once, on the output stream, ahead of any
	// output bytes, so a subscriber that requests it always sees it before
	// the first Output or Snapshot event.
	d.output <- Event{Type: EventPid, Pid: pid, At: time.Now()}

	go d.readLoop()
	go d.waitLoop()

	return &StartResult{
		Pid:      pid,
		Output:   d.output,
		Done:     d.done,
		ExitCode: d.exitCode,
	}, nil
}

// readLoop fills a fixed buffer from the master fd and emits EventOutput
// for each non-empty read. It exits on EOF or read error,
// closing Done (the done_signal) without closing Output — ExitCode may
// still need to be delivered, and the broker may still want EventDebug.
func (d *Driver) readLoop() {
	buf := make([]byte, readBufSize)
	for {
		n, err := d.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			d.output <- Event{Type: EventOutput, Data: data, At: time.Now()}
		}
		if err != nil {
			d.emitDebug(fmt.Sprintf("ptyReadEnded:%s:%s", humanize.Bytes(uint64(n)), err))
			break
		}
	}
	d.doneOnce.Do(func() { close(d.done) })
}

// waitLoop reaps the child and emits ExitCode exactly once. Go's
// (*os.Process).Wait already parks this goroutine without blocking any
// other, so no separate non-blocking waitpid poll is needed.
func (d *Driver) waitLoop() {
	state, err := d.cmd.Process.Wait()
	code := -1
	switch {
	case err != nil:
		code = -1
	case state.Exited():
		code = state.ExitCode()
	default:
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			code = -int(ws.Signal())
		}
	}
	d.exitCode <- code
}

func (d *Driver) emitDebug(tag string) {
	select {
	case d.output <- Event{Type: EventDebug, Tag: tag, At: time.Now()}:
	default:
	}
}

// Write appends bytes to the master fd, transporting them to the child's
// stdin. It retries internally on short writes until the buffer drains or
// the fd is broken.
func (d *Driver) Write(data []byte) (int, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return 0, newError(KindWriteBroken, "write", errors.New("driver closed"))
	}

	total := 0
	remaining := data
	for retries := 0; len(remaining) > 0; retries++ {
		if retries > maxWriteRetries {
			return total, newError(KindWriteBroken, "write", errors.New("write did not drain after retries"))
		}
		n, err := d.ptmx.Write(remaining)
		total += n
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) {
				remaining = remaining[n:]
				continue
			}
			return total, newError(KindWriteBroken, "write", err)
		}
		remaining = remaining[n:]
	}
	return total, nil
}

// Resize issues the window-size ioctl on the master fd, validating bounds
// first (cols, rows must fall in [1, 1024]).
func (d *Driver) Resize(cols, rows int) error {
	if err := validateSize(cols, rows); err != nil {
		return newError(KindResizeFailed, "resize", err)
	}
	ws := &unix.Winsize{Col: uint16(cols), Row: uint16(rows)}
	if err := unix.IoctlSetWinsize(int(d.ptmx.Fd()), unix.TIOCSWINSZ, ws); err != nil {
		return newError(KindResizeFailed, "resize", err)
	}
	return nil
}

func validateSize(cols, rows int) error {
	if cols < minCols || cols > maxCols {
		return fmt.Errorf("cols %d out of range [%d,%d]", cols, minCols, maxCols)
	}
	if rows < minRows || rows > maxRows {
		return fmt.Errorf("rows %d out of range [%d,%d]", rows, minRows, maxRows)
	}
	return nil
}

// TerminateGraceful sends SIGTERM to the child's process group.
func (d *Driver) TerminateGraceful() error {
	return d.signalGroup(unix.SIGTERM)
}

// TerminateForced sends SIGKILL to the child's process group.
func (d *Driver) TerminateForced() error {
	return d.signalGroup(unix.SIGKILL)
}

func (d *Driver) signalGroup(sig unix.Signal) error {
	if d.cmd == nil || d.cmd.Process == nil {
		return nil
	}
	pid := d.cmd.Process.Pid
	if err := unix.Kill(-pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		// Fall back to signaling the process itself in case it never
		// became its own group leader (e.g. already exited).
		_ = unix.Kill(pid, sig)
	}
	return nil
}

// Close releases the master fd. It does not itself signal the child;
// callers that want the child dead should call TerminateGraceful/Forced
// first. Safe to call once the driver is no longer needed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.ptmx == nil {
		return nil
	}
	return d.ptmx.Close()
}
