package broker

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// exitCoordinator owns the rendezvous FIFO path, the watcher that detects
// the wait-exit helper blocking on it, and the single write of "exit\n"
// that releases it.
type exitCoordinator struct {
	dir  string
	path string

	watcherStop chan struct{}
}

func newExitCoordinator() (*exitCoordinator, error) {
	dir := filepath.Join(os.TempDir(), "htrunner-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, err
	}
	return &exitCoordinator{
		dir:         dir,
		path:        filepath.Join(dir, "exit"),
		watcherStop: make(chan struct{}),
	}, nil
}

// watch polls for the FIFO's existence every interval and pushes
// commandCompleted onto cmdCh exactly once, the moment it appears. The
// FIFO itself is created by the wait-exit helper, not by us.
func (c *exitCoordinator) watch(cmdCh chan<- Command, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.watcherStop:
			return
		case <-ticker.C:
			if _, err := os.Stat(c.path); err == nil {
				select {
				case cmdCh <- commandCompleted{fifoPath: c.path}:
				case <-c.watcherStop:
				}
				return
			}
		}
	}
}

// release writes the single "exit\n" line that unblocks the wait-exit
// helper. It must be called at most once per session (the caller is
// responsible for that invariant); it runs the actual open+write off the
// broker goroutine since opening a FIFO for writing can block until the
// reader side is ready.
func (c *exitCoordinator) release(done chan<- error) {
	go func() {
		f, err := os.OpenFile(c.path, os.O_WRONLY, 0)
		if err != nil {
			done <- err
			return
		}
		defer f.Close()
		_, err = f.WriteString("exit\n")
		done <- err
	}()
}

func (c *exitCoordinator) close() {
	select {
	case <-c.watcherStop:
	default:
		close(c.watcherStop)
	}
	os.RemoveAll(c.dir)
}
