// Package waitexit implements the child side of the exit-coordination
// rendezvous: a helper that creates the FIFO at a known path, then blocks
// reading from it until it sees a line equal to "exit". The shell wrapper
// that spawns a session's command runs this helper after the command exits
// and before the shell itself exits, so the broker can detect completion by
// the FIFO's existence and release the helper with a single write.
package waitexit

import (
	"bufio"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Run creates the FIFO at path (if it doesn't already exist) and blocks
// until a line reading "exit" is read from it. It returns nil once
// released, including when the FIFO already existed and mkfifo failed with
// EEXIST — the important guarantee is that Run always eventually returns
// once someone writes the release line.
func Run(path string) error {
	if err := unix.Mkfifo(path, 0o600); err != nil && err != unix.EEXIST {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "exit" {
			return nil
		}
	}
	return scanner.Err()
}
