// Command htrunner drives a headless PTY session from the command line. In
// its normal mode, the remaining non-flag arguments are the program (and its
// arguments) to run under the PTY; commands arrive as JSON lines on stdin and
// events are emitted as JSON lines on stdout. A separate wait-exit
// subcommand is the internal helper the shell wrapper around the child
// process invokes to signal the exit coordinator.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/htrunner/htrunner/engine"
	"github.com/htrunner/htrunner/internal/config"
	"github.com/htrunner/htrunner/internal/waitexit"
	"github.com/htrunner/htrunner/protocol/jsonshim"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "wait-exit" {
		os.Exit(runWaitExit(os.Args[2:]))
	}
	os.Exit(run(os.Args[1:]))
}

// extractConfigFlag pulls the first "-config <path>", "--config <path>" or
// "-config=<path>" out of args, wherever it appears, and passes the remaining
// arguments on to config.Load's flag set. An occurrence inside the command to
// run (after "--") is removed as well.
func extractConfigFlag(args []string) (path string, rest []string) {
	for i, a := range args {
		switch {
		case a == "-config" || a == "--config":
			if i+1 < len(args) {
				return args[i+1], append(append([]string{}, args[:i]...), args[i+2:]...)
			}
			return "", args
		case len(a) > len("-config=") && a[:len("-config=")] == "-config=":
			return a[len("-config="):], append(append([]string{}, args[:i]...), args[i+1:]...)
		}
	}
	return "", args
}

func runWaitExit(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: htrunner wait-exit <fifo-path>")
		return 2
	}
	if err := waitexit.Run(args[0]); err != nil {
		fmt.Fprintln(os.Stderr, "wait-exit:", err)
		return 1
	}
	return 0
}

func run(args []string) int {
	configPath, rest := extractConfigFlag(args)

	fs := flag.NewFlagSet("htrunner", flag.ContinueOnError)
	cfg, err := config.Load(fs, rest, configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "htrunner:", err)
		return 2
	}

	argv := fs.Args()
	if cfg.TestShell != "" {
		argv = []string{cfg.TestShell}
	}
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "usage: htrunner [flags] -- <command> [args...]")
		return 2
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintf(os.Stderr, "htrunner: running %v under a %dx%d pty\n", argv, cfg.Cols, cfg.Rows)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	econf := engine.DefaultConfig()
	econf.Argv = argv
	econf.Cols = cfg.Cols
	econf.Rows = cfg.Rows
	econf.Timing = cfg.Timing.ToBroker()
	econf.Logger = logger

	session, err := engine.Start(ctx, econf)
	if err != nil {
		logger.Error("failed to start session", "error", err)
		return 1
	}

	sub, err := session.Subscribe()
	if err != nil {
		logger.Error("failed to subscribe", "error", err)
		return 1
	}

	go jsonshim.ReadCommands(os.Stdin, session, func(err error) {
		logger.Warn("malformed command", "error", err)
	})

	if err := jsonshim.WriteEvents(os.Stdout, sub); err != nil {
		logger.Error("event stream write failed", "error", err)
		return 1
	}

	<-session.Done()
	return 0
}
