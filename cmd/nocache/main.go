package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/Kush-Singh-26/nocache/internal/config"
	"github.com/Kush-Singh-26/nocache/internal/logging"
	"github.com/Kush-Singh-26/nocache/internal/server"
)

const (
	exitOK          = 0
	exitServeError  = 1
	exitConfigError = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	resetOnDone(ctx, stop)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// resetOnDone calls stop once ctx is done, restoring the default interrupt
// behaviour so a second Ctrl-C during shutdown kills the process.
func resetOnDone(ctx context.Context, stop context.CancelFunc) {
	go func() {
		<-ctx.Done()
		stop()
	}()
}

// run returns the process exit code. The server stops when ctx is cancelled.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && isHelp(args[0]) {
		printUsage(stdout)
		return exitOK
	}

	root, err := os.Getwd()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "❌ Failed to get current directory: %v\n", err)
		return exitServeError
	}

	cfg, err := config.Load(args, root)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "❌ Error: %v\n", err)
		printUsage(stderr)
		return exitConfigError
	}

	logger, err := logging.New(stderr, cfg.Settings.LogLevel)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "❌ Error in %s: %v\n", config.SettingsFile, err)
		return exitConfigError
	}

	srv := server.New(cfg, server.NewRootFs(cfg.Root), logger, stdout)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Server failed", "error", err)
		return exitServeError
	}
	return exitOK
}

func isHelp(arg string) bool {
	switch arg {
	case "-h", "-help", "--help", "help":
		return true
	}
	return false
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: nocache [port]")
	_, _ = fmt.Fprintln(w, "\nServes the current directory over HTTP with caching disabled.")
	_, _ = fmt.Fprintf(w, "  port    TCP port to listen on (default %d)\n", config.DefaultPort)
	_, _ = fmt.Fprintf(w, "\nOptional settings are read from ./%s\n", config.SettingsFile)
}
