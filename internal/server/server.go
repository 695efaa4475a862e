// Package server serves a directory over HTTP with caching disabled.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"

	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/nocache/internal/config"
	"github.com/Kush-Singh-26/nocache/internal/watch"
)

// Server owns the listening socket for its whole bound lifetime.
type Server struct {
	cfg     config.Config
	handler http.Handler
	logger  *slog.Logger
	out     io.Writer
}

// New creates a server for cfg serving the files of fs.
// Console lines go to out, diagnostics to logger.
func New(cfg config.Config, fs afero.Fs, logger *slog.Logger, out io.Writer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = io.Discard
	}
	return &Server{
		cfg:     cfg,
		handler: NoCache(NewStaticHandler(fs)),
		logger:  logger,
		out:     out,
	}
}

// Handler returns the request handler with the no-cache policy applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run binds the configured port on all interfaces and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to bind port %d: %w", s.cfg.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes it.
// A nil return means the server was stopped through ctx.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.registerMimeTypes()

	if s.cfg.Settings.Watch {
		watchCtx, stopWatch := context.WithCancel(ctx)
		watchDone := s.startWatcher(watchCtx)
		defer func() {
			stopWatch()
			<-watchDone
		}()
	}

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.Settings.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	port := s.cfg.Port
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	_, _ = fmt.Fprintf(s.out, "🚀 Serving %s on http://localhost:%d (no cache)\n", s.cfg.Root, port)
	s.logger.Debug("Listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		_, _ = fmt.Fprintln(s.out, "\n🛑 Shutting down server...")
		s.shutdown(httpServer)
		<-errCh
		_, _ = fmt.Fprintln(s.out, "✅ Server stopped.")
		return nil
	}
}

// shutdown stops accepting, gives in-flight requests ShutdownTimeout, then drops the rest.
func (s *Server) shutdown(httpServer *http.Server) {
	timeout := s.cfg.Settings.ShutdownTimeout
	if timeout <= 0 {
		if err := httpServer.Close(); err != nil {
			s.logger.Warn("HTTP server close error", "error", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown timed out, closing connections", "error", err, "timeout", timeout)
		_ = httpServer.Close()
	}
}

func (s *Server) registerMimeTypes() {
	for ext, typ := range s.cfg.Settings.MimeTypes {
		if err := mime.AddExtensionType(ext, typ); err != nil {
			s.logger.Warn("Failed to register MIME type", "ext", ext, "type", typ, "error", err)
		}
	}
}

// startWatcher returns a channel closed once the watcher has stopped reporting.
func (s *Server) startWatcher(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	w, err := watch.New(s.cfg.Root, s.cfg.Settings.DebounceDuration, func(e watch.Event) {
		s.logger.Info("File changed", "path", e.Name, "op", e.Op.String())
	})
	if err != nil {
		s.logger.Warn("Failed to create file watcher", "error", err)
		close(done)
		return done
	}
	if err := w.Add(); err != nil {
		s.logger.Warn("Failed to watch directory", "dir", s.cfg.Root, "error", err)
	}

	go func() {
		defer close(done)
		w.Start(ctx)
	}()
	s.logger.Debug("Watching for changes", "dir", s.cfg.Root, "debounce", s.cfg.Settings.DebounceDuration)
	return done
}
