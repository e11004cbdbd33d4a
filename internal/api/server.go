package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/amanthanvi/tripbook/internal/audit"
)

const maxBodyBytes = 1 << 20

type Server struct {
	cfg      Config
	services Services
	version  VersionInfo
	logger   *slog.Logger
	limiter  *rateLimiter
	handler  http.Handler
	clk      clock
}

func NewServer(cfg Config, services Services, version VersionInfo, logger *slog.Logger) (*Server, error) {
	if len(services.Records) == 0 {
		return nil, fmt.Errorf("new api server: record services are required")
	}
	if services.Search == nil || services.Stats == nil {
		return nil, fmt.Errorf("new api server: search and stats services are required")
	}
	if services.Recorder == nil {
		services.Recorder = audit.Nop{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}

	s := &Server{
		cfg:      cfg,
		services: services,
		version:  version,
		logger:   logger,
		limiter:  newRateLimiter(cfg.RatePerSecond, cfg.RateBurst, cfg.Clock),
		clk:      cfg.Clock,
	}
	s.handler = chain(s.routes(),
		requestLogger(logger, cfg.Clock),
		recoverer(logger),
		rateLimit(s.limiter),
	)
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/{$}", s.handleIndex)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/{collection}", s.handleList)
	mux.HandleFunc("POST /api/{collection}", s.handleCreate)
	mux.HandleFunc("GET /api/{collection}/{id}", s.handleGet)
	mux.HandleFunc("PUT /api/{collection}/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/{collection}/{id}", s.handleDelete)
	mux.HandleFunc("/", s.handleNotFound)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if listener == nil {
		return fmt.Errorf("serve api: listener is nil")
	}

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	addr := listener.Addr().String()
	s.recordLifecycle(ctx, audit.ActionServerStart, addr)
	s.logger.Info("api server listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve api: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	shutdownErr := httpServer.Shutdown(shutdownCtx)

	s.recordLifecycle(context.WithoutCancel(ctx), audit.ActionServerStop, addr)
	s.logger.Info("api server stopped", "addr", addr)
	if shutdownErr != nil {
		return fmt.Errorf("shutdown api: %w", shutdownErr)
	}
	return nil
}

func (s *Server) recordLifecycle(ctx context.Context, action, addr string) {
	err := s.services.Recorder.Record(ctx, audit.Event{
		Timestamp:  s.clk.Now(),
		Action:     action,
		TargetType: "server",
		TargetID:   addr,
		Details: struct {
			Version string `json:"version,omitempty"`
		}{Version: s.version.Version},
	})
	if err != nil {
		s.logger.Warn("audit event not recorded", "action", action, "error", err)
	}
}
