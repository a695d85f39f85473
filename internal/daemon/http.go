package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
)

// HTTPServer manages the daemon's two listeners: the webhook receiver and the
// admin surface (health, status, metrics).
type HTTPServer struct {
	webhookServer *http.Server
	adminServer   *http.Server
	config        *config.Config
	daemon        *Daemon
}

// NewHTTPServer creates the HTTP server pair for a daemon.
func NewHTTPServer(cfg *config.Config, daemon *Daemon) *HTTPServer {
	return &HTTPServer{
		config: cfg,
		daemon: daemon,
	}
}

// Start binds and starts both servers. All ports are bound before any server
// starts serving so a conflict surfaces as one aggregate error instead of a
// partially started daemon.
func (s *HTTPServer) Start(ctx context.Context) error {
	if s.config.Daemon == nil {
		return fmt.Errorf("daemon configuration required for HTTP servers")
	}

	type preBind struct {
		name string
		port int
		ln   net.Listener
	}
	binds := []preBind{
		{name: "webhook", port: s.config.Daemon.HTTP.WebhookPort},
		{name: "admin", port: s.config.Daemon.HTTP.AdminPort},
	}
	var bindErrs []error
	for i := range binds {
		addr := fmt.Sprintf(":%d", binds[i].port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			bindErrs = append(bindErrs, fmt.Errorf("%s port %d: %w", binds[i].name, binds[i].port, err))
			continue
		}
		binds[i].ln = ln
	}
	if len(bindErrs) > 0 {
		for _, b := range binds {
			if b.ln != nil {
				_ = b.ln.Close()
			}
		}
		return fmt.Errorf("http startup failed: %w", stdErrors.Join(bindErrs...))
	}

	s.startWebhookServer(binds[0].ln)
	s.startAdminServer(binds[1].ln)

	slog.Info("HTTP servers started",
		slog.Int("webhook_port", s.config.Daemon.HTTP.WebhookPort),
		slog.Int("admin_port", s.config.Daemon.HTTP.AdminPort))
	return nil
}

// Stop gracefully shuts down both servers, admin first.
func (s *HTTPServer) Stop(ctx context.Context) error {
	var errs []error

	if s.adminServer != nil {
		if err := s.adminServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin server shutdown: %w", err))
		}
	}

	if s.webhookServer != nil {
		if err := s.webhookServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("webhook server shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	slog.Info("HTTP servers stopped")
	return nil
}

func (s *HTTPServer) startWebhookServer(ln net.Listener) {
	mux := http.NewServeMux()

	path := s.config.Daemon.Webhook.Path
	if path == "" {
		path = "/hooks/push"
	}
	mux.Handle(path, NewWebhookHandler(s.daemon, s.daemon.queue, s.daemon.recorder))

	s.webhookServer = &http.Server{Handler: mux, ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, IdleTimeout: 60 * time.Second}
	go func() {
		if err := s.webhookServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("Webhook server error", "error", err)
		}
	}()
}

func (s *HTTPServer) startAdminServer(ln net.Listener) {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.daemon.HealthzHandler)
	mux.HandleFunc("/status", s.daemon.StatusHandler)
	mux.HandleFunc("/api/runs", s.daemon.RunsHandler)
	if s.daemon.registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.daemon.registry))
	}

	s.adminServer = &http.Server{Handler: mux, ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second, IdleTimeout: 120 * time.Second}
	go func() {
		if err := s.adminServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("Admin server error", "error", err)
		}
	}()
}
