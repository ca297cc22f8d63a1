// Package web serves the routine editor UI, a JSON API and the protocol
// endpoint other routines instances use as their registry.
package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/routines/internal/ops"
	"github.com/hpungsan/routines/internal/registry"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer builds the HTTP server for "routines serve". transport answers
// registry messages posted to /api/messages.
func NewServer(sync *ops.Synchronizer, transport registry.Transport, logger *zap.Logger, version, bind string, port int) (*http.Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	templates, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}

	h := &Handlers{
		sync:      sync,
		transport: transport,
		renderer:  NewRenderer(templates, version, logger),
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", http.RedirectHandler("/routines", http.StatusFound))

	// Editor pages
	mux.HandleFunc("GET /routines", h.HandleList)
	mux.HandleFunc("GET /new", h.HandleNew) // outside /routines/ so any nickname has a detail page
	mux.HandleFunc("GET /routines/{name}", h.HandleDetail)
	mux.HandleFunc("POST /routines", h.HandleSave)
	mux.HandleFunc("DELETE /routines/{name}", h.HandleDelete)
	mux.HandleFunc("POST /routines/{name}/delete", h.HandleDelete) // HTML forms cannot send DELETE

	mux.HandleFunc("GET /api/routines", h.HandleAPIList)
	mux.HandleFunc("POST /api/messages", h.HandleMessages)
	mux.HandleFunc("GET /api/events", h.HandleEvents)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	return &http.Server{
		Addr:              net.JoinHostPort(bind, strconv.Itoa(port)),
		Handler:           withHeaders(accessLog(logger, mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'self'")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Flush keeps the event stream working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// accessLog writes one debug line per request.
func accessLog(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// Run serves srv until ctx is cancelled or the process receives SIGINT/SIGTERM,
// then shuts down with a five second grace period.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Routines UI running at http://%s\n", ln.Addr())
	if host, _, _ := net.SplitHostPort(srv.Addr); host == "" || host == "0.0.0.0" || host == "::" {
		logger.Warn("listening on all interfaces", zap.String("addr", srv.Addr))
	}
	return serve(ctx, srv, ln, logger)
}

// serve runs srv on ln until ctx is done. Request contexts derive from a base
// context that is cancelled when shutdown starts, so long-lived event streams
// end instead of holding Shutdown until its deadline.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *zap.Logger) error {
	base, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	srv.BaseContext = func(net.Listener) context.Context { return base }
	srv.RegisterOnShutdown(cancelRequests)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("web server started", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
