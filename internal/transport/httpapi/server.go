// Package httpapi is the daemon's outer surface: the host method channel as
// JSON over HTTP and the deep-link stream as a websocket or SSE connection.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"sdkbridge/internal/bridge"
	"sdkbridge/internal/config"
	"sdkbridge/internal/metrics"
	logx "sdkbridge/pkg/logx"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Bridge *bridge.Bridge
	// Metrics is optional; when set, requests are measured and MetricsPath
	// serves the registry.
	Metrics     *metrics.Metrics
	MetricsPath string
	// Health adds fields to /healthz. Optional.
	Health func() map[string]any
	// Mount registers extra routes (e.g. pprof). Optional.
	Mount func(r chi.Router)
	Log   logx.Logger
}

type Server struct {
	cfg     config.Server
	deps    Deps
	log     logx.Logger
	handler http.Handler
	started time.Time

	upgrader websocket.Upgrader

	// closing ends every open stream on shutdown; hijacked websockets are
	// invisible to http.Server.Shutdown.
	closing   chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	ln  net.Listener
	srv *http.Server
}

func New(cfg config.Server, d Deps) *Server {
	s := &Server{
		cfg:     cfg,
		deps:    d,
		log:     d.Log.With(logx.String("comp", "httpapi")),
		started: time.Now(),
		closing: make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recoverer(s.log))
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware)
	}
	r.Use(accessLog(s.log))
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", headerRequestID},
			ExposedHeaders: []string{headerRequestID},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		path := s.deps.MetricsPath
		if path == "" {
			path = config.DefaultMetricsPath
		}
		r.Method(http.MethodGet, path, s.deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.cfg.RatePerSec > 0 {
				r.Use(rateLimit(s.cfg.RatePerSec, s.cfg.Burst, s.log))
			}
			r.Get("/methods", s.handleListMethods)
			r.Post("/methods/{method}", s.handleMethod)
			r.Post("/lifecycle/launch", s.handleLaunch)
			r.Post("/lifecycle/open", s.handleOpen)
			r.Post("/lifecycle/activate", s.handleActivate)
		})
		r.Get("/events", s.handleWebSocket)
		r.Get("/events/stream", s.handleSSE)
	})

	if s.deps.Mount != nil {
		s.deps.Mount(r)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		fail(w, http.StatusNotFound, "not_found", "no such endpoint", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		fail(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", r.Method)
	})
	return r
}

// checkOrigin allows requests without an Origin (native hosts) and, when
// CORS origins are configured, browsers from those origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.CORSOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// Listen binds the configured address. It is separate from Serve so
// callers can report readiness and the bound port.
func (s *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.mu.Unlock()
	return ln.Addr(), nil
}

// Serve runs until ctx is done, then shuts down within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln, srv := s.ln, s.srv
	s.mu.Unlock()
	if ln == nil {
		return errors.New("httpapi: Serve called before Listen")
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("http server started", logx.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		s.endStreams()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.endStreams()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(sctx)
	if err != nil {
		_ = srv.Close()
	}
	<-errc
	s.log.Info("http server stopped")
	return err
}

func (s *Server) endStreams() { s.closeOnce.Do(func() { close(s.closing) }) }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	out := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"queue":  s.deps.Bridge.Queue().Stats(),
	}
	if s.deps.Health != nil {
		for k, v := range s.deps.Health() {
			out[k] = v
		}
	}
	ok(w, out)
}
