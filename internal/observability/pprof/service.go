// Package pprof mounts the runtime profiler on the daemon's router.
package pprof

import (
	"crypto/subtle"
	"net/http"
	hpprof "net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"

	logx "sdkbridge/pkg/logx"
)

// Config controls the optional profiler routes.
//
// A non-loopback listen address should set Token; requests then need
// "Authorization: Bearer <token>" or "?token=<token>".
type Config struct {
	Enabled bool
	Prefix  string
	Token   string
}

const defaultPrefix = "/debug/pprof"

// Mount registers the profiler under cfg.Prefix. Disabled configs mount nothing.
func Mount(r chi.Router, cfg Config, log logx.Logger) {
	if !cfg.Enabled {
		return
	}
	prefix := normalizePrefix(cfg.Prefix)
	token := strings.TrimSpace(cfg.Token)

	r.Route(prefix, func(r chi.Router) {
		r.Use(withAuth(token))
		r.Get("/", hpprof.Index)
		r.Get("/cmdline", hpprof.Cmdline)
		r.Get("/profile", hpprof.Profile)
		r.Get("/symbol", hpprof.Symbol)
		r.Post("/symbol", hpprof.Symbol)
		r.Get("/trace", hpprof.Trace)
		// named profiles: heap, goroutine, block, mutex, allocs, threadcreate
		r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
			hpprof.Handler(chi.URLParam(req, "name")).ServeHTTP(w, req)
		})
	})
	log.Info("pprof mounted", logx.String("prefix", prefix), logx.Bool("token_set", token != ""))
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return defaultPrefix
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}

func withAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("token")
			if got == "" {
				if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, "Bearer ") {
					got = strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
				}
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
