package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
	"github.com/dieharders/ai-text-server-sub000/pkg/inference"
)

const requestIDHeader = "X-Request-Id"

// requestIDMiddleware reuses the caller's request id or mints one, echoes
// it and attaches it to the context for logs and history.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(inference.ContextWithRequestID(r.Context(), id)))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", inference.RequestIDFrom(r.Context()),
		)
	})
}

// corsMiddleware answers CORS for the configured origins. A state-changing
// request whose Origin is not allowed is refused before it reaches a
// handler, since browsers send simple requests without a preflight.
func corsMiddleware(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = &config.CORSConfig{AllowedOrigins: config.DefaultAllowedOrigins}
	}
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(append(slices.Clone(cfg.AllowedHeaders), requestIDHeader), ", ")
	wildcard := slices.Contains(cfg.AllowedOrigins, "*")
	credentials := config.BoolValue(cfg.AllowCredentials, false)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := origin != "" && (wildcard || slices.Contains(cfg.AllowedOrigins, origin))
			switch {
			case wildcard && !credentials:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				if credentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)
			w.Header().Set("Access-Control-Expose-Headers", requestIDHeader)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if origin != "" && !allowed && !safeMethod(r.Method) {
				slog.Warn("Refused cross-origin request", "origin", origin, "method", r.Method, "path", r.URL.Path)
				fail(w, http.StatusForbidden, fmt.Errorf("origin %s is not allowed", origin))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func safeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// requireJSON rejects request bodies that are not application/json. Other
// content types would let a browser post cross-origin without a preflight.
var requireJSON = middleware.AllowContentType("application/json")
