// Package api serves the storefront sessions as an HTTP JSON API. The
// caller picks a browser profile with the X-Storefront-Profile header;
// requests without one act on the default profile.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	storefront "github.com/luxecommerce/storefront"
	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/auth"
	"github.com/luxecommerce/storefront/pkg/telemetry"
)

const maxBodyBytes = 1 << 20

// Options configure a Server.
type Options struct {
	Logger core.Logger
	// Registry receives the API metrics. Nil creates a private registry
	// with the Go and process collectors.
	Registry *prometheus.Registry
	// Health reports storage health for GET /health. Nil always passes.
	Health func(ctx context.Context) error
	// ServiceName names the tracing spans.
	ServiceName string
	// VerboseLogging logs every request, not only failures and slow ones.
	VerboseLogging bool
}

// Server routes API calls to the session of the requesting profile.
type Server struct {
	sessions *storefront.Manager
	logger   core.Logger
	health   func(ctx context.Context) error
	metrics  *metrics
	handler  http.Handler
}

// New builds the API over sessions.
func New(sessions *storefront.Manager, opts Options) *Server {
	if opts.ServiceName == "" {
		opts.ServiceName = core.DefaultNamespace
	}
	if opts.Health == nil {
		opts.Health = func(ctx context.Context) error { return nil }
	}

	s := &Server{
		sessions: sessions,
		logger:   core.ComponentOf(opts.Logger, "api"),
		health:   opts.Health,
	}
	s.metrics = newMetrics(opts.Registry, func() int { return len(sessions.Profiles()) })

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = s.metrics.middleware(mux)
	h = core.LoggingMiddleware(s.logger, opts.VerboseLogging)(h)
	h = telemetry.CorrelationMiddleware(h)
	h = telemetry.TracingMiddleware(opts.ServiceName, &telemetry.TracingMiddlewareConfig{
		ExcludedPaths: []string{"/health", "/metrics"},
	})(h)
	s.handler = h
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// sessionHandler is an API call bound to the requesting profile's session.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error

// withSession resolves the session and maps returned errors to responses.
func (s *Server) withSession(fn sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile := telemetry.GetProfile(r.Context())
		if profile == "" {
			profile = core.DefaultProfile
		}
		sess, err := s.sessions.Get(r.Context(), profile)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := fn(w, r, sess); err != nil {
			s.writeError(w, r, err)
		}
	}
}

// adminOnly rejects callers that are not signed in as an admin.
func (s *Server) adminOnly(fn sessionHandler) http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
		if err := requireAdmin(sess.Auth()); err != nil {
			return err
		}
		return fn(w, r, sess)
	})
}

func requireAdmin(store *auth.Store) error {
	user, ok := store.CurrentUser()
	if !ok {
		return errUnauthorized
	}
	if !user.IsAdmin() {
		return errForbidden
	}
	return nil
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("request body is required: %w", core.ErrInvalidInput)
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes: %w", tooLarge.Limit, errTooLarge)
		}
		return fmt.Errorf("malformed request body: %v: %w", err, core.ErrInvalidInput)
	}
	return nil
}
