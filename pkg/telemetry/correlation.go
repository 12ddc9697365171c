package telemetry

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	// ProfileKey is the context key for the browser profile
	ProfileKey ContextKey = "profile"
)

const (
	// HeaderRequestID is the HTTP header for request ID
	HeaderRequestID = "X-Request-ID"
	// HeaderProfile selects the browser profile a request acts on
	HeaderProfile = "X-Storefront-Profile"
)

// CorrelationMiddleware adds a request ID and the profile to the request
// context and echoes the request ID back.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx = context.WithValue(ctx, RequestIDKey, requestID)

		if profile := r.Header.Get(HeaderProfile); profile != "" {
			ctx = context.WithValue(ctx, ProfileKey, profile)
		}

		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(attribute.String("request.id", requestID))
			if profile := GetProfile(ctx); profile != "" {
				span.SetAttributes(attribute.String("storefront.profile", profile))
			}
		}

		w.Header().Set(HeaderRequestID, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetProfile retrieves the profile from context
func GetProfile(ctx context.Context) string {
	if id, ok := ctx.Value(ProfileKey).(string); ok {
		return id
	}
	return ""
}

// EnrichLogFields adds request correlation to log fields
func EnrichLogFields(ctx context.Context, fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}

	if requestID := GetRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	if profile := GetProfile(ctx); profile != "" {
		fields["profile"] = profile
	}

	return fields
}
