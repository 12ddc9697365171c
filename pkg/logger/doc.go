// Package logger provides the structured logger used across the storefront.
//
// ZapLogger implements core.Logger on top of go.uber.org/zap. Fields are
// passed as maps so call sites stay independent of the backing library:
//
//	log.Info("Cart item added", map[string]interface{}{
//	    "product_id": "1",
//	    "quantity":   2,
//	})
//
// # Components
//
// Child loggers carry a component field:
//
//	cartLog := log.WithComponent("cart")
//
// # Trace Correlation
//
// The *WithContext variants add trace_id and span_id when the context holds
// an active OpenTelemetry span, so log lines can be joined with traces.
//
// # Encoding
//
// Format "json" writes one JSON object per line (production). Format
// "console" writes human-readable lines (local development).
package logger
