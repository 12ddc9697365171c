// Package telemetry provides tracing and metrics for the storefront using
// OpenTelemetry.
//
// OTELImpl implements core.Telemetry. Spans are exported to stdout during
// development or to an OTLP collector over gRPC:
//
//	tel, err := telemetry.NewFromConfig(ctx, cfg.Telemetry, storefront.Version)
//	defer tel.Shutdown(ctx)
//
// Store operations are wrapped with Track, which opens a span and records
// the storefront_operations_total counter and the
// storefront_operation_duration_seconds histogram:
//
//	func (s *Store) Append(ctx context.Context, o Order) (err error) {
//	    ctx, done := telemetry.Track(ctx, s.tel, "orders.Append")
//	    defer done(&err)
//	    ...
//	}
//
// CorrelationMiddleware tags HTTP requests with a request ID and the
// browser profile; EnrichLogFields copies both into log fields.
package telemetry
