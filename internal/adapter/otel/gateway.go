package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/onboardiq/internal/domain"
)

// TracingGateway wraps a domain.PaymentGateway with OpenTelemetry tracing.
// Payment calls cross a network boundary, so spans here carry the latency
// that matters most during an incident.
type TracingGateway struct {
	next   domain.PaymentGateway
	tracer trace.Tracer
}

// Compile-time check: TracingGateway implements domain.PaymentGateway.
var _ domain.PaymentGateway = (*TracingGateway)(nil)

// NewTracingGateway creates a tracing decorator around the given gateway.
func NewTracingGateway(next domain.PaymentGateway) *TracingGateway {
	return &TracingGateway{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (g *TracingGateway) Initiate(ctx context.Context, amount int64, currency string, metadata map[string]string) (domain.PaymentRef, error) {
	ctx, span := g.tracer.Start(ctx, "PaymentGateway.Initiate",
		trace.WithAttributes(
			attribute.Int64("payment.amount", amount),
			attribute.String("payment.currency", currency),
		),
	)
	defer span.End()

	ref, err := g.next.Initiate(ctx, amount, currency, metadata)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("payment.transaction_id", ref.TransactionID))
	}
	return ref, err
}

func (g *TracingGateway) Status(ctx context.Context, transactionID string) (domain.PaymentStatus, error) {
	ctx, span := g.tracer.Start(ctx, "PaymentGateway.Status",
		trace.WithAttributes(attribute.String("payment.transaction_id", transactionID)),
	)
	defer span.End()

	status, err := g.next.Status(ctx, transactionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("payment.status", string(status)))
	}
	return status, err
}
