package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/onboardiq/internal/domain"
)

const tracerName = "github.com/neomorfeo/onboardiq/internal/adapter/otel"

// TracingRepository wraps a domain.KYCRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingRepository struct {
	next   domain.KYCRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.KYCRepository.
var _ domain.KYCRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.KYCRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) Get(ctx context.Context, tenantID string) (domain.KYCCase, error) {
	ctx, span := r.tracer.Start(ctx, "KYCRepository.Get",
		trace.WithAttributes(attribute.String("tenant.id", tenantID)),
	)
	defer span.End()

	c, err := r.next.Get(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("kyc.status", string(c.Status)))
	}
	return c, err
}

func (r *TracingRepository) Save(ctx context.Context, c domain.KYCCase) error {
	ctx, span := r.tracer.Start(ctx, "KYCRepository.Save",
		trace.WithAttributes(
			attribute.String("tenant.id", c.TenantID),
			attribute.String("kyc.status", string(c.Status)),
			attribute.Int("kyc.documents", len(c.Documents)),
		),
	)
	defer span.End()

	err := r.next.Save(ctx, c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingRepository) ListPending(ctx context.Context) ([]domain.KYCCase, error) {
	ctx, span := r.tracer.Start(ctx, "KYCRepository.ListPending")
	defer span.End()

	cases, err := r.next.ListPending(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(cases)))
	}
	return cases, err
}
