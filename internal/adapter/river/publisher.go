package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/onboardiq/internal/domain"
)

// Compile-time checks against the domain ports.
var (
	_ domain.EventPublisher      = (*Publisher)(nil)
	_ domain.ActivationScheduler = (*Publisher)(nil)
)

// EventJobArgs carries the data needed to process a workflow event
// asynchronously. River serializes this as JSON into its job queue table. It
// includes a snapshot of the relevant identifiers at publish time, so the
// worker never needs to read workflow state back.
type EventJobArgs struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id,omitempty"`
	TenantID  string `json:"tenant_id,omitempty"`
	SchoolID  string `json:"school_id,omitempty"`
	PlanID    string `json:"plan_id,omitempty"`
	State     string `json:"state,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return "event.published" }

// ActivationJobArgs requests a tenant activation attempt. Returning an error
// from the worker makes River retry with backoff, which is exactly the
// out-of-band retry the verification decision needs: the verified status is
// already committed and is never revisited.
type ActivationJobArgs struct {
	TenantID string `json:"tenant_id"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (ActivationJobArgs) Kind() string { return "tenant.activate" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements post-commit event emission and activation scheduling
// by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a workflow event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event, payload domain.EventPayload) error {
	_, err := p.client.Insert(ctx, EventJobArgs{
		Event:     string(event),
		SessionID: payload.SessionID,
		TenantID:  payload.TenantID,
		SchoolID:  payload.SchoolID,
		PlanID:    payload.PlanID,
		State:     payload.State,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing event job: %w", err)
	}
	return nil
}

// Schedule enqueues an activation attempt for the tenant.
func (p *Publisher) Schedule(ctx context.Context, tenantID string) error {
	_, err := p.client.Insert(ctx, ActivationJobArgs{TenantID: tenantID}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing activation job: %w", err)
	}
	return nil
}
