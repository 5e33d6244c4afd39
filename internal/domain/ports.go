package domain

import (
	"context"
	"time"
)

// TransitionValidator validates state-machine edges and applies events.
// A state with no outgoing edges in the table fails closed. The validator
// performs no locking; callers serialize mutations per entity key.
type TransitionValidator[S ~string, E ~string] interface {
	// Apply returns the destination state for the event, or a
	// *TransitionError when the event is not valid from current.
	Apply(ctx context.Context, current S, event E) (S, error)
	// CanTransition reports whether from can reach to directly.
	// A state can always "reach" itself.
	CanTransition(from, to S) bool
	// Possible returns the destination states reachable from current.
	Possible(current S) []S
}

// SessionStore defines the persistence contract for registration sessions.
// Update must be single-writer per session id: the mutator observes the
// current state and its changes commit atomically or not at all.
type SessionStore interface {
	Create(ctx context.Context, session RegistrationSession) error
	Get(ctx context.Context, id string) (RegistrationSession, error)
	Update(ctx context.Context, id string, mutate func(*RegistrationSession) error) (RegistrationSession, error)
	Delete(ctx context.Context, id string) error
}

// ReservationStore holds soft TTL-bound claims on uniqueness values held by
// in-flight sessions. An expired reservation is treated as non-existent.
type ReservationStore interface {
	// Reserve fails with *ConflictError when another live session holds
	// (kind, value). Re-reserving by the holding session is a no-op. The
	// reservation lapses at expiresAt, normally the session's own expiry.
	Reserve(ctx context.Context, kind ReservationKind, value, sessionID string, expiresAt time.Time) error
	Release(ctx context.Context, kind ReservationKind, value string) error
	// ReleaseSession drops every reservation held by the session.
	ReleaseSession(ctx context.Context, sessionID string) error
	Reserved(ctx context.Context, kind ReservationKind, value string) (bool, error)
}

// ClaimStore records permanent uniqueness claims created when a session
// finalizes into a durable tenant.
type ClaimStore interface {
	Claim(ctx context.Context, kind ReservationKind, value, tenantID string) error
	Claimed(ctx context.Context, kind ReservationKind, value string) (bool, error)
}

// KYCRepository defines the persistence contract for KYC cases.
type KYCRepository interface {
	Get(ctx context.Context, tenantID string) (KYCCase, error)
	// Save upserts the case; the stored document set is replaced.
	Save(ctx context.Context, c KYCCase) error
	// ListPending returns pending cases ordered by submission time ascending.
	ListPending(ctx context.Context) ([]KYCCase, error)
}

// PaymentGateway is the external payment provider. Transactions are owned by
// the gateway; this service only caches the last-polled status.
type PaymentGateway interface {
	Initiate(ctx context.Context, amount int64, currency string, metadata map[string]string) (PaymentRef, error)
	Status(ctx context.Context, transactionID string) (PaymentStatus, error)
}

// ProvisioningService creates the durable tenant records for a fully paid
// session. Calls with the same idempotency key must be safe to repeat.
type ProvisioningService interface {
	Create(ctx context.Context, school SchoolInfo, promoter PromoterInfo, planID, idempotencyKey string) (FinalizeResult, error)
}

// DocumentStore holds verification document content. StorageRefs are opaque.
type DocumentStore interface {
	Store(ctx context.Context, content []byte, contentType string) (string, error)
	// Resolve exchanges a storage ref for a temporary retrieval URL.
	Resolve(ctx context.Context, storageRef string) (string, error)
}

// ActivationService unlocks a tenant once its KYC case is verified.
// Activation is best-effort: a failure never reverses the verification.
type ActivationService interface {
	Activate(ctx context.Context, tenantID string) error
}

// ActivationScheduler enqueues an out-of-band activation attempt so a
// transient ActivationService failure is retried without re-deciding the case.
type ActivationScheduler interface {
	Schedule(ctx context.Context, tenantID string) error
}

// EventPublisher defines the contract for emitting post-commit workflow
// events. Emission happens after the state mutation is committed and never
// rolls it back on failure.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, payload EventPayload) error
}
