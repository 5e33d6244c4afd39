package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/neomorfeo/onboardiq/internal/domain"
)

// Compile-time check: ReservationRegistry implements domain.ReservationStore.
var _ domain.ReservationStore = (*ReservationRegistry)(nil)

type reservation struct {
	sessionID string
	expiresAt time.Time
}

type reservationKey struct {
	kind  domain.ReservationKind
	value string
}

// ReservationRegistry implements domain.ReservationStore in process memory.
// A reservation is a soft lock: it lapses at its expiry with no active sweep,
// so an abandoned value becomes available again on its own.
type ReservationRegistry struct {
	mu           sync.Mutex
	reservations map[reservationKey]reservation
}

// NewReservationRegistry creates an empty in-memory reservation registry.
func NewReservationRegistry() *ReservationRegistry {
	return &ReservationRegistry{
		reservations: make(map[reservationKey]reservation),
	}
}

// Reserve marks (kind, value) as held by the session until expiresAt. It
// fails with *domain.ConflictError when another live session holds the pair;
// re-reserving by the holder refreshes the expiry.
func (r *ReservationRegistry) Reserve(_ context.Context, kind domain.ReservationKind, value, sessionID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := reservationKey{kind: kind, value: value}
	now := time.Now().UTC()

	if existing, ok := r.reservations[key]; ok && existing.expiresAt.After(now) && existing.sessionID != sessionID {
		return &domain.ConflictError{Kind: kind, Value: value}
	}

	r.reservations[key] = reservation{sessionID: sessionID, expiresAt: expiresAt}
	return nil
}

// Release drops the reservation on (kind, value), if any.
func (r *ReservationRegistry) Release(_ context.Context, kind domain.ReservationKind, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.reservations, reservationKey{kind: kind, value: value})
	return nil
}

// ReleaseSession drops every reservation held by the session.
func (r *ReservationRegistry) ReleaseSession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, res := range r.reservations {
		if res.sessionID == sessionID {
			delete(r.reservations, key)
		}
	}
	return nil
}

// Reserved reports whether a live reservation holds (kind, value). An
// expired entry counts as non-existent and is evicted on the way out.
func (r *ReservationRegistry) Reserved(_ context.Context, kind domain.ReservationKind, value string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := reservationKey{kind: kind, value: value}
	res, ok := r.reservations[key]
	if !ok {
		return false, nil
	}
	if !res.expiresAt.After(time.Now().UTC()) {
		delete(r.reservations, key)
		return false, nil
	}
	return true, nil
}
