package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/neomorfeo/onboardiq/internal/domain"
)

// Compile-time check: SessionStore implements domain.SessionStore.
var _ domain.SessionStore = (*SessionStore)(nil)

// SessionStore implements domain.SessionStore in process memory. Sessions are
// TTL-bound; expiry is checked lazily on access, with an optional background
// sweep to bound memory growth. Update serializes per session id, so two
// concurrent mutations of the same session never interleave their
// read-check-write sequences, while distinct sessions proceed in parallel.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.RegistrationSession
	locks    map[string]*sync.Mutex

	ticker *time.Ticker
	done   chan struct{}
}

// NewSessionStore creates an in-memory session store. When cleanupInterval is
// positive, a sweep goroutine evicts expired sessions; correctness never
// depends on it, since Get treats an expired session as gone.
func NewSessionStore(cleanupInterval time.Duration) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*domain.RegistrationSession),
		locks:    make(map[string]*sync.Mutex),
		done:     make(chan struct{}),
	}

	if cleanupInterval > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		go s.cleanupLoop()
	}

	return s
}

// cloneSession detaches a session from any memory the caller or the store
// holds. The struct copy alone is not enough: School, Promoter, Payment, and
// Result are pointers, and sharing them would let a reader observe a later
// mutation mid-write.
func cloneSession(session domain.RegistrationSession) domain.RegistrationSession {
	if session.School != nil {
		school := *session.School
		session.School = &school
	}
	if session.Promoter != nil {
		promoter := *session.Promoter
		session.Promoter = &promoter
	}
	if session.Payment != nil {
		payment := *session.Payment
		session.Payment = &payment
	}
	if session.Result != nil {
		result := *session.Result
		session.Result = &result
	}
	return session
}

// Create stores a new session.
func (s *SessionStore) Create(_ context.Context, session domain.RegistrationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := cloneSession(session)
	s.sessions[session.ID] = &copied
	return nil
}

// Get retrieves a session by id. An expired session is evicted and reported
// as domain.ErrSessionExpired.
func (s *SessionStore) Get(_ context.Context, id string) (domain.RegistrationSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return domain.RegistrationSession{}, domain.ErrSessionNotFound
	}

	if session.Expired(time.Now().UTC()) {
		s.mu.Lock()
		delete(s.sessions, id)
		delete(s.locks, id)
		s.mu.Unlock()
		return domain.RegistrationSession{}, domain.ErrSessionExpired
	}

	return cloneSession(*session), nil
}

// Update applies the mutator under the session's lock and commits the result
// atomically. A mutator error leaves the stored session untouched.
func (s *SessionStore) Update(ctx context.Context, id string, mutate func(*domain.RegistrationSession) error) (domain.RegistrationSession, error) {
	lock, err := s.lockFor(id)
	if err != nil {
		return domain.RegistrationSession{}, err
	}

	lock.Lock()
	defer lock.Unlock()

	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.RegistrationSession{}, err
	}

	if err := mutate(&current); err != nil {
		return domain.RegistrationSession{}, err
	}
	current.UpdatedAt = time.Now().UTC()

	// Commit a detached copy so a pointer the mutator planted (for example a
	// PaymentRef on the caller's stack) never aliases store memory.
	committed := cloneSession(current)
	s.mu.Lock()
	s.sessions[id] = &committed
	s.mu.Unlock()

	return current, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	delete(s.locks, id)
	return nil
}

// Close stops the background sweep, if one was started.
func (s *SessionStore) Close() {
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.done)
	}
}

func (s *SessionStore) lockFor(id string) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return nil, domain.ErrSessionNotFound
	}

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock, nil
}

func (s *SessionStore) cleanupLoop() {
	for {
		select {
		case <-s.ticker.C:
			now := time.Now().UTC()
			s.mu.Lock()
			for id, session := range s.sessions {
				if session.Expired(now) {
					delete(s.sessions, id)
					delete(s.locks, id)
				}
			}
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}
