package app_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/neomorfeo/onboardiq/internal/adapter/fsm"
	"github.com/neomorfeo/onboardiq/internal/app"
	"github.com/neomorfeo/onboardiq/internal/domain"
)

// --- Mocks ---

type mockSessionStore struct {
	sessions map[string]domain.RegistrationSession
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]domain.RegistrationSession)}
}

func (m *mockSessionStore) Create(_ context.Context, s domain.RegistrationSession) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *mockSessionStore) Get(_ context.Context, id string) (domain.RegistrationSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return domain.RegistrationSession{}, domain.ErrSessionNotFound
	}
	if s.Expired(time.Now().UTC()) {
		delete(m.sessions, id)
		return domain.RegistrationSession{}, domain.ErrSessionExpired
	}
	return s, nil
}

func (m *mockSessionStore) Update(ctx context.Context, id string, mutate func(*domain.RegistrationSession) error) (domain.RegistrationSession, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return domain.RegistrationSession{}, err
	}
	if err := mutate(&s); err != nil {
		return domain.RegistrationSession{}, err
	}
	s.UpdatedAt = time.Now().UTC()
	m.sessions[id] = s
	return s, nil
}

func (m *mockSessionStore) Delete(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

type mockReservations struct {
	held map[string]string // kind|value → session id
}

func newMockReservations() *mockReservations {
	return &mockReservations{held: make(map[string]string)}
}

func resKey(kind domain.ReservationKind, value string) string {
	return string(kind) + "|" + value
}

func (m *mockReservations) Reserve(_ context.Context, kind domain.ReservationKind, value, sessionID string, _ time.Time) error {
	if holder, ok := m.held[resKey(kind, value)]; ok && holder != sessionID {
		return &domain.ConflictError{Kind: kind, Value: value}
	}
	m.held[resKey(kind, value)] = sessionID
	return nil
}

func (m *mockReservations) Release(_ context.Context, kind domain.ReservationKind, value string) error {
	delete(m.held, resKey(kind, value))
	return nil
}

func (m *mockReservations) ReleaseSession(_ context.Context, sessionID string) error {
	for key, holder := range m.held {
		if holder == sessionID {
			delete(m.held, key)
		}
	}
	return nil
}

func (m *mockReservations) Reserved(_ context.Context, kind domain.ReservationKind, value string) (bool, error) {
	_, ok := m.held[resKey(kind, value)]
	return ok, nil
}

type mockClaims struct {
	claimed map[string]string // kind|value → tenant id
}

func newMockClaims() *mockClaims {
	return &mockClaims{claimed: make(map[string]string)}
}

func (m *mockClaims) Claim(_ context.Context, kind domain.ReservationKind, value, tenantID string) error {
	if holder, ok := m.claimed[resKey(kind, value)]; ok && holder != tenantID {
		return &domain.ConflictError{Kind: kind, Value: value}
	}
	m.claimed[resKey(kind, value)] = tenantID
	return nil
}

func (m *mockClaims) Claimed(_ context.Context, kind domain.ReservationKind, value string) (bool, error) {
	_, ok := m.claimed[resKey(kind, value)]
	return ok, nil
}

// scriptedGateway returns the next scripted status on each Status call.
type scriptedGateway struct {
	initiated   int
	statuses    []domain.PaymentStatus
	statusIdx   int
	initiateErr error
	statusErr   error
}

func (g *scriptedGateway) Initiate(_ context.Context, _ int64, _ string, _ map[string]string) (domain.PaymentRef, error) {
	if g.initiateErr != nil {
		return domain.PaymentRef{}, g.initiateErr
	}
	g.initiated++
	return domain.PaymentRef{
		TransactionID: fmt.Sprintf("txn-%d", g.initiated),
		PaymentURL:    fmt.Sprintf("https://pay.example/txn-%d", g.initiated),
	}, nil
}

func (g *scriptedGateway) Status(_ context.Context, _ string) (domain.PaymentStatus, error) {
	if g.statusErr != nil {
		return "", g.statusErr
	}
	if g.statusIdx >= len(g.statuses) {
		return domain.PaymentPending, nil
	}
	status := g.statuses[g.statusIdx]
	g.statusIdx++
	return status, nil
}

type mockProvisioner struct {
	calls   int
	results map[string]domain.FinalizeResult // idempotency key → result
	err     error
}

func newMockProvisioner() *mockProvisioner {
	return &mockProvisioner{results: make(map[string]domain.FinalizeResult)}
}

func (m *mockProvisioner) Create(_ context.Context, _ domain.SchoolInfo, _ domain.PromoterInfo, _ string, idempotencyKey string) (domain.FinalizeResult, error) {
	if m.err != nil {
		return domain.FinalizeResult{}, m.err
	}
	if result, ok := m.results[idempotencyKey]; ok {
		return result, nil
	}
	m.calls++
	result := domain.FinalizeResult{
		SchoolID:   fmt.Sprintf("school-%d", m.calls),
		PromoterID: fmt.Sprintf("promoter-%d", m.calls),
	}
	m.results[idempotencyKey] = result
	return result, nil
}

type publishedEvent struct {
	event   domain.Event
	payload domain.EventPayload
}

type mockPublisher struct {
	events []publishedEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e domain.Event, p domain.EventPayload) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, publishedEvent{event: e, payload: p})
	return nil
}

// --- Fixtures ---

type registrationFixture struct {
	svc          *app.RegistrationService
	sessions     *mockSessionStore
	reservations *mockReservations
	claims       *mockClaims
	gateway      *scriptedGateway
	provisioner  *mockProvisioner
	publisher    *mockPublisher
}

func newRegistrationFixture() *registrationFixture {
	f := &registrationFixture{
		sessions:     newMockSessionStore(),
		reservations: newMockReservations(),
		claims:       newMockClaims(),
		gateway:      &scriptedGateway{},
		provisioner:  newMockProvisioner(),
		publisher:    &mockPublisher{},
	}
	f.svc = app.NewRegistrationService(
		f.sessions, f.reservations, f.claims,
		f.gateway, f.provisioner, f.publisher,
		fsm.New(domain.SessionTransitions),
		30*time.Minute,
	)
	return f
}

func testSchool() domain.SchoolInfo {
	return domain.SchoolInfo{
		Name:      "École Test",
		Subdomain: "ecole-test",
		City:      "Lyon",
		Country:   "FR",
	}
}

func testPromoter() domain.PromoterInfo {
	return domain.PromoterInfo{
		FirstName: "Awa",
		LastName:  "Diallo",
		Email:     "a@b.com",
	}
}

// advanceTo walks a fresh session forward to the wanted step.
func advanceTo(t *testing.T, f *registrationFixture, step domain.Step) domain.RegistrationSession {
	t.Helper()
	ctx := context.Background()

	session, err := f.svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if step == domain.StepStarted {
		return session
	}

	session, err = f.svc.SubmitInfo(ctx, session.ID, testSchool(), testPromoter())
	if err != nil {
		t.Fatalf("SubmitInfo: %v", err)
	}
	if step == domain.StepInfoSubmitted {
		return session
	}

	session, err = f.svc.SelectPlan(ctx, session.ID, "basic")
	if err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}
	if step == domain.StepPlanSelected {
		return session
	}

	if _, err := f.svc.InitiatePayment(ctx, session.ID); err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	session, err = f.sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if step == domain.StepPaymentInitiated {
		return session
	}

	f.gateway.statuses = append(f.gateway.statuses, domain.PaymentCompleted)
	session, err = f.svc.PollPayment(ctx, session.ID)
	if err != nil {
		t.Fatalf("PollPayment: %v", err)
	}
	if step == domain.StepPaymentConfirmed {
		return session
	}

	t.Fatalf("advanceTo: unsupported step %q", step)
	return domain.RegistrationSession{}
}

// --- Tests ---

func TestRegistration_FullFlow(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	session, err := f.svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if session.Step != domain.StepStarted {
		t.Fatalf("Step = %q, want %q", session.Step, domain.StepStarted)
	}

	session, err = f.svc.SubmitInfo(ctx, session.ID, testSchool(), testPromoter())
	if err != nil {
		t.Fatalf("SubmitInfo: %v", err)
	}
	if session.Step != domain.StepInfoSubmitted {
		t.Errorf("Step = %q, want %q", session.Step, domain.StepInfoSubmitted)
	}

	// The subdomain is now unavailable to anyone else.
	available, err := f.svc.SubdomainAvailable(ctx, "ecole-test")
	if err != nil {
		t.Fatalf("SubdomainAvailable: %v", err)
	}
	if available {
		t.Error("reserved subdomain should not be available")
	}

	session, err = f.svc.SelectPlan(ctx, session.ID, "basic")
	if err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}
	if session.Step != domain.StepPlanSelected {
		t.Errorf("Step = %q, want %q", session.Step, domain.StepPlanSelected)
	}

	ref, err := f.svc.InitiatePayment(ctx, session.ID)
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	if ref.TransactionID != "txn-1" {
		t.Errorf("TransactionID = %q, want %q", ref.TransactionID, "txn-1")
	}
	if ref.PaymentURL == "" {
		t.Error("PaymentURL should not be empty")
	}

	// First poll: the gateway reports FAILED; the step must not move.
	f.gateway.statuses = []domain.PaymentStatus{domain.PaymentFailed, domain.PaymentCompleted}
	session, err = f.svc.PollPayment(ctx, session.ID)
	if err != nil {
		t.Fatalf("PollPayment (failed): %v", err)
	}
	if session.Step != domain.StepPaymentInitiated {
		t.Errorf("Step after failed poll = %q, want %q", session.Step, domain.StepPaymentInitiated)
	}
	if session.Payment.Status != domain.PaymentFailed {
		t.Errorf("Payment.Status = %q, want %q", session.Payment.Status, domain.PaymentFailed)
	}

	// Second poll: COMPLETED advances the step.
	session, err = f.svc.PollPayment(ctx, session.ID)
	if err != nil {
		t.Fatalf("PollPayment (completed): %v", err)
	}
	if session.Step != domain.StepPaymentConfirmed {
		t.Errorf("Step = %q, want %q", session.Step, domain.StepPaymentConfirmed)
	}

	result, err := f.svc.Finalize(ctx, session.ID)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.SchoolID == "" || result.PromoterID == "" {
		t.Errorf("result = %+v, want both ids set", result)
	}

	final, err := f.sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get after finalize: %v", err)
	}
	if final.Step != domain.StepFinalized {
		t.Errorf("Step = %q, want %q", final.Step, domain.StepFinalized)
	}

	// Reservations became permanent claims.
	if reserved, _ := f.reservations.Reserved(ctx, domain.ReserveSubdomain, "ecole-test"); reserved {
		t.Error("reservation should be released after finalize")
	}
	if claimed, _ := f.claims.Claimed(ctx, domain.ReserveSubdomain, "ecole-test"); !claimed {
		t.Error("subdomain should be permanently claimed")
	}
	if available, _ := f.svc.SubdomainAvailable(ctx, "ecole-test"); available {
		t.Error("claimed subdomain should stay unavailable")
	}
}

func TestRegistration_SubmitInfo_Conflict(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	first, err := f.svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.SubmitInfo(ctx, first.ID, testSchool(), testPromoter()); err != nil {
		t.Fatalf("first SubmitInfo: %v", err)
	}

	second, err := f.svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Same subdomain, different email: conflict, step unchanged.
	promoter := testPromoter()
	promoter.Email = "other@b.com"
	_, err = f.svc.SubmitInfo(ctx, second.ID, testSchool(), promoter)
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Kind != domain.ReserveSubdomain {
		t.Errorf("conflict kind = %q, want %q", conflict.Kind, domain.ReserveSubdomain)
	}

	got, _ := f.sessions.Get(ctx, second.ID)
	if got.Step != domain.StepStarted {
		t.Errorf("Step = %q, want unchanged %q", got.Step, domain.StepStarted)
	}

	// The conflicting session is free to retry with a different subdomain.
	school := testSchool()
	school.Subdomain = "ecole-deux"
	if _, err := f.svc.SubmitInfo(ctx, second.ID, school, promoter); err != nil {
		t.Fatalf("retry SubmitInfo: %v", err)
	}
}

func TestRegistration_SubmitInfo_EmailConflictReleasesSubdomain(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	first, _ := f.svc.Start(ctx)
	if _, err := f.svc.SubmitInfo(ctx, first.ID, testSchool(), testPromoter()); err != nil {
		t.Fatalf("first SubmitInfo: %v", err)
	}

	second, _ := f.svc.Start(ctx)
	school := testSchool()
	school.Subdomain = "ecole-deux"

	// Fresh subdomain but the email is taken: both reservations must be
	// backed out.
	_, err := f.svc.SubmitInfo(ctx, second.ID, school, testPromoter())
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Kind != domain.ReserveEmail {
		t.Errorf("conflict kind = %q, want %q", conflict.Kind, domain.ReserveEmail)
	}

	if reserved, _ := f.reservations.Reserved(ctx, domain.ReserveSubdomain, "ecole-deux"); reserved {
		t.Error("subdomain reservation should be released when the email conflicts")
	}
}

// staleReadStore serves a pinned snapshot from Get while Update still sees
// the live session, reproducing a reader that raced ahead of a commit.
type staleReadStore struct {
	domain.SessionStore
	stale *domain.RegistrationSession
}

func (s *staleReadStore) Get(ctx context.Context, id string) (domain.RegistrationSession, error) {
	if s.stale != nil && s.stale.ID == id {
		return *s.stale, nil
	}
	return s.SessionStore.Get(ctx, id)
}

func TestRegistration_SubmitInfo_RaceKeepsWinnerReservations(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	session, err := f.svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The winning call commits normally.
	if _, err := f.svc.SubmitInfo(ctx, session.ID, testSchool(), testPromoter()); err != nil {
		t.Fatalf("winner SubmitInfo: %v", err)
	}

	// The losing call read the session before the winner committed, so its
	// pre-check still sees "started"; the authoritative check inside Update
	// must reject it.
	stale := session
	stale.Step = domain.StepStarted
	racer := app.NewRegistrationService(
		&staleReadStore{SessionStore: f.sessions, stale: &stale},
		f.reservations, f.claims,
		f.gateway, f.provisioner, f.publisher,
		fsm.New(domain.SessionTransitions),
		30*time.Minute,
	)

	promoter := testPromoter()
	promoter.Email = "other@b.com"
	_, err = racer.SubmitInfo(ctx, session.ID, testSchool(), promoter)
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}

	// The winner's reservations must survive the losing call.
	if reserved, _ := f.reservations.Reserved(ctx, domain.ReserveSubdomain, "ecole-test"); !reserved {
		t.Error("winner's subdomain reservation was released by the losing call")
	}
	if reserved, _ := f.reservations.Reserved(ctx, domain.ReserveEmail, "a@b.com"); !reserved {
		t.Error("winner's email reservation was released by the losing call")
	}
	if available, _ := f.svc.SubdomainAvailable(ctx, "ecole-test"); available {
		t.Error("subdomain must stay unavailable while the session is live")
	}
}

func TestRegistration_SubmitInfo_WrongStep(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	session := advanceTo(t, f, domain.StepInfoSubmitted)

	_, err := f.svc.SubmitInfo(ctx, session.ID, testSchool(), testPromoter())
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if trErr.Current != string(domain.StepInfoSubmitted) {
		t.Errorf("current = %q, want %q", trErr.Current, domain.StepInfoSubmitted)
	}
}

func TestRegistration_SelectPlan_UnknownPlan(t *testing.T) {
	f := newRegistrationFixture()
	session := advanceTo(t, f, domain.StepInfoSubmitted)

	_, err := f.svc.SelectPlan(context.Background(), session.ID, "platinum")
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRegistration_InitiatePayment_Idempotent(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	session := advanceTo(t, f, domain.StepPlanSelected)

	first, err := f.svc.InitiatePayment(ctx, session.ID)
	if err != nil {
		t.Fatalf("first InitiatePayment: %v", err)
	}
	second, err := f.svc.InitiatePayment(ctx, session.ID)
	if err != nil {
		t.Fatalf("second InitiatePayment: %v", err)
	}

	if first.TransactionID != second.TransactionID {
		t.Errorf("TransactionID changed: %q vs %q", first.TransactionID, second.TransactionID)
	}
	if f.gateway.initiated != 1 {
		t.Errorf("gateway initiated %d times, want 1 (no second charge)", f.gateway.initiated)
	}
}

func TestRegistration_InitiatePayment_GatewayDown(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	session := advanceTo(t, f, domain.StepPlanSelected)
	f.gateway.initiateErr = errors.New("gateway unreachable")

	_, err := f.svc.InitiatePayment(ctx, session.ID)
	var extErr *domain.ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}

	// The step did not advance: the call is retryable.
	got, _ := f.sessions.Get(ctx, session.ID)
	if got.Step != domain.StepPlanSelected {
		t.Errorf("Step = %q, want %q", got.Step, domain.StepPlanSelected)
	}

	f.gateway.initiateErr = nil
	if _, err := f.svc.InitiatePayment(ctx, session.ID); err != nil {
		t.Fatalf("retry InitiatePayment: %v", err)
	}
}

func TestRegistration_Finalize_Idempotent(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	session := advanceTo(t, f, domain.StepPaymentConfirmed)

	first, err := f.svc.Finalize(ctx, session.ID)
	if err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	second, err := f.svc.Finalize(ctx, session.ID)
	if err != nil {
		t.Fatalf("second Finalize: %v", err)
	}

	if first.SchoolID != second.SchoolID {
		t.Errorf("SchoolID changed: %q vs %q", first.SchoolID, second.SchoolID)
	}
	if f.provisioner.calls != 1 {
		t.Errorf("provisioner created %d tenants, want 1", f.provisioner.calls)
	}
}

func TestRegistration_Finalize_ProvisionerDownKeepsReservations(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	session := advanceTo(t, f, domain.StepPaymentConfirmed)
	f.provisioner.err = errors.New("provisioner unavailable")

	_, err := f.svc.Finalize(ctx, session.ID)
	var extErr *domain.ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}

	// A failed finalize never releases the reservations; a retry with the
	// same idempotency key is correct.
	if reserved, _ := f.reservations.Reserved(ctx, domain.ReserveSubdomain, "ecole-test"); !reserved {
		t.Error("reservation must survive a failed finalize")
	}

	f.provisioner.err = nil
	if _, err := f.svc.Finalize(ctx, session.ID); err != nil {
		t.Fatalf("retry Finalize: %v", err)
	}
}

func TestRegistration_Cancel_ReleasesReservations(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	session := advanceTo(t, f, domain.StepInfoSubmitted)

	if err := f.svc.Cancel(ctx, session.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// The value is available again for anyone.
	if available, _ := f.svc.SubdomainAvailable(ctx, "ecole-test"); !available {
		t.Error("subdomain should be free after cancel")
	}

	// The session is gone.
	_, err := f.svc.Get(ctx, session.ID)
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegistration_Cancel_RefusedOnceMoneyMoved(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	session := advanceTo(t, f, domain.StepPaymentConfirmed)

	err := f.svc.Cancel(ctx, session.ID)
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}

	got, _ := f.sessions.Get(ctx, session.ID)
	if got.Step != domain.StepPaymentConfirmed {
		t.Errorf("Step = %q, want unchanged %q", got.Step, domain.StepPaymentConfirmed)
	}
}

func TestRegistration_ExpiredSessionFreesReservation(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	session := advanceTo(t, f, domain.StepInfoSubmitted)

	// Force the session past its TTL; its reservation expires with it in
	// the real registry. The mock mirrors that by dropping on Get.
	stored := f.sessions.sessions[session.ID]
	stored.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	f.sessions.sessions[session.ID] = stored
	_ = f.reservations.ReleaseSession(ctx, session.ID)

	_, err := f.svc.Get(ctx, session.ID)
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	if available, _ := f.svc.SubdomainAvailable(ctx, "ecole-test"); !available {
		t.Error("subdomain should be free after the holding session expired")
	}
}

func TestRegistration_PollPayment_WrongStep(t *testing.T) {
	f := newRegistrationFixture()
	session := advanceTo(t, f, domain.StepPlanSelected)

	_, err := f.svc.PollPayment(context.Background(), session.ID)
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}

func TestRegistration_FinalizePublishesEvent(t *testing.T) {
	f := newRegistrationFixture()
	session := advanceTo(t, f, domain.StepPaymentConfirmed)

	if _, err := f.svc.Finalize(context.Background(), session.ID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	events := make([]string, 0, len(f.publisher.events))
	for _, e := range f.publisher.events {
		events = append(events, string(e.event))
	}
	sort.Strings(events)
	found := false
	for _, e := range events {
		if e == string(domain.EventRegistrationFinalized) {
			found = true
		}
	}
	if !found {
		t.Errorf("events = %v, want %q included", events, domain.EventRegistrationFinalized)
	}
}

func TestRegistration_PublishFailureDoesNotFailFinalize(t *testing.T) {
	f := newRegistrationFixture()
	session := advanceTo(t, f, domain.StepPaymentConfirmed)
	f.publisher.err = errors.New("queue unavailable")

	// Emission is post-commit and best-effort.
	if _, err := f.svc.Finalize(context.Background(), session.ID); err != nil {
		t.Fatalf("Finalize should not fail on publish error, got %v", err)
	}
}
