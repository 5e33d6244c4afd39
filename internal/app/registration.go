package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neomorfeo/onboardiq/internal/domain"
)

// DefaultSessionTTL bounds how long an abandoned registration holds its
// reservations.
const DefaultSessionTTL = 30 * time.Minute

// RegistrationService orchestrates the tenant self-registration flow:
// intake, plan selection, payment, and provisioning. Every operation checks
// the session's current step against the transition table before acting, so
// a desynchronized client gets a TransitionError instead of a partial write.
type RegistrationService struct {
	sessions     domain.SessionStore
	reservations domain.ReservationStore
	claims       domain.ClaimStore
	gateway      domain.PaymentGateway
	provisioner  domain.ProvisioningService
	publisher    domain.EventPublisher
	validator    domain.TransitionValidator[domain.Step, domain.SessionEvent]
	ttl          time.Duration
}

// NewRegistrationService creates a service with the given adapters. A
// non-positive ttl falls back to DefaultSessionTTL.
func NewRegistrationService(
	sessions domain.SessionStore,
	reservations domain.ReservationStore,
	claims domain.ClaimStore,
	gateway domain.PaymentGateway,
	provisioner domain.ProvisioningService,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator[domain.Step, domain.SessionEvent],
	ttl time.Duration,
) *RegistrationService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RegistrationService{
		sessions:     sessions,
		reservations: reservations,
		claims:       claims,
		gateway:      gateway,
		provisioner:  provisioner,
		publisher:    publisher,
		validator:    validator,
		ttl:          ttl,
	}
}

// Start creates a new registration session in the "started" step.
func (s *RegistrationService) Start(ctx context.Context) (domain.RegistrationSession, error) {
	id, err := generateID("reg")
	if err != nil {
		return domain.RegistrationSession{}, fmt.Errorf("generating session id: %w", err)
	}

	session := domain.NewRegistrationSession(id, s.ttl)
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.RegistrationSession{}, fmt.Errorf("creating session: %w", err)
	}

	return session, nil
}

// Get returns the session, surfacing expiry as domain.ErrSessionExpired.
func (s *RegistrationService) Get(ctx context.Context, id string) (domain.RegistrationSession, error) {
	return s.sessions.Get(ctx, id)
}

// SubdomainAvailable reports whether a subdomain is free: no live
// reservation by another session and no permanent claim.
func (s *RegistrationService) SubdomainAvailable(ctx context.Context, value string) (bool, error) {
	return s.available(ctx, domain.ReserveSubdomain, value)
}

// EmailAvailable reports whether a promoter email is free.
func (s *RegistrationService) EmailAvailable(ctx context.Context, value string) (bool, error) {
	return s.available(ctx, domain.ReserveEmail, value)
}

func (s *RegistrationService) available(ctx context.Context, kind domain.ReservationKind, value string) (bool, error) {
	if value == "" {
		return false, &domain.ValidationError{Field: string(kind), Reason: "must not be empty"}
	}

	reserved, err := s.reservations.Reserved(ctx, kind, value)
	if err != nil {
		return false, fmt.Errorf("checking reservation: %w", err)
	}
	if reserved {
		return false, nil
	}

	claimed, err := s.claims.Claimed(ctx, kind, value)
	if err != nil {
		return false, fmt.Errorf("checking claim: %w", err)
	}
	return !claimed, nil
}

// SubmitInfo stores the school and promoter details and reserves the
// subdomain and email for this session. Both values are reserved or neither:
// a conflict on either leaves the session in "started" so the client can
// retry with different values.
//
// The step check and the reservations commit together inside the session's
// critical section. A call that loses a race on the same session fails its
// step check before touching the registry, so it can never disturb
// reservations the winning call just made.
func (s *RegistrationService) SubmitInfo(ctx context.Context, id string, school domain.SchoolInfo, promoter domain.PromoterInfo) (domain.RegistrationSession, error) {
	if err := validateSchoolInfo(school); err != nil {
		return domain.RegistrationSession{}, err
	}
	if err := validatePromoterInfo(promoter); err != nil {
		return domain.RegistrationSession{}, err
	}

	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return domain.RegistrationSession{}, err
	}
	if _, err := s.validator.Apply(ctx, session.Step, domain.EventSubmitInfo); err != nil {
		return domain.RegistrationSession{}, err
	}

	// Permanent claims trump any reservation attempt. Claims only ever grow,
	// so checking them outside the critical section is safe: a value claimed
	// later would have conflicted at Reserve time anyway.
	for _, check := range []struct {
		kind  domain.ReservationKind
		value string
	}{
		{domain.ReserveSubdomain, school.Subdomain},
		{domain.ReserveEmail, promoter.Email},
	} {
		claimed, err := s.claims.Claimed(ctx, check.kind, check.value)
		if err != nil {
			return domain.RegistrationSession{}, fmt.Errorf("checking claim: %w", err)
		}
		if claimed {
			return domain.RegistrationSession{}, &domain.ConflictError{Kind: check.kind, Value: check.value}
		}
	}

	return s.sessions.Update(ctx, id, func(sess *domain.RegistrationSession) error {
		next, err := s.validator.Apply(ctx, sess.Step, domain.EventSubmitInfo)
		if err != nil {
			return err
		}

		if err := s.reservations.Reserve(ctx, domain.ReserveSubdomain, school.Subdomain, id, sess.ExpiresAt); err != nil {
			return err
		}
		if err := s.reservations.Reserve(ctx, domain.ReserveEmail, promoter.Email, id, sess.ExpiresAt); err != nil {
			// The subdomain reservation above is the only one this call
			// created: the step check guarantees the session held none
			// before.
			if relErr := s.reservations.Release(ctx, domain.ReserveSubdomain, school.Subdomain); relErr != nil {
				slog.WarnContext(ctx, "releasing subdomain after email conflict", "session_id", id, "error", relErr)
			}
			return err
		}

		sess.School = &school
		sess.Promoter = &promoter
		sess.Step = next
		return nil
	})
}

// SelectPlan records the chosen subscription plan.
func (s *RegistrationService) SelectPlan(ctx context.Context, id, planID string) (domain.RegistrationSession, error) {
	if _, ok := domain.PlanByID(planID); !ok {
		return domain.RegistrationSession{}, &domain.ValidationError{Field: "plan_id", Reason: fmt.Sprintf("unknown plan %q", planID)}
	}

	return s.sessions.Update(ctx, id, func(sess *domain.RegistrationSession) error {
		next, err := s.validator.Apply(ctx, sess.Step, domain.EventSelectPlan)
		if err != nil {
			return err
		}
		sess.PlanID = planID
		sess.Step = next
		return nil
	})
}

// InitiatePayment creates a gateway transaction for the selected plan.
// Re-invoking while already in "payment_initiated" returns the existing
// reference without touching the gateway, so a retrying client never causes
// a second charge.
func (s *RegistrationService) InitiatePayment(ctx context.Context, id string) (domain.PaymentRef, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return domain.PaymentRef{}, err
	}

	if session.Step == domain.StepPaymentInitiated && session.Payment != nil {
		return *session.Payment, nil
	}
	if _, err := s.validator.Apply(ctx, session.Step, domain.EventInitiatePayment); err != nil {
		return domain.PaymentRef{}, err
	}

	plan, ok := domain.PlanByID(session.PlanID)
	if !ok {
		return domain.PaymentRef{}, &domain.ValidationError{Field: "plan_id", Reason: "session has no valid plan"}
	}

	// The gateway call runs outside the session's critical section; its
	// outcome is applied as a single mutation below.
	ref, err := s.gateway.Initiate(ctx, plan.Amount, plan.Currency, map[string]string{
		"session_id": session.ID,
		"plan_id":    plan.ID,
		"subdomain":  session.School.Subdomain,
	})
	if err != nil {
		return domain.PaymentRef{}, &domain.ExternalServiceError{Service: "payment gateway", Err: err}
	}
	ref.Status = domain.PaymentPending
	ref.PolledAt = time.Now().UTC()

	if _, err := s.sessions.Update(ctx, id, func(sess *domain.RegistrationSession) error {
		if sess.Step == domain.StepPaymentInitiated && sess.Payment != nil {
			// A concurrent call won the race; keep its transaction.
			ref = *sess.Payment
			return nil
		}
		next, err := s.validator.Apply(ctx, sess.Step, domain.EventInitiatePayment)
		if err != nil {
			return err
		}
		sess.Payment = &ref
		sess.Step = next
		return nil
	}); err != nil {
		return domain.PaymentRef{}, err
	}

	return ref, nil
}

// PollPayment asks the gateway for the transaction status and advances the
// session to "payment_confirmed" when the payment completed. A failed
// payment keeps the session in "payment_initiated": the client may retry the
// payment or cancel. Polling an already confirmed session is a no-op.
func (s *RegistrationService) PollPayment(ctx context.Context, id string) (domain.RegistrationSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return domain.RegistrationSession{}, err
	}

	if session.Step == domain.StepPaymentConfirmed {
		return session, nil
	}
	if session.Step != domain.StepPaymentInitiated || session.Payment == nil {
		return domain.RegistrationSession{}, &domain.TransitionError{
			Event:   string(domain.EventConfirmPayment),
			Current: string(session.Step),
		}
	}

	status, err := s.gateway.Status(ctx, session.Payment.TransactionID)
	if err != nil {
		return domain.RegistrationSession{}, &domain.ExternalServiceError{Service: "payment gateway", Err: err}
	}

	return s.sessions.Update(ctx, id, func(sess *domain.RegistrationSession) error {
		if sess.Payment == nil {
			return &domain.TransitionError{
				Event:   string(domain.EventConfirmPayment),
				Current: string(sess.Step),
			}
		}
		sess.Payment.Status = status
		sess.Payment.PolledAt = time.Now().UTC()

		if status == domain.PaymentCompleted && sess.Step == domain.StepPaymentInitiated {
			next, err := s.validator.Apply(ctx, sess.Step, domain.EventConfirmPayment)
			if err != nil {
				return err
			}
			sess.Step = next
		}
		return nil
	})
}

// Finalize provisions the durable tenant records for a fully paid session,
// converts the soft reservations into permanent claims, and marks the
// session finalized. The session id doubles as the provisioning idempotency
// key, and a finalized session keeps its result until expiry, so retrying
// Finalize is always safe and always yields the same school.
func (s *RegistrationService) Finalize(ctx context.Context, id string) (domain.FinalizeResult, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return domain.FinalizeResult{}, err
	}

	if session.Step == domain.StepFinalized && session.Result != nil {
		return *session.Result, nil
	}
	if _, err := s.validator.Apply(ctx, session.Step, domain.EventFinalize); err != nil {
		return domain.FinalizeResult{}, err
	}
	if session.Payment == nil || session.Payment.Status != domain.PaymentCompleted {
		return domain.FinalizeResult{}, &domain.TransitionError{
			Event:   string(domain.EventFinalize),
			Current: string(session.Step),
		}
	}

	// Provisioning runs outside the critical section. On failure the
	// reservations stay in place, so a retry with the same idempotency key
	// picks up exactly where this attempt left off.
	result, err := s.provisioner.Create(ctx, *session.School, *session.Promoter, session.PlanID, session.ID)
	if err != nil {
		return domain.FinalizeResult{}, &domain.ExternalServiceError{Service: "provisioning", Err: err}
	}

	if err := s.claims.Claim(ctx, domain.ReserveSubdomain, session.School.Subdomain, result.SchoolID); err != nil {
		return domain.FinalizeResult{}, fmt.Errorf("claiming subdomain: %w", err)
	}
	if err := s.claims.Claim(ctx, domain.ReserveEmail, session.Promoter.Email, result.SchoolID); err != nil {
		return domain.FinalizeResult{}, fmt.Errorf("claiming email: %w", err)
	}

	updated, err := s.sessions.Update(ctx, id, func(sess *domain.RegistrationSession) error {
		if sess.Step == domain.StepFinalized && sess.Result != nil {
			result = *sess.Result
			return nil
		}
		next, err := s.validator.Apply(ctx, sess.Step, domain.EventFinalize)
		if err != nil {
			return err
		}
		sess.Result = &result
		sess.Step = next
		return nil
	})
	if err != nil {
		return domain.FinalizeResult{}, err
	}

	// The permanent claims are now authoritative.
	if err := s.reservations.ReleaseSession(ctx, id); err != nil {
		slog.WarnContext(ctx, "releasing reservations after finalize", "session_id", id, "error", err)
	}

	s.publish(ctx, domain.EventRegistrationFinalized, domain.EventPayload{
		SessionID: id,
		SchoolID:  result.SchoolID,
		PlanID:    updated.PlanID,
		State:     string(updated.Step),
	})

	return result, nil
}

// Cancel aborts a session and releases its reservations. It is refused once
// the payment has been confirmed or the session finalized.
func (s *RegistrationService) Cancel(ctx context.Context, id string) error {
	updated, err := s.sessions.Update(ctx, id, func(sess *domain.RegistrationSession) error {
		next, err := s.validator.Apply(ctx, sess.Step, domain.EventCancel)
		if err != nil {
			return err
		}
		sess.Step = next
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.reservations.ReleaseSession(ctx, id); err != nil {
		slog.WarnContext(ctx, "releasing reservations after cancel", "session_id", id, "error", err)
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		slog.WarnContext(ctx, "deleting cancelled session", "session_id", id, "error", err)
	}

	s.publish(ctx, domain.EventRegistrationCancelled, domain.EventPayload{
		SessionID: id,
		PlanID:    updated.PlanID,
		State:     string(updated.Step),
	})

	return nil
}

// publish emits a post-commit event. Emission is best-effort: a failure is
// logged and never reverses the committed transition.
func (s *RegistrationService) publish(ctx context.Context, event domain.Event, payload domain.EventPayload) {
	if err := s.publisher.Publish(ctx, event, payload); err != nil {
		slog.WarnContext(ctx, "publishing workflow event",
			"event", string(event),
			"session_id", payload.SessionID,
			"error", err,
		)
	}
}

func validateSchoolInfo(school domain.SchoolInfo) error {
	if school.Name == "" {
		return &domain.ValidationError{Field: "school.name", Reason: "must not be empty"}
	}
	if school.Subdomain == "" {
		return &domain.ValidationError{Field: "school.subdomain", Reason: "must not be empty"}
	}
	if strings.ToLower(school.Subdomain) != school.Subdomain || strings.ContainsAny(school.Subdomain, " .") {
		return &domain.ValidationError{Field: "school.subdomain", Reason: "must be lowercase without spaces or dots"}
	}
	return nil
}

func validatePromoterInfo(promoter domain.PromoterInfo) error {
	if promoter.FirstName == "" || promoter.LastName == "" {
		return &domain.ValidationError{Field: "promoter.name", Reason: "must not be empty"}
	}
	if !strings.Contains(promoter.Email, "@") {
		return &domain.ValidationError{Field: "promoter.email", Reason: "must be a valid email address"}
	}
	return nil
}

// Possible exposes the steps reachable from the session's current step,
// mainly for clients rendering what to do next.
func (s *RegistrationService) Possible(ctx context.Context, id string) ([]domain.Step, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.validator.Possible(session.Step), nil
}
