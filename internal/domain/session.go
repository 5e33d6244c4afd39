package domain

import "time"

// Step represents the position of a registration session in the intake flow.
type Step string

const (
	StepStarted          Step = "started"
	StepInfoSubmitted    Step = "info_submitted"
	StepPlanSelected     Step = "plan_selected"
	StepPaymentInitiated Step = "payment_initiated"
	StepPaymentConfirmed Step = "payment_confirmed"
	StepFinalized        Step = "finalized"
	StepCancelled        Step = "cancelled"
)

// SessionEvent represents an action that advances a registration session.
type SessionEvent string

const (
	EventSubmitInfo      SessionEvent = "submit_info"
	EventSelectPlan      SessionEvent = "select_plan"
	EventInitiatePayment SessionEvent = "initiate_payment"
	EventConfirmPayment  SessionEvent = "confirm_payment"
	EventFinalize        SessionEvent = "finalize"
	EventCancel          SessionEvent = "cancel"
)

// SessionTransitions defines all valid step changes in the registration flow.
// Cancel is reachable only while no money has moved: once the payment is
// confirmed the session can only finalize.
var SessionTransitions = []Transition[Step, SessionEvent]{
	{Event: EventSubmitInfo, Src: StepStarted, Dst: StepInfoSubmitted},
	{Event: EventSelectPlan, Src: StepInfoSubmitted, Dst: StepPlanSelected},
	{Event: EventInitiatePayment, Src: StepPlanSelected, Dst: StepPaymentInitiated},
	{Event: EventConfirmPayment, Src: StepPaymentInitiated, Dst: StepPaymentConfirmed},
	{Event: EventFinalize, Src: StepPaymentConfirmed, Dst: StepFinalized},
	{Event: EventCancel, Src: StepStarted, Dst: StepCancelled},
	{Event: EventCancel, Src: StepInfoSubmitted, Dst: StepCancelled},
	{Event: EventCancel, Src: StepPlanSelected, Dst: StepCancelled},
	{Event: EventCancel, Src: StepPaymentInitiated, Dst: StepCancelled},
}

// ReservationKind identifies a uniqueness namespace for soft reservations.
type ReservationKind string

const (
	ReserveSubdomain ReservationKind = "subdomain"
	ReserveEmail     ReservationKind = "email"
)

// PaymentStatus is the last-polled state of a gateway transaction.
// The gateway owns the transaction; this is only a cached view.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// SchoolInfo holds the organization details collected during intake.
type SchoolInfo struct {
	Name      string
	Subdomain string
	City      string
	Country   string
}

// PromoterInfo holds the details of the person registering the school.
type PromoterInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// PaymentRef is the cached view of a gateway transaction held by a session.
type PaymentRef struct {
	TransactionID string
	PaymentURL    string
	Status        PaymentStatus
	PolledAt      time.Time
}

// FinalizeResult identifies the tenant records created when a session finalizes.
type FinalizeResult struct {
	SchoolID   string
	PromoterID string
}

// RegistrationSession is the ephemeral state of one self-registration flow.
// It is created on first intake call and destroyed on TTL expiry or explicit
// cancellation; a finalized session lingers until expiry so retried finalize
// calls can return the same result.
type RegistrationSession struct {
	ID        string
	Step      Step
	CreatedAt time.Time
	ExpiresAt time.Time
	UpdatedAt time.Time

	School   *SchoolInfo
	Promoter *PromoterInfo
	PlanID   string
	Payment  *PaymentRef
	Result   *FinalizeResult
}

// NewRegistrationSession creates a session in the initial "started" step.
func NewRegistrationSession(id string, ttl time.Duration) RegistrationSession {
	now := time.Now().UTC()
	return RegistrationSession{
		ID:        id,
		Step:      StepStarted,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		UpdatedAt: now,
	}
}

// Expired reports whether the session is past its TTL at the given instant.
func (s RegistrationSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Terminal reports whether the session step admits no further transitions.
func (s RegistrationSession) Terminal() bool {
	return s.Step == StepFinalized || s.Step == StepCancelled
}
