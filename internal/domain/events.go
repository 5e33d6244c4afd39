package domain

// Event identifies a post-commit workflow event emitted after a state
// mutation has been committed.
type Event string

const (
	EventRegistrationFinalized Event = "registration.finalized"
	EventRegistrationCancelled Event = "registration.cancelled"
	EventKYCSubmitted          Event = "kyc.submitted"
	EventKYCApproved           Event = "kyc.approved"
	EventKYCRejected           Event = "kyc.rejected"
)

// EventPayload is a snapshot of the identifiers relevant to an event, so
// consumers never need to read back workflow state.
type EventPayload struct {
	SessionID string
	TenantID  string
	SchoolID  string
	PlanID    string
	State     string
}
