package domain

import "time"

// KYCStatus represents the verification state of a tenant's KYC case.
type KYCStatus string

const (
	KYCNotSubmitted KYCStatus = "not_submitted"
	KYCPending      KYCStatus = "pending"
	KYCVerified     KYCStatus = "verified"
	KYCRejected     KYCStatus = "rejected"
)

// KYCEvent represents an action that moves a KYC case between statuses.
type KYCEvent string

const (
	EventSubmitDocuments KYCEvent = "submit_documents"
	EventApprove         KYCEvent = "approve"
	EventReject          KYCEvent = "reject"
)

// KYCTransitions defines all valid status changes for a KYC case.
// "not_submitted" is reachable only at creation and "verified" is terminal;
// a rejected case re-enters review through resubmission.
var KYCTransitions = []Transition[KYCStatus, KYCEvent]{
	{Event: EventSubmitDocuments, Src: KYCNotSubmitted, Dst: KYCPending},
	{Event: EventSubmitDocuments, Src: KYCRejected, Dst: KYCPending},
	{Event: EventApprove, Src: KYCPending, Dst: KYCVerified},
	{Event: EventReject, Src: KYCPending, Dst: KYCRejected},
}

// DocumentType is a fixed category of required verification document.
type DocumentType string

const (
	DocIdentity             DocumentType = "identity_document"
	DocBusinessRegistration DocumentType = "business_registration"
	DocProofOfAddress       DocumentType = "proof_of_address"
	DocTaxCertificate       DocumentType = "tax_certificate"
)

// RequiredDocumentTypes lists every category a complete submission must cover.
var RequiredDocumentTypes = []DocumentType{
	DocIdentity,
	DocBusinessRegistration,
	DocProofOfAddress,
	DocTaxCertificate,
}

// DocumentRef points at a stored verification document. StorageRef is opaque
// to this service; only the document store can resolve it.
type DocumentRef struct {
	Type       DocumentType
	StorageRef string
	UploadedAt time.Time
}

// KYCCase is the verification record for one tenant. Exactly one case exists
// per tenant; it is created lazily on first submission and never deleted.
type KYCCase struct {
	TenantID          string
	Status            KYCStatus
	Description       string
	Documents         []DocumentRef
	SubmittedAt       time.Time
	DecidedAt         time.Time
	DecidedBy         string
	ReviewNotes       string
	RejectionReason   string
	ResubmissionCount int
	UpdatedAt         time.Time
}

// NewKYCCase creates the virtual case returned before any submission exists.
func NewKYCCase(tenantID string) KYCCase {
	return KYCCase{
		TenantID: tenantID,
		Status:   KYCNotSubmitted,
	}
}
