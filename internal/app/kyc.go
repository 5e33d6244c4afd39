package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neomorfeo/onboardiq/internal/domain"
)

// DocumentUpload is one document handed to SubmitDocuments before storage.
type DocumentUpload struct {
	Type        domain.DocumentType
	Content     []byte
	ContentType string
}

// KYCService orchestrates document submission and admin disposition of KYC
// cases. Mutations are serialized per tenant id; document uploads and other
// outbound calls run outside that critical section.
type KYCService struct {
	repo      domain.KYCRepository
	docs      domain.DocumentStore
	scheduler domain.ActivationScheduler
	publisher domain.EventPublisher
	validator domain.TransitionValidator[domain.KYCStatus, domain.KYCEvent]
	locks     *keyLock
}

// NewKYCService creates a service with the given adapters.
func NewKYCService(
	repo domain.KYCRepository,
	docs domain.DocumentStore,
	scheduler domain.ActivationScheduler,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator[domain.KYCStatus, domain.KYCEvent],
) *KYCService {
	return &KYCService{
		repo:      repo,
		docs:      docs,
		scheduler: scheduler,
		publisher: publisher,
		validator: validator,
		locks:     newKeyLock(),
	}
}

// GetCase returns the tenant's case, or a virtual "not_submitted" case when
// none exists yet. The case is created lazily on first submission.
func (s *KYCService) GetCase(ctx context.Context, tenantID string) (domain.KYCCase, error) {
	c, err := s.repo.Get(ctx, tenantID)
	if errors.Is(err, domain.ErrCaseNotFound) {
		return domain.NewKYCCase(tenantID), nil
	}
	if err != nil {
		return domain.KYCCase{}, err
	}
	return c, nil
}

// SubmitDocuments stores a complete document set and moves the case to
// "pending". Every required category must be covered exactly once.
// Submission is all-or-nothing: nothing is recorded until every upload
// succeeded. Resubmitting after a rejection replaces the previous document
// set and increments the resubmission counter.
func (s *KYCService) SubmitDocuments(ctx context.Context, tenantID string, uploads []DocumentUpload, description string) (domain.KYCCase, error) {
	if tenantID == "" {
		return domain.KYCCase{}, &domain.ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	}
	if err := validateUploads(uploads); err != nil {
		return domain.KYCCase{}, err
	}

	// Early status check so an obviously wrong submission skips the
	// uploads; the authoritative check repeats under the lock below.
	current, err := s.GetCase(ctx, tenantID)
	if err != nil {
		return domain.KYCCase{}, err
	}
	if _, err := s.validator.Apply(ctx, current.Status, domain.EventSubmitDocuments); err != nil {
		return domain.KYCCase{}, err
	}

	now := time.Now().UTC()
	refs := make([]domain.DocumentRef, 0, len(uploads))
	for _, upload := range uploads {
		storageRef, err := s.docs.Store(ctx, upload.Content, upload.ContentType)
		if err != nil {
			return domain.KYCCase{}, &domain.ExternalServiceError{Service: "document store", Err: err}
		}
		refs = append(refs, domain.DocumentRef{
			Type:       upload.Type,
			StorageRef: storageRef,
			UploadedAt: now,
		})
	}

	unlock := s.locks.acquire(tenantID)
	defer unlock()

	current, err = s.GetCase(ctx, tenantID)
	if err != nil {
		return domain.KYCCase{}, err
	}
	next, err := s.validator.Apply(ctx, current.Status, domain.EventSubmitDocuments)
	if err != nil {
		return domain.KYCCase{}, err
	}

	if current.Status == domain.KYCRejected {
		current.ResubmissionCount++
	}
	current.Status = next
	current.Documents = refs
	current.Description = description
	current.SubmittedAt = now
	current.DecidedAt = time.Time{}
	current.DecidedBy = ""
	current.ReviewNotes = ""
	current.RejectionReason = ""

	if err := s.repo.Save(ctx, current); err != nil {
		return domain.KYCCase{}, fmt.Errorf("saving kyc case: %w", err)
	}

	s.publish(ctx, domain.EventKYCSubmitted, current)

	return current, nil
}

// Approve marks a pending case verified and schedules the tenant activation.
// Activation is a best-effort post-commit effect: the verified status stands
// even if scheduling or the activation itself fails, and the activation job
// is retried out-of-band.
func (s *KYCService) Approve(ctx context.Context, tenantID, reviewerID, notes string) (domain.KYCCase, error) {
	if reviewerID == "" {
		return domain.KYCCase{}, &domain.ValidationError{Field: "reviewer_id", Reason: "must not be empty"}
	}

	unlock := s.locks.acquire(tenantID)
	defer unlock()

	current, err := s.GetCase(ctx, tenantID)
	if err != nil {
		return domain.KYCCase{}, err
	}
	next, err := s.validator.Apply(ctx, current.Status, domain.EventApprove)
	if err != nil {
		return domain.KYCCase{}, err
	}

	current.Status = next
	current.DecidedAt = time.Now().UTC()
	current.DecidedBy = reviewerID
	current.ReviewNotes = notes

	if err := s.repo.Save(ctx, current); err != nil {
		return domain.KYCCase{}, fmt.Errorf("saving kyc case: %w", err)
	}

	if err := s.scheduler.Schedule(ctx, tenantID); err != nil {
		slog.WarnContext(ctx, "scheduling tenant activation",
			"tenant_id", tenantID,
			"error", err,
		)
	}
	s.publish(ctx, domain.EventKYCApproved, current)

	return current, nil
}

// Reject marks a pending case rejected with a mandatory reason. The tenant
// may resubmit a fresh document set afterwards.
func (s *KYCService) Reject(ctx context.Context, tenantID, reviewerID, reason string) (domain.KYCCase, error) {
	if reviewerID == "" {
		return domain.KYCCase{}, &domain.ValidationError{Field: "reviewer_id", Reason: "must not be empty"}
	}
	if reason == "" {
		return domain.KYCCase{}, &domain.ValidationError{Field: "reason", Reason: "must not be empty"}
	}

	unlock := s.locks.acquire(tenantID)
	defer unlock()

	current, err := s.GetCase(ctx, tenantID)
	if err != nil {
		return domain.KYCCase{}, err
	}
	next, err := s.validator.Apply(ctx, current.Status, domain.EventReject)
	if err != nil {
		return domain.KYCCase{}, err
	}

	current.Status = next
	current.DecidedAt = time.Now().UTC()
	current.DecidedBy = reviewerID
	current.RejectionReason = reason

	if err := s.repo.Save(ctx, current); err != nil {
		return domain.KYCCase{}, fmt.Errorf("saving kyc case: %w", err)
	}

	s.publish(ctx, domain.EventKYCRejected, current)

	return current, nil
}

// ListPending returns pending cases oldest-submission-first.
func (s *KYCService) ListPending(ctx context.Context) ([]domain.KYCCase, error) {
	return s.repo.ListPending(ctx)
}

func (s *KYCService) publish(ctx context.Context, event domain.Event, c domain.KYCCase) {
	err := s.publisher.Publish(ctx, event, domain.EventPayload{
		TenantID: c.TenantID,
		State:    string(c.Status),
	})
	if err != nil {
		slog.WarnContext(ctx, "publishing workflow event",
			"event", string(event),
			"tenant_id", c.TenantID,
			"error", err,
		)
	}
}

func validateUploads(uploads []DocumentUpload) error {
	seen := make(map[domain.DocumentType]bool, len(uploads))
	for _, upload := range uploads {
		if len(upload.Content) == 0 {
			return &domain.ValidationError{Field: string(upload.Type), Reason: "document content must not be empty"}
		}
		if seen[upload.Type] {
			return &domain.ValidationError{Field: string(upload.Type), Reason: "duplicate document category"}
		}
		seen[upload.Type] = true
	}

	var missing []domain.DocumentType
	for _, required := range domain.RequiredDocumentTypes {
		if !seen[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return &domain.IncompleteSubmissionError{Missing: missing}
	}
	return nil
}
