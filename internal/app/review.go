package app

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/onboardiq/internal/domain"
)

// PendingCaseSummary is one row in the reviewer queue.
type PendingCaseSummary struct {
	TenantID          string
	SubmittedAt       time.Time
	ResubmissionCount int
	DocumentCount     int
}

// ResolvedDocument is a document ref with its storage ref exchanged for a
// temporary retrieval URL.
type ResolvedDocument struct {
	Type       domain.DocumentType
	URL        string
	UploadedAt time.Time
}

// CaseDetail is the full reviewer view of one case.
type CaseDetail struct {
	Case      domain.KYCCase
	Documents []ResolvedDocument
}

// ReviewQueueService is a read-only projection over KYC cases for admin
// reviewers. It resolves document refs through the external document store
// and duplicates no storage logic.
type ReviewQueueService struct {
	repo domain.KYCRepository
	docs domain.DocumentStore
}

// NewReviewQueueService creates the projection with the given adapters.
func NewReviewQueueService(repo domain.KYCRepository, docs domain.DocumentStore) *ReviewQueueService {
	return &ReviewQueueService{repo: repo, docs: docs}
}

// ListPending returns the reviewer queue, oldest submission first.
func (s *ReviewQueueService) ListPending(ctx context.Context) ([]PendingCaseSummary, error) {
	cases, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]PendingCaseSummary, len(cases))
	for i, c := range cases {
		out[i] = PendingCaseSummary{
			TenantID:          c.TenantID,
			SubmittedAt:       c.SubmittedAt,
			ResubmissionCount: c.ResubmissionCount,
			DocumentCount:     len(c.Documents),
		}
	}
	return out, nil
}

// GetDetail returns one case with every document resolved to a URL.
func (s *ReviewQueueService) GetDetail(ctx context.Context, tenantID string) (CaseDetail, error) {
	c, err := s.repo.Get(ctx, tenantID)
	if err != nil {
		return CaseDetail{}, err
	}

	docs := make([]ResolvedDocument, len(c.Documents))
	for i, doc := range c.Documents {
		url, err := s.docs.Resolve(ctx, doc.StorageRef)
		if err != nil {
			return CaseDetail{}, &domain.ExternalServiceError{
				Service: "document store",
				Err:     fmt.Errorf("resolving %s: %w", doc.Type, err),
			}
		}
		docs[i] = ResolvedDocument{
			Type:       doc.Type,
			URL:        url,
			UploadedAt: doc.UploadedAt,
		}
	}

	return CaseDetail{Case: c, Documents: docs}, nil
}
