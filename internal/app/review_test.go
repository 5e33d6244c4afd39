package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neomorfeo/onboardiq/internal/app"
	"github.com/neomorfeo/onboardiq/internal/domain"
)

func TestReviewQueue_ListPending(t *testing.T) {
	repo := newMockKYCRepo()
	svc := app.NewReviewQueueService(repo, &mockDocStore{})
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, tenantID := range []string{"tenant-late", "tenant-early"} {
		c := domain.NewKYCCase(tenantID)
		c.Status = domain.KYCPending
		c.SubmittedAt = base.Add(time.Duration(1-i) * time.Hour)
		c.Documents = []domain.DocumentRef{{Type: domain.DocIdentity, StorageRef: "ref-1"}}
		if err := repo.Save(ctx, c); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	verified := domain.NewKYCCase("tenant-done")
	verified.Status = domain.KYCVerified
	if err := repo.Save(ctx, verified); err != nil {
		t.Fatalf("Save: %v", err)
	}

	queue, err := svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("len = %d, want 2", len(queue))
	}
	if queue[0].TenantID != "tenant-early" {
		t.Errorf("queue[0] = %q, want oldest submission first", queue[0].TenantID)
	}
	if queue[0].DocumentCount != 1 {
		t.Errorf("DocumentCount = %d, want 1", queue[0].DocumentCount)
	}
}

func TestReviewQueue_GetDetail(t *testing.T) {
	repo := newMockKYCRepo()
	svc := app.NewReviewQueueService(repo, &mockDocStore{})
	ctx := context.Background()

	c := domain.NewKYCCase("tenant-1")
	c.Status = domain.KYCPending
	c.Documents = []domain.DocumentRef{
		{Type: domain.DocIdentity, StorageRef: "ref-1"},
		{Type: domain.DocBusinessRegistration, StorageRef: "ref-2"},
	}
	if err := repo.Save(ctx, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	detail, err := svc.GetDetail(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("GetDetail: %v", err)
	}
	if len(detail.Documents) != 2 {
		t.Fatalf("documents = %d, want 2", len(detail.Documents))
	}
	if detail.Documents[0].URL != "https://docs.example/ref-1" {
		t.Errorf("URL = %q", detail.Documents[0].URL)
	}
	if detail.Documents[1].Type != domain.DocBusinessRegistration {
		t.Errorf("Type = %q", detail.Documents[1].Type)
	}
}

func TestReviewQueue_GetDetail_NotFound(t *testing.T) {
	svc := app.NewReviewQueueService(newMockKYCRepo(), &mockDocStore{})

	_, err := svc.GetDetail(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
}

func TestReviewQueue_GetDetail_ResolveFailure(t *testing.T) {
	repo := newMockKYCRepo()
	docs := &mockDocStore{resolveErr: errors.New("storage down")}
	svc := app.NewReviewQueueService(repo, docs)
	ctx := context.Background()

	c := domain.NewKYCCase("tenant-1")
	c.Status = domain.KYCPending
	c.Documents = []domain.DocumentRef{{Type: domain.DocIdentity, StorageRef: "ref-1"}}
	if err := repo.Save(ctx, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, err := svc.GetDetail(ctx, "tenant-1")
	var extErr *domain.ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
}
