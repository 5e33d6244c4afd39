package domain_test

import (
	"testing"

	"github.com/neomorfeo/onboardiq/internal/domain"
)

func TestNewKYCCase(t *testing.T) {
	c := domain.NewKYCCase("tenant-1")
	if c.TenantID != "tenant-1" {
		t.Errorf("TenantID = %q, want %q", c.TenantID, "tenant-1")
	}
	if c.Status != domain.KYCNotSubmitted {
		t.Errorf("Status = %q, want %q", c.Status, domain.KYCNotSubmitted)
	}
	if len(c.Documents) != 0 {
		t.Errorf("Documents should be empty, got %d", len(c.Documents))
	}
}

func TestKYCTransitions_ValidPaths(t *testing.T) {
	cases := []struct {
		event domain.KYCEvent
		src   domain.KYCStatus
		dst   domain.KYCStatus
	}{
		{domain.EventSubmitDocuments, domain.KYCNotSubmitted, domain.KYCPending},
		{domain.EventSubmitDocuments, domain.KYCRejected, domain.KYCPending},
		{domain.EventApprove, domain.KYCPending, domain.KYCVerified},
		{domain.EventReject, domain.KYCPending, domain.KYCRejected},
	}

	for _, tc := range cases {
		found := false
		for _, tr := range domain.KYCTransitions {
			if tr.Event == tc.event && tr.Src == tc.src && tr.Dst == tc.dst {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing transition: %q from %q → %q", tc.event, tc.src, tc.dst)
		}
	}
}

func TestKYCTransitions_InvalidPaths(t *testing.T) {
	// These transitions must NOT exist.
	invalid := []struct {
		event domain.KYCEvent
		src   domain.KYCStatus
	}{
		{domain.EventSubmitDocuments, domain.KYCPending},
		{domain.EventSubmitDocuments, domain.KYCVerified},
		{domain.EventApprove, domain.KYCNotSubmitted},
		{domain.EventApprove, domain.KYCVerified},
		{domain.EventApprove, domain.KYCRejected},
		{domain.EventReject, domain.KYCVerified},
		{domain.EventReject, domain.KYCRejected},
	}

	for _, tc := range invalid {
		for _, tr := range domain.KYCTransitions {
			if tr.Event == tc.event && tr.Src == tc.src {
				t.Errorf("unexpected transition: %q from %q should not exist", tc.event, tc.src)
			}
		}
	}
}

func TestKYCTransitions_VerifiedIsTerminal(t *testing.T) {
	for _, tr := range domain.KYCTransitions {
		if tr.Src == domain.KYCVerified {
			t.Errorf("verified is terminal but has outgoing transition %q", tr.Event)
		}
	}
}

func TestKYCTransitions_NotSubmittedOnlyAtCreation(t *testing.T) {
	for _, tr := range domain.KYCTransitions {
		if tr.Dst == domain.KYCNotSubmitted {
			t.Errorf("not_submitted must be unreachable, but %q leads to it", tr.Event)
		}
	}
}

func TestRequiredDocumentTypes_Distinct(t *testing.T) {
	seen := make(map[domain.DocumentType]bool)
	for _, dt := range domain.RequiredDocumentTypes {
		if seen[dt] {
			t.Errorf("duplicate required document type %q", dt)
		}
		seen[dt] = true
	}
	if len(domain.RequiredDocumentTypes) != 4 {
		t.Errorf("required categories = %d, want 4", len(domain.RequiredDocumentTypes))
	}
}
