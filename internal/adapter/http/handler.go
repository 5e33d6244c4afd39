package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/onboardiq/internal/app"
	"github.com/neomorfeo/onboardiq/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// --- Registration representations ---

// SchoolBody is the API representation of the school being registered.
type SchoolBody struct {
	Name      string `json:"name" minLength:"1" maxLength:"255" doc:"School display name"`
	Subdomain string `json:"subdomain" minLength:"1" maxLength:"63" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"Desired subdomain (lowercase, hyphens)"`
	City      string `json:"city,omitempty" maxLength:"255" doc:"City"`
	Country   string `json:"country,omitempty" maxLength:"2" doc:"ISO 3166-1 alpha-2 country code"`
}

// PromoterBody is the API representation of the promoter account holder.
type PromoterBody struct {
	FirstName string `json:"first_name" minLength:"1" maxLength:"255" doc:"First name"`
	LastName  string `json:"last_name" minLength:"1" maxLength:"255" doc:"Last name"`
	Email     string `json:"email" format:"email" doc:"Contact email"`
	Phone     string `json:"phone,omitempty" maxLength:"32" doc:"Phone number"`
}

// PaymentResponse describes the payment attached to a session.
type PaymentResponse struct {
	TransactionID string `json:"transaction_id" doc:"Gateway transaction id"`
	PaymentURL    string `json:"payment_url" doc:"Checkout URL for the end user"`
	Status        string `json:"status" doc:"Last known gateway status"`
	PolledAt      string `json:"polled_at,omitempty" doc:"Last poll timestamp (ISO 8601)"`
}

// ResultResponse carries the identifiers of the provisioned tenant.
type ResultResponse struct {
	SchoolID   string `json:"school_id" doc:"Provisioned school id"`
	PromoterID string `json:"promoter_id" doc:"Provisioned promoter account id"`
}

// SessionResponse is the API representation of a registration session.
type SessionResponse struct {
	ID        string           `json:"id" doc:"Session identifier"`
	Step      string           `json:"step" doc:"Current workflow step"`
	School    *SchoolBody      `json:"school,omitempty" doc:"Submitted school info"`
	Promoter  *PromoterBody    `json:"promoter,omitempty" doc:"Submitted promoter info"`
	PlanID    string           `json:"plan_id,omitempty" doc:"Selected plan"`
	Payment   *PaymentResponse `json:"payment,omitempty" doc:"Payment state"`
	Result    *ResultResponse  `json:"result,omitempty" doc:"Finalization result"`
	ExpiresAt string           `json:"expires_at" doc:"Session expiry (ISO 8601)"`
}

func toSessionResponse(s domain.RegistrationSession) SessionResponse {
	resp := SessionResponse{
		ID:        s.ID,
		Step:      string(s.Step),
		PlanID:    s.PlanID,
		ExpiresAt: formatTime(s.ExpiresAt),
	}
	if s.School != nil {
		resp.School = &SchoolBody{
			Name:      s.School.Name,
			Subdomain: s.School.Subdomain,
			City:      s.School.City,
			Country:   s.School.Country,
		}
	}
	if s.Promoter != nil {
		resp.Promoter = &PromoterBody{
			FirstName: s.Promoter.FirstName,
			LastName:  s.Promoter.LastName,
			Email:     s.Promoter.Email,
			Phone:     s.Promoter.Phone,
		}
	}
	if s.Payment != nil {
		resp.Payment = &PaymentResponse{
			TransactionID: s.Payment.TransactionID,
			PaymentURL:    s.Payment.PaymentURL,
			Status:        string(s.Payment.Status),
			PolledAt:      formatTime(s.Payment.PolledAt),
		}
	}
	if s.Result != nil {
		resp.Result = &ResultResponse{
			SchoolID:   s.Result.SchoolID,
			PromoterID: s.Result.PromoterID,
		}
	}
	return resp
}

// --- KYC representations ---

// DocumentResponse is one stored document reference.
type DocumentResponse struct {
	Type       string `json:"type" doc:"Document category"`
	UploadedAt string `json:"uploaded_at" doc:"Upload timestamp (ISO 8601)"`
}

// KYCCaseResponse is the API representation of a verification case.
type KYCCaseResponse struct {
	TenantID          string             `json:"tenant_id" doc:"Tenant identifier"`
	Status            string             `json:"status" doc:"Verification status"`
	Description       string             `json:"description,omitempty" doc:"Tenant-supplied business description"`
	Documents         []DocumentResponse `json:"documents,omitempty" doc:"Current document set"`
	SubmittedAt       string             `json:"submitted_at,omitempty" doc:"Last submission timestamp (ISO 8601)"`
	DecidedAt         string             `json:"decided_at,omitempty" doc:"Decision timestamp (ISO 8601)"`
	ReviewNotes       string             `json:"review_notes,omitempty" doc:"Reviewer notes"`
	RejectionReason   string             `json:"rejection_reason,omitempty" doc:"Reason for the last rejection"`
	ResubmissionCount int                `json:"resubmission_count" doc:"Number of resubmissions after rejection"`
}

func toKYCCaseResponse(c domain.KYCCase) KYCCaseResponse {
	resp := KYCCaseResponse{
		TenantID:          c.TenantID,
		Status:            string(c.Status),
		Description:       c.Description,
		SubmittedAt:       formatTime(c.SubmittedAt),
		DecidedAt:         formatTime(c.DecidedAt),
		ReviewNotes:       c.ReviewNotes,
		RejectionReason:   c.RejectionReason,
		ResubmissionCount: c.ResubmissionCount,
	}
	for _, d := range c.Documents {
		resp.Documents = append(resp.Documents, DocumentResponse{
			Type:       string(d.Type),
			UploadedAt: formatTime(d.UploadedAt),
		})
	}
	return resp
}

// --- Registration inputs/outputs ---

type StartRegistrationOutput struct {
	Body SessionResponse
}

type GetRegistrationInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type GetRegistrationOutput struct {
	Body SessionResponse
}

type AvailabilityInput struct {
	Subdomain string `query:"subdomain" required:"false" doc:"Subdomain to check"`
	Email     string `query:"email" required:"false" doc:"Email to check"`
}

type AvailabilityOutput struct {
	Body struct {
		Subdomain *bool `json:"subdomain,omitempty" doc:"Whether the subdomain is free"`
		Email     *bool `json:"email,omitempty" doc:"Whether the email is free"`
	}
}

type SubmitInfoInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		School   SchoolBody   `json:"school" doc:"School details"`
		Promoter PromoterBody `json:"promoter" doc:"Promoter details"`
	}
}

type SubmitInfoOutput struct {
	Body SessionResponse
}

type SelectPlanInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		PlanID string `json:"plan_id" enum:"basic,standard,premium" doc:"Plan identifier"`
	}
}

type SelectPlanOutput struct {
	Body SessionResponse
}

type InitiatePaymentInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type InitiatePaymentOutput struct {
	Body PaymentResponse
}

type PollPaymentInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type PollPaymentOutput struct {
	Body SessionResponse
}

type FinalizeInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type FinalizeOutput struct {
	Body struct {
		ResultResponse
		NextStep string `json:"next_step" doc:"What the tenant should do next"`
	}
}

type CancelInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type CancelOutput struct {
	Status int
}

// --- KYC inputs/outputs ---

type SubmitDocumentsInput struct {
	TenantID string `path:"tenantID" doc:"Tenant ID"`
	Body     struct {
		Description string `json:"description,omitempty" maxLength:"2000" doc:"Business description"`
		Documents   []struct {
			Type        string `json:"type" enum:"identity_document,business_registration,proof_of_address,tax_certificate" doc:"Document category"`
			Content     []byte `json:"content" doc:"Document content (base64)"`
			ContentType string `json:"content_type,omitempty" default:"application/pdf" doc:"MIME type"`
		} `json:"documents" minItems:"1" doc:"One document per required category"`
	}
}

type SubmitDocumentsOutput struct {
	Body KYCCaseResponse
}

type GetKYCInput struct {
	TenantID string `path:"tenantID" doc:"Tenant ID"`
}

type GetKYCOutput struct {
	Body KYCCaseResponse
}

// --- Admin review inputs/outputs ---

type PendingCaseBody struct {
	TenantID          string `json:"tenant_id" doc:"Tenant identifier"`
	SubmittedAt       string `json:"submitted_at" doc:"Submission timestamp (ISO 8601)"`
	ResubmissionCount int    `json:"resubmission_count" doc:"Number of resubmissions"`
	DocumentCount     int    `json:"document_count" doc:"Documents in the current set"`
}

type ListPendingOutput struct {
	Body []PendingCaseBody
}

type ResolvedDocumentBody struct {
	Type       string `json:"type" doc:"Document category"`
	URL        string `json:"url" doc:"Temporary retrieval URL"`
	UploadedAt string `json:"uploaded_at" doc:"Upload timestamp (ISO 8601)"`
}

type CaseDetailInput struct {
	TenantID string `path:"tenantID" doc:"Tenant ID"`
}

type CaseDetailOutput struct {
	Body struct {
		Case      KYCCaseResponse        `json:"case" doc:"The verification case"`
		Documents []ResolvedDocumentBody `json:"documents" doc:"Documents with retrieval URLs"`
	}
}

type ApproveInput struct {
	TenantID string `path:"tenantID" doc:"Tenant ID"`
	Body     struct {
		ReviewerID string `json:"reviewer_id" minLength:"1" doc:"Deciding admin identifier"`
		Notes      string `json:"notes,omitempty" maxLength:"2000" doc:"Reviewer notes"`
	}
}

type ApproveOutput struct {
	Body KYCCaseResponse
}

type RejectInput struct {
	TenantID string `path:"tenantID" doc:"Tenant ID"`
	Body     struct {
		ReviewerID string `json:"reviewer_id" minLength:"1" doc:"Deciding admin identifier"`
		Reason     string `json:"reason" minLength:"1" maxLength:"2000" doc:"Why the submission was rejected"`
	}
}

type RejectOutput struct {
	Body KYCCaseResponse
}

// Register adds all onboarding API routes to the Huma API.
func Register(api huma.API, reg *app.RegistrationService, kyc *app.KYCService, review *app.ReviewQueueService) {
	registerRegistration(api, reg)
	registerKYC(api, kyc)
	registerReview(api, kyc, review)
}

func registerRegistration(api huma.API, svc *app.RegistrationService) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-registration",
		Method:        http.MethodPost,
		Path:          "/api/v1/registrations",
		Summary:       "Start a registration session",
		Tags:          []string{"Registration"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, _ *struct{}) (*StartRegistrationOutput, error) {
		session, err := svc.Start(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &StartRegistrationOutput{Body: toSessionResponse(session)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-availability",
		Method:      http.MethodGet,
		Path:        "/api/v1/registrations/availability",
		Summary:     "Check subdomain and email availability",
		Tags:        []string{"Registration"},
	}, func(ctx context.Context, input *AvailabilityInput) (*AvailabilityOutput, error) {
		if input.Subdomain == "" && input.Email == "" {
			return nil, huma.Error400BadRequest("provide at least one of subdomain or email")
		}
		out := &AvailabilityOutput{}
		if input.Subdomain != "" {
			free, err := svc.SubdomainAvailable(ctx, input.Subdomain)
			if err != nil {
				return nil, toHumaError(err)
			}
			out.Body.Subdomain = &free
		}
		if input.Email != "" {
			free, err := svc.EmailAvailable(ctx, input.Email)
			if err != nil {
				return nil, toHumaError(err)
			}
			out.Body.Email = &free
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-registration",
		Method:      http.MethodGet,
		Path:        "/api/v1/registrations/{id}",
		Summary:     "Get a registration session",
		Tags:        []string{"Registration"},
	}, func(ctx context.Context, input *GetRegistrationInput) (*GetRegistrationOutput, error) {
		session, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetRegistrationOutput{Body: toSessionResponse(session)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-registration-info",
		Method:      http.MethodPost,
		Path:        "/api/v1/registrations/{id}/info",
		Summary:     "Submit school and promoter information",
		Tags:        []string{"Registration"},
	}, func(ctx context.Context, input *SubmitInfoInput) (*SubmitInfoOutput, error) {
		school := domain.SchoolInfo{
			Name:      input.Body.School.Name,
			Subdomain: input.Body.School.Subdomain,
			City:      input.Body.School.City,
			Country:   input.Body.School.Country,
		}
		promoter := domain.PromoterInfo{
			FirstName: input.Body.Promoter.FirstName,
			LastName:  input.Body.Promoter.LastName,
			Email:     input.Body.Promoter.Email,
			Phone:     input.Body.Promoter.Phone,
		}
		session, err := svc.SubmitInfo(ctx, input.ID, school, promoter)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SubmitInfoOutput{Body: toSessionResponse(session)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "select-registration-plan",
		Method:      http.MethodPost,
		Path:        "/api/v1/registrations/{id}/plan",
		Summary:     "Select a subscription plan",
		Tags:        []string{"Registration"},
	}, func(ctx context.Context, input *SelectPlanInput) (*SelectPlanOutput, error) {
		session, err := svc.SelectPlan(ctx, input.ID, input.Body.PlanID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SelectPlanOutput{Body: toSessionResponse(session)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "initiate-registration-payment",
		Method:      http.MethodPost,
		Path:        "/api/v1/registrations/{id}/payment",
		Summary:     "Initiate payment for the selected plan",
		Tags:        []string{"Registration"},
	}, func(ctx context.Context, input *InitiatePaymentInput) (*InitiatePaymentOutput, error) {
		ref, err := svc.InitiatePayment(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &InitiatePaymentOutput{Body: PaymentResponse{
			TransactionID: ref.TransactionID,
			PaymentURL:    ref.PaymentURL,
			Status:        string(ref.Status),
			PolledAt:      formatTime(ref.PolledAt),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "poll-registration-payment",
		Method:      http.MethodGet,
		Path:        "/api/v1/registrations/{id}/payment",
		Summary:     "Poll the payment status",
		Tags:        []string{"Registration"},
	}, func(ctx context.Context, input *PollPaymentInput) (*PollPaymentOutput, error) {
		session, err := svc.PollPayment(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &PollPaymentOutput{Body: toSessionResponse(session)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "finalize-registration",
		Method:      http.MethodPost,
		Path:        "/api/v1/registrations/{id}/finalize",
		Summary:     "Provision the tenant from a paid session",
		Tags:        []string{"Registration"},
	}, func(ctx context.Context, input *FinalizeInput) (*FinalizeOutput, error) {
		result, err := svc.Finalize(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &FinalizeOutput{}
		out.Body.SchoolID = result.SchoolID
		out.Body.PromoterID = result.PromoterID
		out.Body.NextStep = "kyc"
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "cancel-registration",
		Method:        http.MethodPost,
		Path:          "/api/v1/registrations/{id}/cancel",
		Summary:       "Cancel a registration session",
		Tags:          []string{"Registration"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *CancelInput) (*CancelOutput, error) {
		if err := svc.Cancel(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return &CancelOutput{Status: http.StatusNoContent}, nil
	})
}

func registerKYC(api huma.API, svc *app.KYCService) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-kyc-documents",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{tenantID}/kyc/documents",
		Summary:     "Submit a complete verification document set",
		Tags:        []string{"KYC"},
	}, func(ctx context.Context, input *SubmitDocumentsInput) (*SubmitDocumentsOutput, error) {
		uploads := make([]app.DocumentUpload, len(input.Body.Documents))
		for i, d := range input.Body.Documents {
			uploads[i] = app.DocumentUpload{
				Type:        domain.DocumentType(d.Type),
				Content:     d.Content,
				ContentType: d.ContentType,
			}
		}
		c, err := svc.SubmitDocuments(ctx, input.TenantID, uploads, input.Body.Description)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SubmitDocumentsOutput{Body: toKYCCaseResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-kyc-case",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{tenantID}/kyc",
		Summary:     "Get the tenant's verification case",
		Tags:        []string{"KYC"},
	}, func(ctx context.Context, input *GetKYCInput) (*GetKYCOutput, error) {
		c, err := svc.GetCase(ctx, input.TenantID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetKYCOutput{Body: toKYCCaseResponse(c)}, nil
	})
}

func registerReview(api huma.API, kyc *app.KYCService, review *app.ReviewQueueService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pending-kyc",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/kyc/pending",
		Summary:     "List pending verification cases, oldest first",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, _ *struct{}) (*ListPendingOutput, error) {
		queue, err := review.ListPending(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]PendingCaseBody, len(queue))
		for i, c := range queue {
			resp[i] = PendingCaseBody{
				TenantID:          c.TenantID,
				SubmittedAt:       formatTime(c.SubmittedAt),
				ResubmissionCount: c.ResubmissionCount,
				DocumentCount:     c.DocumentCount,
			}
		}
		return &ListPendingOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-kyc-case-detail",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/kyc/{tenantID}",
		Summary:     "Get a case with resolved document URLs",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *CaseDetailInput) (*CaseDetailOutput, error) {
		detail, err := review.GetDetail(ctx, input.TenantID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &CaseDetailOutput{}
		out.Body.Case = toKYCCaseResponse(detail.Case)
		out.Body.Documents = make([]ResolvedDocumentBody, len(detail.Documents))
		for i, d := range detail.Documents {
			out.Body.Documents[i] = ResolvedDocumentBody{
				Type:       string(d.Type),
				URL:        d.URL,
				UploadedAt: formatTime(d.UploadedAt),
			}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-kyc-case",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/kyc/{tenantID}/approve",
		Summary:     "Approve a pending case",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *ApproveInput) (*ApproveOutput, error) {
		c, err := kyc.Approve(ctx, input.TenantID, input.Body.ReviewerID, input.Body.Notes)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ApproveOutput{Body: toKYCCaseResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-kyc-case",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/kyc/{tenantID}/reject",
		Summary:     "Reject a pending case with a reason",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *RejectInput) (*RejectOutput, error) {
		c, err := kyc.Reject(ctx, input.TenantID, input.Body.ReviewerID, input.Body.Reason)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &RejectOutput{Body: toKYCCaseResponse(c)}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrCaseNotFound) {
		return huma.Error404NotFound(err.Error())
	}
	if errors.Is(err, domain.ErrSessionExpired) {
		return huma.Error410Gone(err.Error())
	}

	var conflictErr *domain.ConflictError
	if errors.As(err, &conflictErr) {
		return huma.Error409Conflict(conflictErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return huma.Error400BadRequest(vErr.Error())
	}

	var incErr *domain.IncompleteSubmissionError
	if errors.As(err, &incErr) {
		return huma.Error400BadRequest(incErr.Error())
	}

	var extErr *domain.ExternalServiceError
	if errors.As(err, &extErr) {
		return huma.Error502BadGateway(extErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
