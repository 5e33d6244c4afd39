package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/onboardiq/internal/adapter/fsm"
	"github.com/neomorfeo/onboardiq/internal/adapter/memstore"
	"github.com/neomorfeo/onboardiq/internal/adapter/river"
	"github.com/neomorfeo/onboardiq/internal/adapter/sqlite"
	"github.com/neomorfeo/onboardiq/internal/app"
	"github.com/neomorfeo/onboardiq/internal/domain"

	handler "github.com/neomorfeo/onboardiq/internal/adapter/http"
	otelad "github.com/neomorfeo/onboardiq/internal/adapter/otel"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("onboardiq: %v", err)
	}
}

func run() error {
	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "onboardiq.db")

	sessionTTL, err := time.ParseDuration(envOrDefault("SESSION_TTL", "30m"))
	if err != nil {
		return fmt.Errorf("parsing SESSION_TTL: %w", err)
	}

	ctx := context.Background()

	// --- Observability ---
	providers, err := otelad.Setup(ctx, otelad.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otelad.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	riverClient, err := river.Setup(ctx, db, &sandboxActivator{})
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			slog.Warn("river stop", "error", err)
		}
	}()

	sessions := memstore.NewSessionStore(5 * time.Minute)
	defer sessions.Close()

	jobs := river.NewPublisher(riverClient)
	publisher := otelad.NewTracingPublisher(jobs)
	gateway := otelad.NewTracingGateway(newSandboxGateway())
	kycRepo := otelad.NewTracingRepository(repo)
	docs := newSandboxDocumentStore()

	// --- Application ---
	reg := app.NewRegistrationService(
		sessions,
		memstore.NewReservationRegistry(),
		sqlite.NewClaimStore(db),
		gateway,
		&sandboxProvisioner{},
		publisher,
		fsm.New(domain.SessionTransitions),
		sessionTTL,
	)
	kyc := app.NewKYCService(kycRepo, docs, jobs, publisher, fsm.New(domain.KYCTransitions))
	review := app.NewReviewQueueService(kycRepo, docs)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware("onboardiq", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("onboardiq", "0.1.0"))
	handler.Register(api, reg, kyc, review)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("onboardiq listening", "port", port)
		slog.Info("API docs", "url", "http://localhost:"+port+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- Sandbox collaborators ---
//
// The payment gateway, tenant provisioner, document store, and activation
// service are external systems in production. The sandbox versions below make
// the binary self-contained for local development and demos.

// sandboxGateway simulates a payment provider: every transaction reports
// "pending" on the first poll and "completed" afterwards.
type sandboxGateway struct {
	mu    sync.Mutex
	seq   int
	polls map[string]int
}

func newSandboxGateway() *sandboxGateway {
	return &sandboxGateway{polls: make(map[string]int)}
}

func (g *sandboxGateway) Initiate(_ context.Context, amount int64, currency string, _ map[string]string) (domain.PaymentRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	id := fmt.Sprintf("sandbox_txn_%d", g.seq)
	slog.Info("sandbox payment initiated", "transaction_id", id, "amount", amount, "currency", currency)
	return domain.PaymentRef{
		TransactionID: id,
		PaymentURL:    "https://sandbox.pay.local/checkout/" + id,
	}, nil
}

func (g *sandboxGateway) Status(_ context.Context, transactionID string) (domain.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.polls[transactionID]++
	if g.polls[transactionID] == 1 {
		return domain.PaymentPending, nil
	}
	return domain.PaymentCompleted, nil
}

// sandboxProvisioner derives stable identifiers from the idempotency key so
// retried finalizations yield the same tenant.
type sandboxProvisioner struct{}

func (p *sandboxProvisioner) Create(_ context.Context, school domain.SchoolInfo, _ domain.PromoterInfo, planID, idempotencyKey string) (domain.FinalizeResult, error) {
	sum := sha256.Sum256([]byte(idempotencyKey))
	slog.Info("sandbox tenant provisioned", "subdomain", school.Subdomain, "plan_id", planID)
	return domain.FinalizeResult{
		SchoolID:   fmt.Sprintf("sch_%x", sum[:6]),
		PromoterID: fmt.Sprintf("prm_%x", sum[6:12]),
	}, nil
}

// sandboxDocumentStore keeps uploads in memory and resolves them to
// sandbox-scheme URLs.
type sandboxDocumentStore struct {
	mu   sync.Mutex
	seq  int
	data map[string][]byte
}

func newSandboxDocumentStore() *sandboxDocumentStore {
	return &sandboxDocumentStore{data: make(map[string][]byte)}
}

func (s *sandboxDocumentStore) Store(_ context.Context, content []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	ref := fmt.Sprintf("sandbox_doc_%d", s.seq)
	s.data[ref] = content
	return ref, nil
}

func (s *sandboxDocumentStore) Resolve(_ context.Context, ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[ref]; !ok {
		return "", fmt.Errorf("unknown document ref %q", ref)
	}
	return "https://sandbox.docs.local/" + ref, nil
}

// sandboxActivator stands in for the platform call that switches a verified
// tenant live.
type sandboxActivator struct{}

func (a *sandboxActivator) Activate(_ context.Context, tenantID string) error {
	slog.Info("sandbox tenant activated", "tenant_id", tenantID)
	return nil
}
