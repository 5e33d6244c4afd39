package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/neomorfeo/onboardiq/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// KYCRepository implements domain.KYCRepository using SQLite. A case and its
// document rows are written in one transaction; resubmission replaces the
// document set.
type KYCRepository struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*KYCRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns
// a ready repository. Use this when the *sql.DB has been pre-configured
// (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*KYCRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &KYCRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *KYCRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters
// (e.g., river, the claim store).
func (r *KYCRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}

func (r *KYCRepository) Get(ctx context.Context, tenantID string) (domain.KYCCase, error) {
	c, err := r.scanCase(r.db.QueryRowContext(ctx,
		`SELECT tenant_id, status, description, submitted_at, decided_at,
		        decided_by, review_notes, rejection_reason, resubmission_count, updated_at
		 FROM kyc_cases WHERE tenant_id = ?`, tenantID,
	))
	if err != nil {
		return domain.KYCCase{}, err
	}

	docs, err := r.loadDocuments(ctx, tenantID)
	if err != nil {
		return domain.KYCCase{}, err
	}
	c.Documents = docs

	return c, nil
}

// Save upserts the case and replaces its document rows in one transaction.
func (r *KYCRepository) Save(ctx context.Context, c domain.KYCCase) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO kyc_cases (tenant_id, status, description, submitted_at,
		                        decided_at, decided_by, review_notes,
		                        rejection_reason, resubmission_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE SET
		     status = excluded.status,
		     description = excluded.description,
		     submitted_at = excluded.submitted_at,
		     decided_at = excluded.decided_at,
		     decided_by = excluded.decided_by,
		     review_notes = excluded.review_notes,
		     rejection_reason = excluded.rejection_reason,
		     resubmission_count = excluded.resubmission_count,
		     updated_at = excluded.updated_at`,
		c.TenantID, string(c.Status), c.Description,
		formatTime(c.SubmittedAt), formatTime(c.DecidedAt),
		c.DecidedBy, c.ReviewNotes, c.RejectionReason, c.ResubmissionCount,
		time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("upserting kyc case: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM kyc_documents WHERE tenant_id = ?`, c.TenantID,
	); err != nil {
		return fmt.Errorf("clearing kyc documents: %w", err)
	}

	for i, doc := range c.Documents {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kyc_documents (tenant_id, position, doc_type, storage_ref, uploaded_at)
			 VALUES (?, ?, ?, ?, ?)`,
			c.TenantID, i, string(doc.Type), doc.StorageRef, formatTime(doc.UploadedAt),
		); err != nil {
			return fmt.Errorf("inserting kyc document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing kyc case: %w", err)
	}
	return nil
}

// ListPending returns pending cases ordered by submission time ascending,
// oldest first, so reviewers work the queue fairly.
func (r *KYCRepository) ListPending(ctx context.Context) ([]domain.KYCCase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tenant_id, status, description, submitted_at, decided_at,
		        decided_by, review_notes, rejection_reason, resubmission_count, updated_at
		 FROM kyc_cases WHERE status = ? ORDER BY submitted_at ASC`,
		string(domain.KYCPending),
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending cases: %w", err)
	}
	defer rows.Close()

	var cases []domain.KYCCase
	for rows.Next() {
		c, err := r.scanCaseFromRows(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range cases {
		docs, err := r.loadDocuments(ctx, cases[i].TenantID)
		if err != nil {
			return nil, err
		}
		cases[i].Documents = docs
	}

	return cases, nil
}

func (r *KYCRepository) loadDocuments(ctx context.Context, tenantID string) ([]domain.DocumentRef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT doc_type, storage_ref, uploaded_at
		 FROM kyc_documents WHERE tenant_id = ? ORDER BY position ASC`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading kyc documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.DocumentRef
	for rows.Next() {
		var docType, uploadedAt string
		var doc domain.DocumentRef
		if err := rows.Scan(&docType, &doc.StorageRef, &uploadedAt); err != nil {
			return nil, fmt.Errorf("scanning kyc document: %w", err)
		}
		doc.Type = domain.DocumentType(docType)
		doc.UploadedAt = parseTime(uploadedAt)
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (r *KYCRepository) scanCase(row *sql.Row) (domain.KYCCase, error) {
	var c domain.KYCCase
	var status, submittedAt, decidedAt, updatedAt string

	err := row.Scan(&c.TenantID, &status, &c.Description, &submittedAt,
		&decidedAt, &c.DecidedBy, &c.ReviewNotes, &c.RejectionReason, &c.ResubmissionCount, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.KYCCase{}, domain.ErrCaseNotFound
		}
		return domain.KYCCase{}, fmt.Errorf("scanning kyc case: %w", err)
	}

	c.Status = domain.KYCStatus(status)
	c.SubmittedAt = parseTime(submittedAt)
	c.DecidedAt = parseTime(decidedAt)
	c.UpdatedAt = parseTime(updatedAt)

	return c, nil
}

func (r *KYCRepository) scanCaseFromRows(rows *sql.Rows) (domain.KYCCase, error) {
	var c domain.KYCCase
	var status, submittedAt, decidedAt, updatedAt string

	err := rows.Scan(&c.TenantID, &status, &c.Description, &submittedAt,
		&decidedAt, &c.DecidedBy, &c.ReviewNotes, &c.RejectionReason, &c.ResubmissionCount, &updatedAt)
	if err != nil {
		return domain.KYCCase{}, fmt.Errorf("scanning kyc case row: %w", err)
	}

	c.Status = domain.KYCStatus(status)
	c.SubmittedAt = parseTime(submittedAt)
	c.DecidedAt = parseTime(decidedAt)
	c.UpdatedAt = parseTime(updatedAt)

	return c, nil
}
