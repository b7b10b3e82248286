// Package store persists the local mirror of each referral case: its
// tracking-system identifiers, last observed status and sync-error flag.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	apperrors "huntflow-sync/internal/common/errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned by GetByID when no row matches.
var ErrNotFound = errors.New("applicant not found")

// SyncError is the sticky last-sync-error flag on a case.
type SyncError string

const SyncErrorNoRejectionReason SyncError = "no_rejection_reason"

// Applicant is one local case row. ApplicantID is the external
// tracking-system id; nil pointers mean "never observed".
type Applicant struct {
	ID            int64
	ApplicantID   *int64
	StatusID      *int64
	FileIDs       []int64
	LastSyncError *SyncError
}

// Update carries a partial-field update. Nil fields are left unchanged.
type Update struct {
	ApplicantID   *int64
	StatusID      *int64
	FileIDs       []int64
	LastSyncError *SyncError
}

// Store is the case-table contract used by handlers and the sync engine.
type Store interface {
	Create(ctx context.Context, id int64, applicantID, statusID *int64) error
	Update(ctx context.Context, id int64, upd Update) error
	GetByID(ctx context.Context, id int64) (*Applicant, error)
	GetAll(ctx context.Context) ([]Applicant, error)
}

// PostgresStore implements Store on a plain database/sql handle.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS applicants (
	id              BIGINT PRIMARY KEY,
	applicant_id    BIGINT UNIQUE,
	status_id       BIGINT,
	file_ids        BIGINT[],
	last_sync_error TEXT
)`

// EnsureSchema creates the applicants table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create applicants table: %w", err)
	}
	return nil
}

// Create inserts a new case row. Fails if the id already exists.
func (s *PostgresStore) Create(ctx context.Context, id int64, applicantID, statusID *int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO applicants (id, applicant_id, status_id) VALUES ($1, $2, $3)`,
		id, applicantID, statusID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return apperrors.NewDuplicateApplicantError(id, err)
		}
		return fmt.Errorf("failed to insert applicant %d: %w", id, err)
	}
	return nil
}

// Update applies a partial update: only the fields set on upd are written,
// so a no-op field never clobbers an existing value.
func (s *PostgresStore) Update(ctx context.Context, id int64, upd Update) error {
	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)

	if upd.ApplicantID != nil {
		args = append(args, *upd.ApplicantID)
		sets = append(sets, fmt.Sprintf("applicant_id = $%d", len(args)))
	}
	if upd.StatusID != nil {
		args = append(args, *upd.StatusID)
		sets = append(sets, fmt.Sprintf("status_id = $%d", len(args)))
	}
	if upd.FileIDs != nil {
		args = append(args, pq.Int64Array(upd.FileIDs))
		sets = append(sets, fmt.Sprintf("file_ids = $%d", len(args)))
	}
	if upd.LastSyncError != nil {
		args = append(args, string(*upd.LastSyncError))
		sets = append(sets, fmt.Sprintf("last_sync_error = $%d", len(args)))
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE applicants SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update applicant %d: %w", id, err)
	}
	return nil
}

// GetByID returns the case row for the internal id, or ErrNotFound.
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*Applicant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, applicant_id, status_id, file_ids, last_sync_error FROM applicants WHERE id = $1`,
		id,
	)

	a, err := scanApplicant(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load applicant %d: %w", id, err)
	}
	return a, nil
}

// GetAll returns every case row. The sync engine loads the full population
// into memory once per run.
func (s *PostgresStore) GetAll(ctx context.Context) ([]Applicant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, applicant_id, status_id, file_ids, last_sync_error FROM applicants`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list applicants: %w", err)
	}
	defer rows.Close()

	var applicants []Applicant
	for rows.Next() {
		a, err := scanApplicant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan applicant: %w", err)
		}
		applicants = append(applicants, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applicants: %w", err)
	}

	return applicants, nil
}

func scanApplicant(scan func(dest ...interface{}) error) (*Applicant, error) {
	var (
		a           Applicant
		applicantID sql.NullInt64
		statusID    sql.NullInt64
		fileIDs     pq.Int64Array
		syncError   sql.NullString
	)

	if err := scan(&a.ID, &applicantID, &statusID, &fileIDs, &syncError); err != nil {
		return nil, err
	}

	if applicantID.Valid {
		a.ApplicantID = &applicantID.Int64
	}
	if statusID.Valid {
		a.StatusID = &statusID.Int64
	}
	if fileIDs != nil {
		a.FileIDs = []int64(fileIDs)
	}
	if syncError.Valid {
		se := SyncError(syncError.String)
		a.LastSyncError = &se
	}

	return &a, nil
}
