package approval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no request matches the given id.
var ErrNotFound = errors.New("approval: request not found")

// ErrAlreadyDecided is returned when a decision targets a non-pending request.
var ErrAlreadyDecided = errors.New("approval: request already decided")

// Store persists approval requests in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates an approval store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// Create inserts a pending request. Any older pending request of the same
// kind for the same phone is marked superseded in the same transaction, so
// the most recent request is the only live one.
func (s *Store) Create(ctx context.Context, phone string, kind Kind, details string) (Request, error) {
	if s == nil || s.db == nil {
		return Request{}, fmt.Errorf("approval: store not configured")
	}
	if phone == "" {
		return Request{}, fmt.Errorf("approval: phone required")
	}

	req := Request{
		ID:        uuid.NewString(),
		Kind:      kind,
		Phone:     phone,
		Details:   details,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Request{}, fmt.Errorf("approval: failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE approval_requests
		SET status = $1, decided_at = $2, decided_by = 'system'
		WHERE phone = $3 AND kind = $4 AND status = $5
	`, StatusSuperseded, req.CreatedAt, phone, kind, StatusPending)
	if err != nil {
		return Request{}, fmt.Errorf("approval: failed to supersede pending requests: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO approval_requests (id, kind, phone, details, status, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	`, req.ID, req.Kind, req.Phone, req.Details, req.Status, req.CreatedAt)
	if err != nil {
		return Request{}, fmt.Errorf("approval: failed to insert request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Request{}, fmt.Errorf("approval: failed to commit: %w", err)
	}
	return req, nil
}

// Get returns one request by id.
func (s *Store) Get(ctx context.Context, id string) (Request, error) {
	if s == nil || s.db == nil {
		return Request{}, fmt.Errorf("approval: store not configured")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, phone, COALESCE(details, ''), status, created_at, decided_at, COALESCE(decided_by, '')
		FROM approval_requests
		WHERE id = $1
	`, id)

	var req Request
	var decidedAt sql.NullTime
	err := row.Scan(&req.ID, &req.Kind, &req.Phone, &req.Details, &req.Status,
		&req.CreatedAt, &decidedAt, &req.DecidedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, fmt.Errorf("approval: failed to scan request: %w", err)
	}
	if decidedAt.Valid {
		req.DecidedAt = &decidedAt.Time
	}
	return req, nil
}

// ListPending returns pending requests, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]Request, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("approval: store not configured")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, phone, COALESCE(details, ''), status, created_at, decided_at, COALESCE(decided_by, '')
		FROM approval_requests
		WHERE status = $1
		ORDER BY created_at ASC
	`, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("approval: failed to query pending requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var req Request
		var decidedAt sql.NullTime
		if err := rows.Scan(&req.ID, &req.Kind, &req.Phone, &req.Details, &req.Status,
			&req.CreatedAt, &decidedAt, &req.DecidedBy); err != nil {
			return nil, fmt.Errorf("approval: failed to scan request: %w", err)
		}
		if decidedAt.Valid {
			req.DecidedAt = &decidedAt.Time
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Decide transitions a pending request to approved or rejected. A request
// that is no longer pending returns ErrAlreadyDecided.
func (s *Store) Decide(ctx context.Context, id string, status Status, decidedBy string) (Request, error) {
	if s == nil || s.db == nil {
		return Request{}, fmt.Errorf("approval: store not configured")
	}
	if status != StatusApproved && status != StatusRejected {
		return Request{}, fmt.Errorf("approval: invalid decision status %q", status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE approval_requests
		SET status = $1, decided_at = $2, decided_by = $3
		WHERE id = $4 AND status = $5
	`, status, time.Now().UTC(), decidedBy, id, StatusPending)
	if err != nil {
		return Request{}, fmt.Errorf("approval: failed to decide request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Request{}, fmt.Errorf("approval: failed to read decision result: %w", err)
	}
	if affected == 0 {
		req, getErr := s.Get(ctx, id)
		if getErr != nil {
			return Request{}, getErr
		}
		return req, ErrAlreadyDecided
	}
	return s.Get(ctx, id)
}
