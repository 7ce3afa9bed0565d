package institutions

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is the subset of database/sql operations the seat checks run
// against. Both *sql.DB and *sql.Tx satisfy it, so a check can run standalone
// or join a caller-owned transaction without any ambient transaction state.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresService implements institution and membership access using PostgreSQL
type PostgresService struct {
	db *sql.DB

	// unlimitedWhenZero controls how a zero (or never configured) seat limit
	// reads: true keeps the legacy "zero means unlimited" convention, false
	// reads it as "no seats at all".
	unlimitedWhenZero bool
}

// NewPostgresService creates a new PostgresService. unlimitedWhenZero selects
// the reading of a zero seat limit; existing deployments use true.
func NewPostgresService(db *sql.DB, unlimitedWhenZero bool) *PostgresService {
	return &PostgresService{db: db, unlimitedWhenZero: unlimitedWhenZero}
}

// GetInstitution retrieves an institution by ID
func (s *PostgresService) GetInstitution(ctx context.Context, id int64) (*Institution, error) {
	query := `
		SELECT id, name, max_student_seats, max_staff_seats, is_active, created_at, updated_at
		FROM institutions
		WHERE id = $1
	`
	inst := &Institution{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&inst.ID, &inst.Name, &inst.MaxStudentSeats, &inst.MaxStaffSeats,
		&inst.IsActive, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("institution not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get institution: %w", err)
	}

	return inst, nil
}

// InstitutionExists reports whether an institution row exists.
func (s *PostgresService) InstitutionExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM institutions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check institution: %w", err)
	}
	return exists, nil
}

// ListMembers retrieves all memberships of an institution
func (s *PostgresService) ListMembers(ctx context.Context, institutionID int64) ([]*Membership, error) {
	query := `
		SELECT id, institution_id, user_id, member_type, status, is_active, created_at, updated_at
		FROM institution_memberships
		WHERE institution_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, institutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(
			&m.ID, &m.InstitutionID, &m.UserID, &m.MemberType,
			&m.Status, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}

// GetMembership retrieves a specific membership
func (s *PostgresService) GetMembership(ctx context.Context, institutionID, userID int64) (*Membership, error) {
	query := `
		SELECT id, institution_id, user_id, member_type, status, is_active, created_at, updated_at
		FROM institution_memberships
		WHERE institution_id = $1 AND user_id = $2
	`
	m := &Membership{}
	err := s.db.QueryRowContext(ctx, query, institutionID, userID).Scan(
		&m.ID, &m.InstitutionID, &m.UserID, &m.MemberType,
		&m.Status, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("membership not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}
