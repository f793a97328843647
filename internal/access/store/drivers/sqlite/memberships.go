package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
)

type membershipsRepo struct {
	db querier
}

const membershipColumns = `id, user_id, organization_id, role, status, invited_by, joined_at, last_accessed, created_at, updated_at`

type membershipRow struct {
	m            domain.Membership
	invitedBy    sql.NullString
	lastAccessed sql.NullTime
}

func (row *membershipRow) fields() []any {
	return []any{
		&row.m.ID, &row.m.UserID, &row.m.OrganizationID, &row.m.Role, &row.m.Status,
		&row.invitedBy, &row.m.JoinedAt, &row.lastAccessed, &row.m.CreatedAt, &row.m.UpdatedAt,
	}
}

func (row *membershipRow) membership() domain.Membership {
	row.m.InvitedBy = mapNullString(row.invitedBy)
	row.m.LastAccessed = mapNullTimePtr(row.lastAccessed)
	return row.m
}

func scanMembership(r *sql.Row) (domain.Membership, error) {
	var row membershipRow
	if err := r.Scan(row.fields()...); err != nil {
		return domain.Membership{}, mapNotFound(err)
	}
	return row.membership(), nil
}

func scanMemberships(rows *sql.Rows) ([]domain.Membership, error) {
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		var row membershipRow
		if err := rows.Scan(row.fields()...); err != nil {
			return nil, err
		}
		out = append(out, row.membership())
	}
	return out, rows.Err()
}

func (r *membershipsRepo) CreateMembership(ctx context.Context, m domain.Membership) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO memberships (id, user_id, organization_id, role, status, invited_by, joined_at, last_accessed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.OrganizationID, m.Role, m.Status, mapStringNull(m.InvitedBy),
		m.JoinedAt, mapOptionalTime(m.LastAccessed), m.CreatedAt, m.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *membershipsRepo) GetMembershipByID(ctx context.Context, id string) (domain.Membership, error) {
	return scanMembership(r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE id = ?`, id))
}

func (r *membershipsRepo) GetMembership(ctx context.Context, orgID, userID string) (domain.Membership, error) {
	return scanMembership(r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE organization_id = ? AND user_id = ?`,
		orgID, userID))
}

func (r *membershipsRepo) ListOrganizationMemberships(ctx context.Context, orgID string) ([]domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE organization_id = ? ORDER BY joined_at`,
		orgID)
	if err != nil {
		return nil, err
	}
	return scanMemberships(rows)
}

func (r *membershipsRepo) ListUserMemberships(ctx context.Context, userID string) ([]domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = ? ORDER BY joined_at`,
		userID)
	if err != nil {
		return nil, err
	}
	return scanMemberships(rows)
}

func (r *membershipsRepo) UpdateMembershipRole(ctx context.Context, id string, role domain.Role, now time.Time) error {
	return r.exec(ctx, `
		UPDATE memberships SET role = ?, updated_at = ? WHERE id = ?`,
		role, now, id)
}

func (r *membershipsRepo) UpdateMembershipStatus(ctx context.Context, id string, status domain.MembershipStatus, now time.Time) error {
	return r.exec(ctx, `
		UPDATE memberships SET status = ?, updated_at = ? WHERE id = ?`,
		status, now, id)
}

// UpdateLastAccessed deliberately leaves updated_at untouched. The stamp
// is activity telemetry, not a state change, so cached reads stay valid.
func (r *membershipsRepo) UpdateLastAccessed(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE memberships SET last_accessed = ? WHERE id = ?`,
		at, id)
}

func (r *membershipsRepo) DeleteMembership(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM memberships WHERE id = ?`, id)
}

func (r *membershipsRepo) CountMembershipsByRole(ctx context.Context, orgID string, role domain.Role) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memberships
		WHERE organization_id = ? AND role = ? AND status = 'active'`,
		orgID, role).Scan(&n)
	return n, err
}

func (r *membershipsRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
