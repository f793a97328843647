package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
)

type invitesRepo struct {
	db querier
}

const inviteColumns = `id, code, organization_id, invited_by, target_role, email, status,
	expires_at, max_uses, current_uses, used_by, used_at, revoked_by, revoked_at, revoke_reason,
	created_at, updated_at`

type inviteRow struct {
	inv          domain.Invite
	email        sql.NullString
	usedBy       sql.NullString
	usedAt       sql.NullTime
	revokedBy    sql.NullString
	revokedAt    sql.NullTime
	revokeReason sql.NullString
}

func (row *inviteRow) fields() []any {
	return []any{
		&row.inv.ID, &row.inv.Code, &row.inv.OrganizationID, &row.inv.InvitedBy,
		&row.inv.TargetRole, &row.email, &row.inv.Status, &row.inv.ExpiresAt,
		&row.inv.MaxUses, &row.inv.CurrentUses, &row.usedBy, &row.usedAt,
		&row.revokedBy, &row.revokedAt, &row.revokeReason,
		&row.inv.CreatedAt, &row.inv.UpdatedAt,
	}
}

func (row *inviteRow) invite() domain.Invite {
	row.inv.Email = mapNullString(row.email)
	row.inv.UsedBy = mapNullString(row.usedBy)
	row.inv.UsedAt = mapNullTimePtr(row.usedAt)
	row.inv.RevokedBy = mapNullString(row.revokedBy)
	row.inv.RevokedAt = mapNullTimePtr(row.revokedAt)
	row.inv.RevokeReason = mapNullString(row.revokeReason)
	return row.inv
}

func scanInvite(r *sql.Row) (domain.Invite, error) {
	var row inviteRow
	if err := r.Scan(row.fields()...); err != nil {
		return domain.Invite{}, mapNotFound(err)
	}
	return row.invite(), nil
}

func (r *invitesRepo) CreateInvite(ctx context.Context, inv domain.Invite) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invites (id, code, organization_id, invited_by, target_role, email, status,
			expires_at, max_uses, current_uses, used_by, used_at, revoked_by, revoked_at, revoke_reason,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Code, inv.OrganizationID, inv.InvitedBy, inv.TargetRole,
		mapStringNull(inv.Email), inv.Status, inv.ExpiresAt, inv.MaxUses, inv.CurrentUses,
		mapStringNull(inv.UsedBy), mapOptionalTime(inv.UsedAt),
		mapStringNull(inv.RevokedBy), mapOptionalTime(inv.RevokedAt), mapStringNull(inv.RevokeReason),
		inv.CreatedAt, inv.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *invitesRepo) GetInviteByID(ctx context.Context, id string) (domain.Invite, error) {
	return scanInvite(r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE id = ?`, id))
}

func (r *invitesRepo) GetInviteByCode(ctx context.Context, code string) (domain.Invite, error) {
	return scanInvite(r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE code = ?`, code))
}

func (r *invitesRepo) ListOrganizationInvites(ctx context.Context, orgID string, status domain.InviteStatus) ([]domain.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE organization_id = ?`
	args := []any{orgID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invite
	for rows.Next() {
		var row inviteRow
		if err := rows.Scan(row.fields()...); err != nil {
			return nil, err
		}
		out = append(out, row.invite())
	}
	return out, rows.Err()
}

// ConsumeInvite is the one statement allowed to increment current_uses.
// All preconditions live in the WHERE clause so concurrent redeemers
// serialize on the row and at most max_uses of them ever succeed. The
// status flips to accepted in the same statement when this use is the
// last one.
func (r *invitesRepo) ConsumeInvite(ctx context.Context, id, userID string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invites SET
			current_uses = current_uses + 1,
			status = CASE WHEN current_uses + 1 >= max_uses THEN 'accepted' ELSE status END,
			used_by = ?,
			used_at = ?,
			updated_at = ?
		WHERE id = ?
			AND status = 'pending'
			AND expires_at > ?
			AND current_uses < max_uses`,
		userID, now, now, id, now,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *invitesRepo) RevokeInvite(ctx context.Context, id, revokedBy, reason string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invites SET
			status = 'revoked',
			revoked_by = ?,
			revoked_at = ?,
			revoke_reason = ?,
			updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		revokedBy, now, mapStringNull(reason), now, id,
	)
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

func (r *invitesRepo) ExpirePendingInvites(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invites SET status = 'expired', updated_at = ?
		WHERE status = 'pending' AND expires_at <= ?`,
		now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *invitesRepo) CountInvitesByStatus(ctx context.Context, orgID string) (map[domain.InviteStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM invites WHERE organization_id = ? GROUP BY status`,
		orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.InviteStatus]int)
	for rows.Next() {
		var status domain.InviteStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
