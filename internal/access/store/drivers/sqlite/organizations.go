package sqlite

import (
	"context"
	"database/sql"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
)

type organizationsRepo struct {
	db querier
}

const organizationColumns = `id, name, slug, created_by, created_at, updated_at`

func scanOrganization(row *sql.Row) (domain.Organization, error) {
	var o domain.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Organization{}, mapNotFound(err)
	}
	return o, nil
}

func (r *organizationsRepo) CreateOrganization(ctx context.Context, o domain.Organization) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.Name, o.Slug, o.CreatedBy, o.CreatedAt, o.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *organizationsRepo) GetOrganizationByID(ctx context.Context, id string) (domain.Organization, error) {
	return scanOrganization(r.db.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id))
}

func (r *organizationsRepo) GetOrganizationBySlug(ctx context.Context, slug string) (domain.Organization, error) {
	return scanOrganization(r.db.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE slug = ?`, slug))
}

func (r *organizationsRepo) DeleteOrganization(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id)
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
