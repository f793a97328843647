package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
)

type usersRepo struct {
	db querier
}

const userColumns = `id, email, full_name, password_hash, email_verified, created_at, updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, email_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FullName, u.PasswordHash, u.EmailVerified, u.CreatedAt, u.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return r.exec(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, userID string) error {
	return r.exec(ctx, `
		UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = ?`, userID)
}

// exec runs a statement that must touch exactly one row, mapping the
// zero-row case to ErrNotFound.
func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
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
