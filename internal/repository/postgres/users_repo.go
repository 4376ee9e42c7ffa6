package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spatialdeez/microstore/internal/models"
	repo "github.com/spatialdeez/microstore/internal/repository"
)

type usersRepo struct{ db dbtx }

const userCols = `id, username, password_hash, admin, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Admin, &u.CreatedAt, &u.UpdatedAt)
	return u, mapErr(err)
}

func (r *usersRepo) Create(ctx context.Context, username, hash string, admin bool) (models.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`INSERT INTO users(username, password_hash, admin) VALUES($1,$2,$3) RETURNING `+userCols,
		username, hash, admin,
	))
}

func (r *usersRepo) GetByID(ctx context.Context, id int64) (models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (r *usersRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username=$1`, username))
}

func (r *usersRepo) UsernameTaken(ctx context.Context, username string, m repo.NameMatch, exceptID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE `+nameClause("username", m)+` AND id <> $2)`,
		username, exceptID,
	).Scan(&taken)
	return taken, err
}

func (r *usersRepo) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userCols+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *usersRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

func (r *usersRepo) Update(ctx context.Context, u models.User) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET username=$2, password_hash=$3, admin=$4, updated_at=now() WHERE id=$1`,
		u.ID, u.Username, u.PasswordHash, u.Admin,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *usersRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
