package postgres

import (
	"context"

	"github.com/spatialdeez/microstore/internal/models"
	repo "github.com/spatialdeez/microstore/internal/repository"
)

type categoriesRepo struct{ db dbtx }

func (r *categoriesRepo) Create(ctx context.Context, name string) (models.Category, error) {
	var c models.Category
	err := r.db.QueryRow(ctx,
		`INSERT INTO categories(name) VALUES($1) RETURNING id, name, created_at`, name,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	return c, mapErr(err)
}

func (r *categoriesRepo) GetByID(ctx context.Context, id int64) (models.Category, error) {
	var c models.Category
	err := r.db.QueryRow(ctx,
		`SELECT id, name, created_at FROM categories WHERE id=$1`, id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	return c, mapErr(err)
}

func (r *categoriesRepo) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *categoriesRepo) NameTaken(ctx context.Context, name string, m repo.NameMatch, exceptID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE `+nameClause("name", m)+` AND id <> $2)`,
		name, exceptID,
	).Scan(&taken)
	return taken, err
}

func (r *categoriesRepo) Rename(ctx context.Context, id int64, name string) error {
	tag, err := r.db.Exec(ctx, `UPDATE categories SET name=$2 WHERE id=$1`, id, name)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *categoriesRepo) CountProducts(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM products WHERE category_id=$1`, id).Scan(&n)
	return n, err
}

func (r *categoriesRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
