package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spatialdeez/microstore/internal/models"
	repo "github.com/spatialdeez/microstore/internal/repository"
)

type productsRepo struct{ db dbtx }

// price travels as text so it never passes through a float.
const productCols = `id, name, price::text, image_path, category_id, created_at, updated_at`

func scanProduct(row pgx.Row) (models.Product, error) {
	var (
		p     models.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.ImagePath, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return models.Product{}, err
	}
	p.Price = d
	return p, nil
}

func (r *productsRepo) Create(ctx context.Context, p models.Product) (models.Product, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO products(name, price, image_path, category_id)
		 VALUES($1, $2::numeric, $3, $4)
		 RETURNING `+productCols,
		p.Name, p.Price.String(), p.ImagePath, p.CategoryID,
	)
	out, err := scanProduct(row)
	return out, mapErr(err)
}

func (r *productsRepo) GetByID(ctx context.Context, id int64) (models.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	return p, mapErr(err)
}

func (r *productsRepo) list(ctx context.Context, q string, args ...any) ([]models.Product, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *productsRepo) List(ctx context.Context, limit, offset int) ([]models.Product, error) {
	return r.list(ctx, `SELECT `+productCols+` FROM products ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *productsRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&n)
	return n, err
}

func (r *productsRepo) ListByCategory(ctx context.Context, categoryID int64) ([]models.Product, error) {
	return r.list(ctx, `SELECT `+productCols+` FROM products WHERE category_id=$1 ORDER BY id`, categoryID)
}

func (r *productsRepo) Update(ctx context.Context, p models.Product) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE products
		    SET name=$2, price=$3::numeric, image_path=$4, category_id=$5, updated_at=now()
		  WHERE id=$1`,
		p.ID, p.Name, p.Price.String(), p.ImagePath, p.CategoryID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *productsRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
