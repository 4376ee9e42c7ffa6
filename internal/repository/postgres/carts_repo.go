package postgres

import (
	"context"

	"github.com/spatialdeez/microstore/internal/models"
	repo "github.com/spatialdeez/microstore/internal/repository"
)

type cartsRepo struct{ db dbtx }

func (r *cartsRepo) ForUser(ctx context.Context, userID int64) (models.Cart, error) {
	var c models.Cart
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, created_at FROM carts WHERE user_id=$1`, userID,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	return c, mapErr(err)
}

func (r *cartsRepo) LockForUser(ctx context.Context, userID int64) (models.Cart, error) {
	var c models.Cart
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, created_at FROM carts WHERE user_id=$1 FOR UPDATE`, userID,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	return c, mapErr(err)
}

// Create tolerates a concurrent creator: the unique user_id wins and the
// existing row is returned locked.
func (r *cartsRepo) Create(ctx context.Context, userID int64) (models.Cart, error) {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO carts(user_id) VALUES($1) ON CONFLICT (user_id) DO NOTHING`, userID,
	); err != nil {
		return models.Cart{}, mapErr(err)
	}
	return r.LockForUser(ctx, userID)
}

func (r *cartsRepo) Delete(ctx context.Context, cartID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM carts WHERE id=$1`, cartID)
	return mapErr(err)
}

func (r *cartsRepo) Item(ctx context.Context, cartID, productID int64) (models.CartItem, error) {
	var it models.CartItem
	err := r.db.QueryRow(ctx,
		`SELECT id, cart_id, product_id, quantity FROM cart_items WHERE cart_id=$1 AND product_id=$2`,
		cartID, productID,
	).Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity)
	return it, mapErr(err)
}

func (r *cartsRepo) Items(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, cart_id, product_id, quantity FROM cart_items WHERE cart_id=$1 ORDER BY id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CartItem
	for rows.Next() {
		var it models.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *cartsRepo) CreateItem(ctx context.Context, it models.CartItem) (models.CartItem, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO cart_items(cart_id, product_id, quantity) VALUES($1,$2,$3) RETURNING id`,
		it.CartID, it.ProductID, it.Quantity,
	).Scan(&it.ID)
	return it, mapErr(err)
}

func (r *cartsRepo) SetItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	tag, err := r.db.Exec(ctx, `UPDATE cart_items SET quantity=$2 WHERE id=$1`, itemID, quantity)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *cartsRepo) DeleteItem(ctx context.Context, itemID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id=$1`, itemID)
	return mapErr(err)
}

func (r *cartsRepo) DeleteItems(ctx context.Context, cartID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID)
	return mapErr(err)
}
