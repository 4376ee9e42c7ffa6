package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/spatialdeez/microstore/internal/api/validate"
	"github.com/spatialdeez/microstore/internal/auth"
	"github.com/spatialdeez/microstore/internal/config"
	"github.com/spatialdeez/microstore/internal/metrics"
	"github.com/spatialdeez/microstore/internal/models"
	repo "github.com/spatialdeez/microstore/internal/repository"
)

type CartService struct {
	st repo.Store
	// An item whose quantity would drop to floor or below is deleted.
	floor int
}

func NewCartService(st repo.Store, c config.Config) *CartService {
	return &CartService{st: st, floor: c.CartRemoveFloor}
}

// view resolves every item of a cart against the catalog, in storage order.
func view(ctx context.Context, r repo.Repos, cartID int64) (models.CartView, error) {
	items, err := r.Carts.Items(ctx, cartID)
	if err != nil {
		return models.CartView{}, err
	}
	lines := make([]models.CartLine, 0, len(items))
	for _, it := range items {
		var prod *models.Product
		p, err := r.Products.GetByID(ctx, it.ProductID)
		switch {
		case err == nil:
			prod = &p
		case !errors.Is(err, repo.ErrNotFound):
			return models.CartView{}, err
		}
		lines = append(lines, models.NewCartLine(it, prod))
	}
	return models.NewCartView(cartID, lines), nil
}

// maxQuantity matches the INTEGER column holding cart quantities.
const maxQuantity = math.MaxInt32

func checkQuantity(q int) error {
	var errs validate.Errs
	errs.Add(validate.MinInt("quantity", int64(q), 1), validate.MaxInt("quantity", int64(q), maxQuantity))
	return errs.Err()
}

// View returns the caller's cart. A user without a cart sees an empty one.
func (s *CartService) View(ctx context.Context, p *auth.Principal) (models.CartView, error) {
	if err := auth.Authorize(p, auth.RoleUser); err != nil {
		return models.CartView{}, err
	}
	r := s.st.Repos()
	cart, err := r.Carts.ForUser(ctx, p.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.NewCartView(0, nil), nil
	}
	if err != nil {
		return models.CartView{}, err
	}
	return view(ctx, r, cart.ID)
}

// AddItem puts quantity units of a product into the caller's cart, merging
// with an existing line for the same product.
func (s *CartService) AddItem(ctx context.Context, p *auth.Principal, productID int64, quantity int) (models.CartView, error) {
	if err := auth.Authorize(p, auth.RoleUser); err != nil {
		return models.CartView{}, err
	}
	if err := checkQuantity(quantity); err != nil {
		return models.CartView{}, err
	}

	var out models.CartView
	err := inTx(ctx, s.st, func(r repo.Repos) error {
		if _, err := r.Products.GetByID(ctx, productID); err != nil {
			return err
		}
		cart, err := r.Carts.Create(ctx, p.UserID)
		if err != nil {
			return err
		}
		it, err := r.Carts.Item(ctx, cart.ID, productID)
		switch {
		case err == nil && it.Quantity > maxQuantity-quantity:
			return validate.Errs{{Field: "quantity", Msg: "cart quantity would exceed " + strconv.Itoa(maxQuantity)}}
		case err == nil:
			err = r.Carts.SetItemQuantity(ctx, it.ID, it.Quantity+quantity)
		case errors.Is(err, repo.ErrNotFound):
			_, err = r.Carts.CreateItem(ctx, models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity})
		}
		if err != nil {
			return err
		}
		out, err = view(ctx, r, cart.ID)
		return err
	})
	if err != nil {
		return models.CartView{}, err
	}
	metrics.CartOpsTotal.WithLabelValues("add").Inc()
	return out, nil
}

// RemoveItem takes quantity units of a product out of the caller's cart.
// A missing cart or item is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, p *auth.Principal, productID int64, quantity int) (models.CartView, error) {
	if err := auth.Authorize(p, auth.RoleUser); err != nil {
		return models.CartView{}, err
	}
	if err := checkQuantity(quantity); err != nil {
		return models.CartView{}, err
	}

	var out models.CartView
	err := inTx(ctx, s.st, func(r repo.Repos) error {
		cart, err := r.Carts.LockForUser(ctx, p.UserID)
		if errors.Is(err, repo.ErrNotFound) {
			out = models.NewCartView(0, nil)
			return nil
		}
		if err != nil {
			return err
		}
		it, err := r.Carts.Item(ctx, cart.ID, productID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			err = nil
		case err != nil:
			return err
		case it.Quantity-quantity <= s.floor:
			err = r.Carts.DeleteItem(ctx, it.ID)
		default:
			err = r.Carts.SetItemQuantity(ctx, it.ID, it.Quantity-quantity)
		}
		if err != nil {
			return err
		}
		out, err = view(ctx, r, cart.ID)
		return err
	})
	if err != nil {
		return models.CartView{}, err
	}
	metrics.CartOpsTotal.WithLabelValues("remove").Inc()
	return out, nil
}

// Purchase empties the caller's cart and returns what was bought.
func (s *CartService) Purchase(ctx context.Context, p *auth.Principal) (models.Receipt, error) {
	if err := auth.Authorize(p, auth.RoleUser); err != nil {
		return models.Receipt{}, err
	}
	emptyCart := validate.Errs{{Field: "cart", Msg: "cart is empty"}}

	var rc models.Receipt
	err := inTx(ctx, s.st, func(r repo.Repos) error {
		cart, err := r.Carts.LockForUser(ctx, p.UserID)
		if errors.Is(err, repo.ErrNotFound) {
			return emptyCart
		}
		if err != nil {
			return err
		}
		v, err := view(ctx, r, cart.ID)
		if err != nil {
			return err
		}
		if len(v.Items) == 0 {
			return emptyCart
		}
		if err := r.Carts.DeleteItems(ctx, cart.ID); err != nil {
			return err
		}
		rc = models.Receipt{Items: v.Items, Total: v.Total, PurchasedAt: time.Now().UTC()}
		return audit(ctx, r, p, "cart", cart.ID, "purchase", map[string]any{
			"total": v.Total.String(), "lines": len(v.Items),
		})
	})
	if err != nil {
		return models.Receipt{}, err
	}
	metrics.CartOpsTotal.WithLabelValues("purchase").Inc()
	return rc, nil
}
