package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/spatialdeez/microstore/internal/models"
	repo "github.com/spatialdeez/microstore/internal/repository"
)

func nameMatches(stored, candidate string, m repo.NameMatch) bool {
	if m.FoldCase {
		stored, candidate = strings.ToLower(stored), strings.ToLower(candidate)
	}
	if m.Substring {
		return strings.Contains(stored, candidate)
	}
	return stored == candidate
}

// sortedValues returns map values ordered by id.
func sortedValues[T any](m map[int64]T) []T {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func window[T any](all []T, limit, offset int) []T {
	if offset < 0 || offset >= len(all) {
		return nil
	}
	end := len(all)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

type categoriesRepo struct{ v view }

func (r *categoriesRepo) Create(_ context.Context, name string) (c models.Category, err error) {
	err = r.v.write(func(s *state) error {
		c = models.Category{ID: s.nextID(), Name: name, CreatedAt: time.Now()}
		s.categories[c.ID] = c
		return nil
	})
	return c, err
}

func (r *categoriesRepo) GetByID(_ context.Context, id int64) (c models.Category, err error) {
	err = r.v.read(func(s *state) error {
		var ok bool
		if c, ok = s.categories[id]; !ok {
			return repo.ErrNotFound
		}
		return nil
	})
	return c, err
}

func (r *categoriesRepo) List(_ context.Context) (out []models.Category, err error) {
	err = r.v.read(func(s *state) error {
		out = sortedValues(s.categories)
		return nil
	})
	return out, err
}

func (r *categoriesRepo) NameTaken(_ context.Context, name string, m repo.NameMatch, exceptID int64) (taken bool, err error) {
	err = r.v.read(func(s *state) error {
		for _, c := range s.categories {
			if c.ID != exceptID && nameMatches(c.Name, name, m) {
				taken = true
				return nil
			}
		}
		return nil
	})
	return taken, err
}

func (r *categoriesRepo) Rename(_ context.Context, id int64, name string) error {
	return r.v.write(func(s *state) error {
		c, ok := s.categories[id]
		if !ok {
			return repo.ErrNotFound
		}
		c.Name = name
		s.categories[id] = c
		return nil
	})
}

func (r *categoriesRepo) CountProducts(_ context.Context, id int64) (n int, err error) {
	err = r.v.read(func(s *state) error {
		for _, p := range s.products {
			if p.CategoryID == id {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *categoriesRepo) Delete(_ context.Context, id int64) error {
	return r.v.write(func(s *state) error {
		if _, ok := s.categories[id]; !ok {
			return repo.ErrNotFound
		}
		for _, p := range s.products {
			if p.CategoryID == id {
				return repo.ErrReferenced
			}
		}
		delete(s.categories, id)
		return nil
	})
}

type productsRepo struct{ v view }

func (r *productsRepo) Create(_ context.Context, p models.Product) (models.Product, error) {
	err := r.v.write(func(s *state) error {
		if _, ok := s.categories[p.CategoryID]; !ok {
			return repo.ErrNotFound
		}
		now := time.Now()
		p.ID, p.CreatedAt, p.UpdatedAt = s.nextID(), now, now
		s.products[p.ID] = p
		return nil
	})
	return p, err
}

func (r *productsRepo) GetByID(_ context.Context, id int64) (p models.Product, err error) {
	err = r.v.read(func(s *state) error {
		var ok bool
		if p, ok = s.products[id]; !ok {
			return repo.ErrNotFound
		}
		return nil
	})
	return p, err
}

func (r *productsRepo) List(_ context.Context, limit, offset int) (out []models.Product, err error) {
	err = r.v.read(func(s *state) error {
		out = window(sortedValues(s.products), limit, offset)
		return nil
	})
	return out, err
}

func (r *productsRepo) Count(_ context.Context) (n int, err error) {
	err = r.v.read(func(s *state) error {
		n = len(s.products)
		return nil
	})
	return n, err
}

func (r *productsRepo) ListByCategory(_ context.Context, categoryID int64) (out []models.Product, err error) {
	err = r.v.read(func(s *state) error {
		for _, p := range sortedValues(s.products) {
			if p.CategoryID == categoryID {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

func (r *productsRepo) Update(_ context.Context, p models.Product) error {
	return r.v.write(func(s *state) error {
		old, ok := s.products[p.ID]
		if !ok {
			return repo.ErrNotFound
		}
		if _, ok := s.categories[p.CategoryID]; !ok {
			return repo.ErrNotFound
		}
		p.CreatedAt, p.UpdatedAt = old.CreatedAt, time.Now()
		s.products[p.ID] = p
		return nil
	})
}

func (r *productsRepo) Delete(_ context.Context, id int64) error {
	return r.v.write(func(s *state) error {
		if _, ok := s.products[id]; !ok {
			return repo.ErrNotFound
		}
		delete(s.products, id)
		return nil
	})
}

type usersRepo struct{ v view }

func (r *usersRepo) Create(_ context.Context, username, hash string, admin bool) (u models.User, err error) {
	err = r.v.write(func(s *state) error {
		for _, existing := range s.users {
			if existing.Username == username {
				return repo.ErrDuplicate
			}
		}
		now := time.Now()
		u = models.User{ID: s.nextID(), Username: username, PasswordHash: hash, Admin: admin, CreatedAt: now, UpdatedAt: now}
		s.users[u.ID] = u
		return nil
	})
	return u, err
}

func (r *usersRepo) GetByID(_ context.Context, id int64) (u models.User, err error) {
	err = r.v.read(func(s *state) error {
		var ok bool
		if u, ok = s.users[id]; !ok {
			return repo.ErrNotFound
		}
		return nil
	})
	return u, err
}

func (r *usersRepo) GetByUsername(_ context.Context, username string) (u models.User, err error) {
	err = r.v.read(func(s *state) error {
		for _, candidate := range s.users {
			if candidate.Username == username {
				u = candidate
				return nil
			}
		}
		return repo.ErrNotFound
	})
	return u, err
}

func (r *usersRepo) UsernameTaken(_ context.Context, username string, m repo.NameMatch, exceptID int64) (taken bool, err error) {
	err = r.v.read(func(s *state) error {
		for _, u := range s.users {
			if u.ID != exceptID && nameMatches(u.Username, username, m) {
				taken = true
				return nil
			}
		}
		return nil
	})
	return taken, err
}

func (r *usersRepo) List(_ context.Context, limit, offset int) (out []models.User, err error) {
	err = r.v.read(func(s *state) error {
		out = window(sortedValues(s.users), limit, offset)
		return nil
	})
	return out, err
}

func (r *usersRepo) Count(_ context.Context) (n int, err error) {
	err = r.v.read(func(s *state) error {
		n = len(s.users)
		return nil
	})
	return n, err
}

func (r *usersRepo) Update(_ context.Context, u models.User) error {
	return r.v.write(func(s *state) error {
		old, ok := s.users[u.ID]
		if !ok {
			return repo.ErrNotFound
		}
		for _, other := range s.users {
			if other.ID != u.ID && other.Username == u.Username {
				return repo.ErrDuplicate
			}
		}
		u.CreatedAt, u.UpdatedAt = old.CreatedAt, time.Now()
		s.users[u.ID] = u
		return nil
	})
}

func (r *usersRepo) Delete(_ context.Context, id int64) error {
	return r.v.write(func(s *state) error {
		if _, ok := s.users[id]; !ok {
			return repo.ErrNotFound
		}
		for _, c := range s.carts {
			if c.UserID == id {
				return repo.ErrReferenced
			}
		}
		delete(s.users, id)
		return nil
	})
}

type cartsRepo struct{ v view }

func cartFor(s *state, userID int64) (models.Cart, bool) {
	for _, c := range s.carts {
		if c.UserID == userID {
			return c, true
		}
	}
	return models.Cart{}, false
}

func (r *cartsRepo) ForUser(_ context.Context, userID int64) (c models.Cart, err error) {
	err = r.v.read(func(s *state) error {
		var ok bool
		if c, ok = cartFor(s, userID); !ok {
			return repo.ErrNotFound
		}
		return nil
	})
	return c, err
}

// LockForUser needs no extra locking: transactions are already serialized.
func (r *cartsRepo) LockForUser(ctx context.Context, userID int64) (models.Cart, error) {
	return r.ForUser(ctx, userID)
}

func (r *cartsRepo) Create(_ context.Context, userID int64) (c models.Cart, err error) {
	err = r.v.write(func(s *state) error {
		if existing, ok := cartFor(s, userID); ok {
			c = existing
			return nil
		}
		if _, ok := s.users[userID]; !ok {
			return repo.ErrNotFound
		}
		c = models.Cart{ID: s.nextID(), UserID: userID, CreatedAt: time.Now()}
		s.carts[c.ID] = c
		return nil
	})
	return c, err
}

func (r *cartsRepo) Delete(_ context.Context, cartID int64) error {
	return r.v.write(func(s *state) error {
		for _, it := range s.items {
			if it.CartID == cartID {
				return repo.ErrReferenced
			}
		}
		delete(s.carts, cartID)
		return nil
	})
}

func (r *cartsRepo) Item(_ context.Context, cartID, productID int64) (it models.CartItem, err error) {
	err = r.v.read(func(s *state) error {
		for _, candidate := range s.items {
			if candidate.CartID == cartID && candidate.ProductID == productID {
				it = candidate
				return nil
			}
		}
		return repo.ErrNotFound
	})
	return it, err
}

func (r *cartsRepo) Items(_ context.Context, cartID int64) (out []models.CartItem, err error) {
	err = r.v.read(func(s *state) error {
		for _, it := range sortedValues(s.items) {
			if it.CartID == cartID {
				out = append(out, it)
			}
		}
		return nil
	})
	return out, err
}

func (r *cartsRepo) CreateItem(_ context.Context, it models.CartItem) (models.CartItem, error) {
	err := r.v.write(func(s *state) error {
		if _, ok := s.carts[it.CartID]; !ok {
			return repo.ErrNotFound
		}
		for _, existing := range s.items {
			if existing.CartID == it.CartID && existing.ProductID == it.ProductID {
				return repo.ErrDuplicate
			}
		}
		it.ID = s.nextID()
		s.items[it.ID] = it
		return nil
	})
	return it, err
}

func (r *cartsRepo) SetItemQuantity(_ context.Context, itemID int64, quantity int) error {
	return r.v.write(func(s *state) error {
		it, ok := s.items[itemID]
		if !ok {
			return repo.ErrNotFound
		}
		it.Quantity = quantity
		s.items[itemID] = it
		return nil
	})
}

func (r *cartsRepo) DeleteItem(_ context.Context, itemID int64) error {
	return r.v.write(func(s *state) error {
		delete(s.items, itemID)
		return nil
	})
}

func (r *cartsRepo) DeleteItems(_ context.Context, cartID int64) error {
	return r.v.write(func(s *state) error {
		for id, it := range s.items {
			if it.CartID == cartID {
				delete(s.items, id)
			}
		}
		return nil
	})
}

type auditLogsRepo struct{ v view }

func (r *auditLogsRepo) Create(_ context.Context, l models.AuditLog) error {
	return r.v.write(func(s *state) error {
		l.ID, l.CreatedAt = s.nextID(), time.Now()
		s.audit = append(s.audit, l)
		return nil
	})
}

func (r *auditLogsRepo) List(_ context.Context, limit, offset int) (out []models.AuditLog, err error) {
	err = r.v.read(func(s *state) error {
		newest := make([]models.AuditLog, len(s.audit))
		for i, l := range s.audit {
			newest[len(s.audit)-1-i] = l
		}
		out = window(newest, limit, offset)
		return nil
	})
	return out, err
}
