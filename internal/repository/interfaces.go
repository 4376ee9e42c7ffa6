package repository

import (
	"context"
	"errors"

	"github.com/spatialdeez/microstore/internal/models"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate")
	// ErrReferenced is returned when a row cannot be removed because other
	// rows still point at it.
	ErrReferenced = errors.New("still referenced")
	// ErrCommit marks a transaction that could not be committed. Nothing it
	// staged has been applied.
	ErrCommit     = errors.New("commit failed")
)

// NameMatch controls how name uniqueness is checked.
type NameMatch struct {
	Substring bool // the stored name contains the candidate
	FoldCase  bool
}

type Categories interface {
	Create(ctx context.Context, name string) (models.Category, error)
	GetByID(ctx context.Context, id int64) (models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	// NameTaken reports whether any category other than exceptID matches name.
	NameTaken(ctx context.Context, name string, m NameMatch, exceptID int64) (bool, error)
	Rename(ctx context.Context, id int64, name string) error
	CountProducts(ctx context.Context, id int64) (int, error)
	Delete(ctx context.Context, id int64) error
}

type Products interface {
	Create(ctx context.Context, p models.Product) (models.Product, error)
	GetByID(ctx context.Context, id int64) (models.Product, error)
	List(ctx context.Context, limit, offset int) ([]models.Product, error)
	Count(ctx context.Context) (int, error)
	ListByCategory(ctx context.Context, categoryID int64) ([]models.Product, error)
	Update(ctx context.Context, p models.Product) error
	Delete(ctx context.Context, id int64) error
}

type Users interface {
	Create(ctx context.Context, username, passwordHash string, admin bool) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	UsernameTaken(ctx context.Context, username string, m NameMatch, exceptID int64) (bool, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, u models.User) error
	Delete(ctx context.Context, id int64) error
}

type Carts interface {
	ForUser(ctx context.Context, userID int64) (models.Cart, error)
	// LockForUser is ForUser plus a row lock held until the transaction ends.
	LockForUser(ctx context.Context, userID int64) (models.Cart, error)
	// Create returns the user's cart, creating it if none exists.
	Create(ctx context.Context, userID int64) (models.Cart, error)
	Delete(ctx context.Context, cartID int64) error

	Item(ctx context.Context, cartID, productID int64) (models.CartItem, error)
	// Items returns a cart's items in storage order.
	Items(ctx context.Context, cartID int64) ([]models.CartItem, error)
	CreateItem(ctx context.Context, it models.CartItem) (models.CartItem, error)
	SetItemQuantity(ctx context.Context, itemID int64, quantity int) error
	DeleteItem(ctx context.Context, itemID int64) error
	DeleteItems(ctx context.Context, cartID int64) error
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
	List(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Categories Categories
	Products   Products
	Users      Users
	Carts      Carts
	AuditLogs  AuditLogs
}

type Store interface {
	// Repos returns repositories that run outside any transaction.
	Repos() Repos
	// WithTx runs fn inside one transaction. It commits when fn returns nil
	// and rolls back otherwise. Commit failures wrap ErrCommit.
	WithTx(ctx context.Context, fn func(Repos) error) error
}
