// Package memory is an in-process implementation of repository.Store. It
// keeps the transactional contract of the Postgres store: a transaction
// works on a private copy of the data that replaces the shared state only
// when the transaction commits.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/spatialdeez/microstore/internal/models"
	repo "github.com/spatialdeez/microstore/internal/repository"
)

type state struct {
	seq        int64
	categories map[int64]models.Category
	products   map[int64]models.Product
	users      map[int64]models.User
	carts      map[int64]models.Cart
	items      map[int64]models.CartItem
	audit      []models.AuditLog
}

func newState() *state {
	return &state{
		categories: map[int64]models.Category{},
		products:   map[int64]models.Product{},
		users:      map[int64]models.User{},
		carts:      map[int64]models.Cart{},
		items:      map[int64]models.CartItem{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:        s.seq,
		categories: maps.Clone(s.categories),
		products:   maps.Clone(s.products),
		users:      maps.Clone(s.users),
		carts:      maps.Clone(s.carts),
		items:      maps.Clone(s.items),
		audit:      append([]models.AuditLog(nil), s.audit...),
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

type Store struct {
	txMu sync.Mutex // serializes transactions
	mu   sync.RWMutex
	data *state

	commitHook func() error
}

func NewStore() *Store { return &Store{data: newState()} }

// SetCommitHook installs fn to run before each commit. A non-nil result
// aborts the commit as a commit failure.
func (s *Store) SetCommitHook(fn func() error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.commitHook = fn
}

// view gives a repository access to state. Outside a transaction it reads
// the shared state under the read lock.
type view struct {
	store *Store
	tx    *state
}

func (v view) read(fn func(*state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return fn(v.store.data)
}

func (v view) write(fn func(*state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.txMu.Lock()
	defer v.store.txMu.Unlock()
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.data)
}

func newRepos(v view) repo.Repos {
	return repo.Repos{
		Categories: &categoriesRepo{v},
		Products:   &productsRepo{v},
		Users:      &usersRepo{v},
		Carts:      &cartsRepo{v},
		AuditLogs:  &auditLogsRepo{v},
	}
}

func (s *Store) Repos() repo.Repos { return newRepos(view{store: s}) }

func (s *Store) WithTx(ctx context.Context, fn func(repo.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: begin: %v", repo.ErrCommit, err)
	}

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(newRepos(view{store: s, tx: work})); err != nil {
		return err
	}
	if s.commitHook != nil {
		if err := s.commitHook(); err != nil {
			return fmt.Errorf("%w: %v", repo.ErrCommit, err)
		}
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}
