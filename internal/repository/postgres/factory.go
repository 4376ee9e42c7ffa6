package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/spatialdeez/microstore/internal/repository"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct{ pool *pgxpool.Pool }

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func newRepos(db dbtx) repo.Repos {
	return repo.Repos{
		Categories: &categoriesRepo{db},
		Products:   &productsRepo{db},
		Users:      &usersRepo{db},
		Carts:      &cartsRepo{db},
		AuditLogs:  &auditLogsRepo{db},
	}
}

func (s *Store) Repos() repo.Repos { return newRepos(s.pool) }

func (s *Store) WithTx(ctx context.Context, fn func(repo.Repos) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", repo.ErrCommit, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", repo.ErrCommit, err)
	}
	return nil
}

// mapErr translates driver errors into repository sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", repo.ErrDuplicate, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", repo.ErrReferenced, pgErr.ConstraintName)
		}
	}
	return err
}

// nameClause builds the WHERE fragment for a NameMatch against column col,
// with the candidate bound to placeholder $1.
func nameClause(col string, m repo.NameMatch) string {
	lhs, rhs := col, "$1::text"
	if m.FoldCase {
		lhs, rhs = "lower("+col+")", "lower($1::text)"
	}
	if m.Substring {
		return "position(" + rhs + " in " + lhs + ") > 0"
	}
	return lhs + " = " + rhs
}
