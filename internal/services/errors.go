package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/spatialdeez/microstore/internal/auth"
	"github.com/spatialdeez/microstore/internal/models"
	repo "github.com/spatialdeez/microstore/internal/repository"
)

var (
	ErrNotFound = repo.ErrNotFound
	// ErrPersistence means nothing was written and the operation can be
	// retried as a whole.
	ErrPersistence = errors.New("persistence failure")
	ErrConflict    = errors.New("conflict")
)

// ConflictError is a refused mutation. Count carries the number of blocking
// rows when there are any.
type ConflictError struct {
	Reason string
	Count  int
}

func (e *ConflictError) Error() string {
	if e.Count > 0 {
		return fmt.Sprintf("%s (%d)", e.Reason, e.Count)
	}
	return e.Reason
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// inTx runs fn in one store transaction and reports commit failures as
// ErrPersistence.
func inTx(ctx context.Context, st repo.Store, fn func(repo.Repos) error) error {
	err := st.WithTx(ctx, fn)
	if errors.Is(err, repo.ErrCommit) {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return err
}

func audit(ctx context.Context, r repo.Repos, actor *auth.Principal, entity string, id int64, action string, details map[string]any) error {
	l := models.AuditLog{
		EntityType: entity,
		Action:     action,
		Details:    details,
	}
	if id != 0 {
		l.EntityID = &id
	}
	if actor != nil {
		uid := actor.UserID
		l.ActorID = &uid
	}
	if err := r.AuditLogs.Create(ctx, l); err != nil {
		return fmt.Errorf("audit %s %s: %w", entity, action, err)
	}
	return nil
}
