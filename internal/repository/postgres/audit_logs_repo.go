package postgres

import (
	"context"

	"github.com/spatialdeez/microstore/internal/models"
)

type auditLogsRepo struct{ db dbtx }

func (r *auditLogsRepo) Create(ctx context.Context, l models.AuditLog) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_logs(entity_type, entity_id, actor_id, action, details) VALUES($1,$2,$3,$4,$5)`,
		l.EntityType, l.EntityID, l.ActorID, l.Action, l.Details,
	)
	return err
}

func (r *auditLogsRepo) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, entity_type, entity_id, actor_id, action, details, created_at
		   FROM audit_logs
		  ORDER BY id DESC
		  LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.EntityType, &l.EntityID, &l.ActorID, &l.Action, &l.Details, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
