package postgres

import (
	"context"
	"time"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	"github.com/google/uuid"
)

type pgAuditEventRepository struct{}

// NewPgAuditEventRepository creates the PostgreSQL audit event repository.
// Events are written once and never updated or deleted.
func NewPgAuditEventRepository() repository.AuditEventRepository {
	return &pgAuditEventRepository{}
}

func (r *pgAuditEventRepository) Create(ctx context.Context, q repository.Querier, ev *domain.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO audit_events (id, org_id, actor_id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.Exec(ctx, query,
		ev.ID, ev.OrgID, ev.ActorID, ev.Action, ev.EntityType, ev.EntityID, ev.Detail, ev.CreatedAt,
	)
	return err
}

func (r *pgAuditEventRepository) ListByOrg(ctx context.Context, q repository.Querier, orgID string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT id, org_id, actor_id, action, entity_type, entity_id, detail, created_at
		FROM audit_events WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := q.Query(ctx, query, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var ev domain.AuditEvent
		if err := rows.Scan(&ev.ID, &ev.OrgID, &ev.ActorID, &ev.Action, &ev.EntityType, &ev.EntityID, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
