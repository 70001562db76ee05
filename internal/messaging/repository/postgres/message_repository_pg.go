package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type pgMessageRepository struct{}

// NewPgMessageRepository creates the PostgreSQL message repository.
func NewPgMessageRepository() repository.MessageRepository {
	return &pgMessageRepository{}
}

func (r *pgMessageRepository) Create(ctx context.Context, q repository.Querier, msg *domain.Message) (*domain.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	query := `
		INSERT INTO messages (
			id, org_id, direction, channel, to_address, from_address, body, status,
			provider_message_id, error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`
	_, err := q.Exec(ctx, query,
		msg.ID, msg.OrgID, msg.Direction, msg.Channel, msg.ToAddress, msg.FromAddress, msg.Body, msg.Status,
		msg.ProviderMessageID, msg.ErrorMessage, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// UpdateDispatchResult records the single terminal transition of an outbound
// message: queued -> sent|error. A second call finds status != 'queued' and
// reports not found, which keeps the transition exactly-once.
func (r *pgMessageRepository) UpdateDispatchResult(ctx context.Context, q repository.Querier, id string, status domain.MessageStatus, providerMsgID *string, errorMessage *string) error {
	now := time.Now().UTC()
	query := `
		UPDATE messages
		SET status = $2, provider_message_id = $3, error_message = $4, updated_at = $5
		WHERE id = $1 AND direction = 'outbound' AND status = 'queued'
	`
	tag, err := q.Exec(ctx, query, id, status, providerMsgID, errorMessage, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *pgMessageRepository) GetByID(ctx context.Context, q repository.Querier, orgID, id string) (*domain.Message, error) {
	msg := &domain.Message{}
	query := `
		SELECT id, org_id, direction, channel, to_address, from_address, body, status,
		       provider_message_id, error_message, created_at, updated_at
		FROM messages WHERE id = $1 AND org_id = $2
	`
	err := q.QueryRow(ctx, query, id, orgID).Scan(
		&msg.ID, &msg.OrgID, &msg.Direction, &msg.Channel, &msg.ToAddress, &msg.FromAddress, &msg.Body, &msg.Status,
		&msg.ProviderMessageID, &msg.ErrorMessage, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (r *pgMessageRepository) ListByOrg(ctx context.Context, q repository.Querier, orgID string, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT id, org_id, direction, channel, to_address, from_address, body, status,
		       provider_message_id, error_message, created_at, updated_at
		FROM messages WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := q.Query(ctx, query, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID, &msg.OrgID, &msg.Direction, &msg.Channel, &msg.ToAddress, &msg.FromAddress, &msg.Body, &msg.Status,
			&msg.ProviderMessageID, &msg.ErrorMessage, &msg.CreatedAt, &msg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
