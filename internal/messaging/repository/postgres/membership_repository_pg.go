package postgres

import (
	"context"
	"errors"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	"github.com/jackc/pgx/v5"
)

type pgMembershipRepository struct{}

// NewPgMembershipRepository creates the PostgreSQL org membership repository.
func NewPgMembershipRepository() repository.MembershipRepository {
	return &pgMembershipRepository{}
}

func (r *pgMembershipRepository) GetByUserID(ctx context.Context, q repository.Querier, userID string) (*domain.Membership, error) {
	m := &domain.Membership{}
	query := `SELECT org_id, user_id, role FROM org_members WHERE user_id = $1 LIMIT 1`
	err := q.QueryRow(ctx, query, userID).Scan(&m.OrgID, &m.UserID, &m.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoMembership
		}
		return nil, err
	}
	return m, nil
}
