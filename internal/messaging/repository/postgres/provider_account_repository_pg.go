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

// ErrProviderAccountNotFound is returned when an account lookup matches no row.
var ErrProviderAccountNotFound = errors.New("provider account not found")

type pgProviderAccountRepository struct{}

// NewPgProviderAccountRepository creates the PostgreSQL provider account repository.
func NewPgProviderAccountRepository() repository.ProviderAccountRepository {
	return &pgProviderAccountRepository{}
}

func (r *pgProviderAccountRepository) Create(ctx context.Context, q repository.Querier, acc *domain.ProviderAccount) (*domain.ProviderAccount, error) {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	acc.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO org_provider_accounts (id, org_id, provider_id, label, meta, secret_ref, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.Exec(ctx, query,
		acc.ID, acc.OrgID, acc.ProviderID, acc.Label, acc.Meta, acc.SecretRef, acc.IsDefault, acc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (r *pgProviderAccountRepository) GetByID(ctx context.Context, q repository.Querier, orgID, id string) (*domain.ProviderAccount, error) {
	query := `
		SELECT id, org_id, provider_id, label, meta, secret_ref, is_default, created_at
		FROM org_provider_accounts WHERE id = $1 AND org_id = $2
	`
	return r.scanOne(q.QueryRow(ctx, query, id, orgID))
}

func (r *pgProviderAccountRepository) GetByOrgAndProvider(ctx context.Context, q repository.Querier, orgID, providerID string) (*domain.ProviderAccount, error) {
	query := `
		SELECT id, org_id, provider_id, label, meta, secret_ref, is_default, created_at
		FROM org_provider_accounts WHERE org_id = $1 AND provider_id = $2
		ORDER BY is_default DESC, created_at ASC
		LIMIT 1
	`
	return r.scanOne(q.QueryRow(ctx, query, orgID, providerID))
}

func (r *pgProviderAccountRepository) ListByOrg(ctx context.Context, q repository.Querier, orgID string) ([]domain.ProviderAccount, error) {
	query := `
		SELECT id, org_id, provider_id, label, meta, secret_ref, is_default, created_at
		FROM org_provider_accounts WHERE org_id = $1
		ORDER BY created_at ASC
	`
	rows, err := q.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.ProviderAccount
	for rows.Next() {
		var acc domain.ProviderAccount
		if err := rows.Scan(&acc.ID, &acc.OrgID, &acc.ProviderID, &acc.Label, &acc.Meta, &acc.SecretRef, &acc.IsDefault, &acc.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (r *pgProviderAccountRepository) scanOne(row pgx.Row) (*domain.ProviderAccount, error) {
	acc := &domain.ProviderAccount{}
	err := row.Scan(&acc.ID, &acc.OrgID, &acc.ProviderID, &acc.Label, &acc.Meta, &acc.SecretRef, &acc.IsDefault, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}
