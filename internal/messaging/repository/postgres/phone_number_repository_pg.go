package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgPhoneNumberRepository struct{}

// NewPgPhoneNumberRepository creates the PostgreSQL phone number repository.
func NewPgPhoneNumberRepository() repository.PhoneNumberRepository {
	return &pgPhoneNumberRepository{}
}

func (r *pgPhoneNumberRepository) Create(ctx context.Context, q repository.Querier, pn *domain.PhoneNumber) (*domain.PhoneNumber, error) {
	if pn.ID == "" {
		pn.ID = uuid.NewString()
	}
	pn.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO phone_numbers (id, org_id, provider_account_id, e164, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.Exec(ctx, query, pn.ID, pn.OrgID, pn.ProviderAccountID, pn.E164, pn.Verified, pn.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrNumberInUse
		}
		return nil, err
	}
	return pn, nil
}

func (r *pgPhoneNumberRepository) GetByE164(ctx context.Context, q repository.Querier, e164 string) (*domain.PhoneNumber, error) {
	pn := &domain.PhoneNumber{}
	query := `
		SELECT id, org_id, provider_account_id, e164, verified, created_at
		FROM phone_numbers WHERE e164 = $1
	`
	err := q.QueryRow(ctx, query, e164).Scan(
		&pn.ID, &pn.OrgID, &pn.ProviderAccountID, &pn.E164, &pn.Verified, &pn.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUnknownDestination
		}
		return nil, err
	}
	return pn, nil
}

func (r *pgPhoneNumberRepository) ListByOrg(ctx context.Context, q repository.Querier, orgID string) ([]domain.PhoneNumber, error) {
	query := `
		SELECT id, org_id, provider_account_id, e164, verified, created_at
		FROM phone_numbers WHERE org_id = $1
		ORDER BY created_at DESC
	`
	rows, err := q.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []domain.PhoneNumber
	for rows.Next() {
		var pn domain.PhoneNumber
		if err := rows.Scan(&pn.ID, &pn.OrgID, &pn.ProviderAccountID, &pn.E164, &pn.Verified, &pn.CreatedAt); err != nil {
			return nil, err
		}
		numbers = append(numbers, pn)
	}
	return numbers, rows.Err()
}
