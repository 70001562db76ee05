package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ghostcrm/messaging/internal/messaging/repository"
	"github.com/jackc/pgx/v5"
)

// ErrSecretNotFound is returned when no blob exists for a reference.
var ErrSecretNotFound = errors.New("secret blob not found")

type pgSecretRepository struct{}

// NewPgSecretRepository creates the PostgreSQL secret blob repository.
// The table is append-only: references are never overwritten or reused.
func NewPgSecretRepository() repository.SecretRepository {
	return &pgSecretRepository{}
}

func (r *pgSecretRepository) Insert(ctx context.Context, q repository.Querier, ref, orgID, providerID, ciphertext string) error {
	query := `
		INSERT INTO org_provider_secrets (ref, org_id, provider_id, ciphertext, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := q.Exec(ctx, query, ref, orgID, providerID, ciphertext, time.Now().UTC())
	return err
}

func (r *pgSecretRepository) GetCiphertext(ctx context.Context, q repository.Querier, ref string) (string, error) {
	var ciphertext string
	query := `SELECT ciphertext FROM org_provider_secrets WHERE ref = $1`
	err := q.QueryRow(ctx, query, ref).Scan(&ciphertext)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSecretNotFound
		}
		return "", err
	}
	return ciphertext, nil
}
