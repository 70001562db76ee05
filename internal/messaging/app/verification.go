package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/provider"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
)

// VerificationService confirms that a phone number is actually owned by an
// organization's upstream vendor account before it is trusted for sending.
// The check runs once, synchronously, at registration time; the result is
// stored on the phone_numbers row and never re-checked per send.
type VerificationService struct {
	db          repository.Querier
	accounts    repository.ProviderAccountRepository
	secretStore SecretLoader
	factory     provider.Factory
	logger      *slog.Logger
}

// NewVerificationService creates a VerificationService.
func NewVerificationService(
	db repository.Querier,
	accounts repository.ProviderAccountRepository,
	secretStore SecretLoader,
	factory provider.Factory,
	logger *slog.Logger,
) *VerificationService {
	return &VerificationService{
		db:          db,
		accounts:    accounts,
		secretStore: secretStore,
		factory:     factory,
		logger:      logger.With("component", "verification"),
	}
}

// VerifyOwnership calls the vendor's number-lookup API filtered by the E.164.
// Zero matches is a hard failure (domain.ErrNumberNotFound), not "unverified
// but allowed"; callers must propagate it.
func (v *VerificationService) VerifyOwnership(ctx context.Context, orgID, providerAccountID, e164 string) (bool, error) {
	acc, err := v.accounts.GetByID(ctx, v.db, orgID, providerAccountID)
	if err != nil {
		return false, fmt.Errorf("resolve provider account: %w", err)
	}

	creds, err := v.secretStore.Load(ctx, acc.SecretRef)
	if err != nil {
		return false, fmt.Errorf("load credentials for account %s: %w", acc.ID, err)
	}

	adapter, err := v.factory.New(acc.ProviderID, creds)
	if err != nil {
		return false, fmt.Errorf("build %s adapter: %w", acc.ProviderID, err)
	}

	found, err := adapter.LookupNumber(ctx, e164)
	if err != nil {
		return false, fmt.Errorf("%s number lookup: %w", acc.ProviderID, err)
	}
	if !found {
		v.logger.WarnContext(ctx, "ownership check found no matching number",
			"org_id", orgID, "provider", acc.ProviderID, "e164", e164)
		return false, domain.ErrNumberNotFound
	}
	return true, nil
}
