package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/provider"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	pgrepo "github.com/ghostcrm/messaging/internal/messaging/repository/postgres"
)

// SecretLoader decrypts a stored secret bundle by reference.
type SecretLoader interface {
	Load(ctx context.Context, ref string) (map[string]string, error)
}

// AdapterSelector resolves which vendor adapter an organization's send should
// use, and constructs it from the account's decrypted credentials.
type AdapterSelector struct {
	db          repository.Querier
	accounts    repository.ProviderAccountRepository
	phones      repository.PhoneNumberRepository
	secretStore SecretLoader
	factory     provider.Factory
	logger      *slog.Logger
}

// NewAdapterSelector creates an AdapterSelector.
func NewAdapterSelector(
	db repository.Querier,
	accounts repository.ProviderAccountRepository,
	phones repository.PhoneNumberRepository,
	secretStore SecretLoader,
	factory provider.Factory,
	logger *slog.Logger,
) *AdapterSelector {
	return &AdapterSelector{
		db:          db,
		accounts:    accounts,
		phones:      phones,
		secretStore: secretStore,
		factory:     factory,
		logger:      logger.With("component", "adapter_selector"),
	}
}

// Select resolves the provider account for orgID and an optional from
// address, then builds the vendor adapter. Policy: a from address bound to a
// specific account wins; otherwise the org's default account; otherwise its
// single account. Zero accounts yields domain.ErrNoProviderConfigured.
func (s *AdapterSelector) Select(ctx context.Context, orgID, fromAddress string) (provider.Adapter, *domain.ProviderAccount, error) {
	acc, err := s.resolveAccount(ctx, orgID, fromAddress)
	if err != nil {
		return nil, nil, err
	}

	creds, err := s.secretStore.Load(ctx, acc.SecretRef)
	if err != nil {
		return nil, nil, fmt.Errorf("load credentials for account %s: %w", acc.ID, err)
	}

	adapter, err := s.factory.New(acc.ProviderID, creds)
	if err != nil {
		return nil, nil, fmt.Errorf("build %s adapter: %w", acc.ProviderID, err)
	}
	return adapter, acc, nil
}

func (s *AdapterSelector) resolveAccount(ctx context.Context, orgID, fromAddress string) (*domain.ProviderAccount, error) {
	if fromAddress != "" {
		pn, err := s.phones.GetByE164(ctx, s.db, fromAddress)
		switch {
		case err == nil && pn.OrgID == orgID && pn.ProviderAccountID != nil:
			acc, err := s.accounts.GetByID(ctx, s.db, orgID, *pn.ProviderAccountID)
			if err == nil {
				return acc, nil
			}
			if !errors.Is(err, pgrepo.ErrProviderAccountNotFound) {
				return nil, err
			}
			// Number points at a deleted account; fall through to org defaults.
		case err != nil && !errors.Is(err, domain.ErrUnknownDestination):
			return nil, err
		}
	}

	accounts, err := s.accounts.ListByOrg(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, domain.ErrNoProviderConfigured
	}

	for i := range accounts {
		if accounts[i].IsDefault {
			return &accounts[i], nil
		}
	}
	if len(accounts) > 1 {
		s.logger.WarnContext(ctx, "organization has multiple provider accounts and no default, using oldest",
			"org_id", orgID, "account_id", accounts[0].ID)
	}
	return &accounts[0], nil
}
