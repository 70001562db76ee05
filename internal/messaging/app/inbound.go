package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	pgrepo "github.com/ghostcrm/messaging/internal/messaging/repository/postgres"
)

// InboundProcessor resolves inbound webhook deliveries to an owning
// organization and persists them. Inbound rows are written once and never
// mutated; an unmapped destination is dropped, not queued for retry.
type InboundProcessor struct {
	db          repository.Querier
	phones      repository.PhoneNumberRepository
	accounts    repository.ProviderAccountRepository
	messages    repository.MessageRepository
	secretStore SecretLoader
	publisher   EventPublisher
	logger      *slog.Logger
}

// NewInboundProcessor creates an InboundProcessor.
func NewInboundProcessor(
	db repository.Querier,
	phones repository.PhoneNumberRepository,
	accounts repository.ProviderAccountRepository,
	messages repository.MessageRepository,
	secretStore SecretLoader,
	publisher EventPublisher,
	logger *slog.Logger,
) *InboundProcessor {
	return &InboundProcessor{
		db:          db,
		phones:      phones,
		accounts:    accounts,
		messages:    messages,
		secretStore: secretStore,
		publisher:   publisher,
		logger:      logger.With("component", "inbound_processor"),
	}
}

// ResolveDestination maps an inbound destination E.164 to the registered
// phone number row. domain.ErrUnknownDestination means no organization owns
// the number.
func (p *InboundProcessor) ResolveDestination(ctx context.Context, e164 string) (*domain.PhoneNumber, error) {
	return p.phones.GetByE164(ctx, p.db, e164)
}

// VendorCredentials loads the decrypted credential bundle used to validate a
// webhook for the given destination number: the account the number is bound
// to, or the org's account for that vendor.
func (p *InboundProcessor) VendorCredentials(ctx context.Context, pn *domain.PhoneNumber, providerID string) (map[string]string, error) {
	var acc *domain.ProviderAccount
	var err error

	if pn.ProviderAccountID != nil {
		acc, err = p.accounts.GetByID(ctx, p.db, pn.OrgID, *pn.ProviderAccountID)
		if err != nil && !errors.Is(err, pgrepo.ErrProviderAccountNotFound) {
			return nil, err
		}
	}
	if acc == nil {
		acc, err = p.accounts.GetByOrgAndProvider(ctx, p.db, pn.OrgID, providerID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrProviderAccountNotFound) {
				return nil, domain.ErrNoProviderConfigured
			}
			return nil, err
		}
	}

	creds, err := p.secretStore.Load(ctx, acc.SecretRef)
	if err != nil {
		return nil, fmt.Errorf("load credentials for account %s: %w", acc.ID, err)
	}
	return creds, nil
}

// RecordInbound persists a received message for the owning organization and
// publishes the inbound event.
func (p *InboundProcessor) RecordInbound(ctx context.Context, pn *domain.PhoneNumber, vendor, from, body string) (*domain.Message, error) {
	msg, err := p.messages.Create(ctx, p.db, &domain.Message{
		OrgID:       pn.OrgID,
		Direction:   domain.DirectionInbound,
		Channel:     domain.ChannelSMS,
		ToAddress:   pn.E164,
		FromAddress: from,
		Body:        body,
		Status:      domain.MessageStatusReceived,
	})
	if err != nil {
		return nil, fmt.Errorf("insert inbound message: %w", err)
	}

	inboundReceivedCounter.WithLabelValues(vendor).Inc()
	p.logger.InfoContext(ctx, "inbound message recorded",
		"message_id", msg.ID, "org_id", pn.OrgID, "vendor", vendor)

	payload, err := json.Marshal(MessageEvent{
		MessageID: msg.ID,
		OrgID:     pn.OrgID,
		Direction: string(domain.DirectionInbound),
		To:        pn.E164,
		From:      from,
	})
	if err == nil {
		if pubErr := p.publisher.Publish(ctx, SubjectInboundReceived, payload); pubErr != nil {
			p.logger.WarnContext(ctx, "failed to publish inbound event", "error", pubErr)
		}
	}
	return msg, nil
}
