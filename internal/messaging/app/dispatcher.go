package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/provider"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	"github.com/jackc/pgx/v5"
)

// NATS subjects for post-commit domain events consumed by the rest of the CRM
// (contact timelines, notifications).
const (
	SubjectOutboundSent    = "messaging.outbound.sent"
	SubjectOutboundFailed  = "messaging.outbound.failed"
	SubjectInboundReceived = "messaging.inbound.received"
)

// EventPublisher publishes domain events. Satisfied by messagebroker.NatsClient.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// DB is the subset of *pgxpool.Pool the dispatcher needs: plain queries plus
// the ability to begin a transaction for the terminal update + audit write.
type DB interface {
	repository.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SendInput describes one outbound send request.
type SendInput struct {
	OrgID  string
	UserID string
	To     string
	From   string
	Body   string
}

// SendResult is the caller-visible outcome of a dispatch.
type SendResult struct {
	MessageID         string
	ProviderMessageID string
}

// MessageEvent is the payload published on messaging.* subjects.
type MessageEvent struct {
	MessageID  string `json:"message_id"`
	OrgID      string `json:"org_id"`
	Direction  string `json:"direction"`
	To         string `json:"to"`
	From       string `json:"from,omitempty"`
	ProviderID string `json:"provider_message_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Dispatcher runs the outbound state machine: queued -> sent | error, one
// transition, no retry. A failed send is terminal and surfaced to the caller.
type Dispatcher struct {
	db        DB
	messages  repository.MessageRepository
	audits    repository.AuditEventRepository
	selector  *AdapterSelector
	publisher EventPublisher
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	db DB,
	messages repository.MessageRepository,
	audits repository.AuditEventRepository,
	selector *AdapterSelector,
	publisher EventPublisher,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		db:        db,
		messages:  messages,
		audits:    audits,
		selector:  selector,
		publisher: publisher,
		logger:    logger.With("component", "dispatcher"),
	}
}

// SendMessage dispatches one outbound SMS. Side effects: exactly one message
// insert, one message update, one audit event insert (update and audit commit
// in a single transaction), and zero or one vendor call. The queued row is
// committed before the vendor call so a crash mid-send still leaves a durable
// record of the attempt.
func (d *Dispatcher) SendMessage(ctx context.Context, input SendInput) (*SendResult, error) {
	if input.To == "" || input.Body == "" {
		return nil, domain.ErrMissingFields
	}

	msg, err := d.messages.Create(ctx, d.db, &domain.Message{
		OrgID:       input.OrgID,
		Direction:   domain.DirectionOutbound,
		Channel:     domain.ChannelSMS,
		ToAddress:   input.To,
		FromAddress: input.From,
		Body:        input.Body,
		Status:      domain.MessageStatusQueued,
	})
	if err != nil {
		return nil, fmt.Errorf("insert queued message: %w", err)
	}
	logger := d.logger.With("message_id", msg.ID, "org_id", input.OrgID)

	adapter, acc, err := d.selector.Select(ctx, input.OrgID, input.From)
	if err != nil {
		logger.WarnContext(ctx, "adapter selection failed", "error", err)
		if finErr := d.finalize(ctx, msg, input.UserID, "none", "", err.Error()); finErr != nil {
			logger.ErrorContext(ctx, "failed to record selection failure", "error", finErr)
		}
		return nil, err
	}
	logger = logger.With("provider", adapter.Name(), "provider_account_id", acc.ID)

	start := time.Now()
	resp, sendErr := adapter.SendSMS(ctx, provider.SendRequest{
		InternalMessageID: msg.ID,
		To:                input.To,
		From:              input.From,
		Body:              input.Body,
	})
	vendorRequestDurationHist.WithLabelValues(adapter.Name()).Observe(time.Since(start).Seconds())

	var vendorErr *domain.VendorError
	if sendErr != nil {
		vendorErr = &domain.VendorError{Provider: adapter.Name(), Message: sendErr.Error()}
	} else if !resp.Success {
		vendorErr = &domain.VendorError{Provider: resp.ProviderName, Message: resp.ErrorMessage}
	}

	if vendorErr != nil {
		logger.WarnContext(ctx, "vendor send failed", "error", vendorErr.Message)
		if finErr := d.finalize(ctx, msg, input.UserID, adapter.Name(), "", vendorErr.Message); finErr != nil {
			logger.ErrorContext(ctx, "failed to record send failure", "error", finErr)
		}
		return nil, vendorErr
	}

	if finErr := d.finalize(ctx, msg, input.UserID, adapter.Name(), resp.ProviderMessageID, ""); finErr != nil {
		// The vendor accepted the message but our terminal update failed;
		// surface it so the caller does not double-send blindly.
		logger.ErrorContext(ctx, "failed to record send success", "error", finErr)
		return nil, fmt.Errorf("record send result: %w", finErr)
	}

	logger.InfoContext(ctx, "message dispatched", "provider_message_id", resp.ProviderMessageID)
	return &SendResult{MessageID: msg.ID, ProviderMessageID: resp.ProviderMessageID}, nil
}

// finalize commits the terminal status transition and its audit event in one
// transaction, then publishes the matching domain event.
func (d *Dispatcher) finalize(ctx context.Context, msg *domain.Message, actorID, providerName, providerMsgID, errMsg string) error {
	status := domain.MessageStatusSent
	action := domain.AuditActionMessageSent
	detail := fmt.Sprintf("provider_message_id=%s", providerMsgID)
	var providerIDPtr, errPtr *string
	if providerMsgID != "" {
		providerIDPtr = &providerMsgID
	}
	if errMsg != "" {
		status = domain.MessageStatusError
		action = domain.AuditActionMessageSendFailed
		detail = errMsg
		errPtr = &errMsg
	}

	var actorPtr *string
	if actorID != "" {
		actorPtr = &actorID
	}

	tx, err := d.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	if err := d.messages.UpdateDispatchResult(ctx, tx, msg.ID, status, providerIDPtr, errPtr); err != nil {
		return err
	}
	if err := d.audits.Create(ctx, tx, &domain.AuditEvent{
		OrgID:      msg.OrgID,
		ActorID:    actorPtr,
		Action:     action,
		EntityType: "message",
		EntityID:   msg.ID,
		Detail:     detail,
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dispatch result: %w", err)
	}

	outboundProcessedCounter.WithLabelValues(providerName, string(status)).Inc()
	d.publishOutcome(ctx, msg, providerMsgID, errMsg)
	return nil
}

func (d *Dispatcher) publishOutcome(ctx context.Context, msg *domain.Message, providerMsgID, errMsg string) {
	subject := SubjectOutboundSent
	if errMsg != "" {
		subject = SubjectOutboundFailed
	}
	payload, err := json.Marshal(MessageEvent{
		MessageID:  msg.ID,
		OrgID:      msg.OrgID,
		Direction:  string(domain.DirectionOutbound),
		To:         msg.ToAddress,
		From:       msg.FromAddress,
		ProviderID: providerMsgID,
		Error:      errMsg,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to marshal outbound event", "error", err)
		return
	}
	if err := d.publisher.Publish(ctx, subject, payload); err != nil {
		// Event delivery is best-effort; the durable record is in Postgres.
		d.logger.WarnContext(ctx, "failed to publish outbound event", "subject", subject, "error", err)
	}
}
