package repository

import (
	"context"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier abstracts over *pgxpool.Pool and pgx.Tx so repository methods can
// run either standalone or inside a transaction started by the caller.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MessageRepository persists inbound and outbound messages.
// Outbound rows get exactly one insert and one terminal update; inbound rows
// are insert-only.
type MessageRepository interface {
	Create(ctx context.Context, q Querier, msg *domain.Message) (*domain.Message, error)
	UpdateDispatchResult(ctx context.Context, q Querier, id string, status domain.MessageStatus, providerMsgID *string, errorMessage *string) error
	GetByID(ctx context.Context, q Querier, orgID, id string) (*domain.Message, error)
	ListByOrg(ctx context.Context, q Querier, orgID string, limit int) ([]domain.Message, error)
}

// PhoneNumberRepository persists org-owned E.164 numbers.
type PhoneNumberRepository interface {
	Create(ctx context.Context, q Querier, pn *domain.PhoneNumber) (*domain.PhoneNumber, error)
	GetByE164(ctx context.Context, q Querier, e164 string) (*domain.PhoneNumber, error)
	ListByOrg(ctx context.Context, q Querier, orgID string) ([]domain.PhoneNumber, error)
}

// ProviderAccountRepository persists per-vendor tenant accounts.
type ProviderAccountRepository interface {
	Create(ctx context.Context, q Querier, acc *domain.ProviderAccount) (*domain.ProviderAccount, error)
	GetByID(ctx context.Context, q Querier, orgID, id string) (*domain.ProviderAccount, error)
	GetByOrgAndProvider(ctx context.Context, q Querier, orgID, providerID string) (*domain.ProviderAccount, error)
	ListByOrg(ctx context.Context, q Querier, orgID string) ([]domain.ProviderAccount, error)
}

// SecretRepository persists encrypted provider-secret blobs. Append-only:
// each save is one insert under a fresh reference, never a read-modify-write.
type SecretRepository interface {
	Insert(ctx context.Context, q Querier, ref, orgID, providerID, ciphertext string) error
	GetCiphertext(ctx context.Context, q Querier, ref string) (string, error)
}

// AuditEventRepository persists append-only audit events.
type AuditEventRepository interface {
	Create(ctx context.Context, q Querier, ev *domain.AuditEvent) error
	ListByOrg(ctx context.Context, q Querier, orgID string, limit int) ([]domain.AuditEvent, error)
}

// MembershipRepository resolves the organization a user acts for.
type MembershipRepository interface {
	GetByUserID(ctx context.Context, q Querier, userID string) (*domain.Membership, error)
}
