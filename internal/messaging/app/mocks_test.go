package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	"github.com/stretchr/testify/mock"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, q repository.Querier, msg *domain.Message) (*domain.Message, error) {
	args := m.Called(ctx, q, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) UpdateDispatchResult(ctx context.Context, q repository.Querier, id string, status domain.MessageStatus, providerMsgID *string, errorMessage *string) error {
	args := m.Called(ctx, q, id, status, providerMsgID, errorMessage)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, q repository.Querier, orgID, id string) (*domain.Message, error) {
	args := m.Called(ctx, q, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) ListByOrg(ctx context.Context, q repository.Querier, orgID string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, q, orgID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

type MockAuditEventRepository struct {
	mock.Mock
}

func (m *MockAuditEventRepository) Create(ctx context.Context, q repository.Querier, ev *domain.AuditEvent) error {
	args := m.Called(ctx, q, ev)
	return args.Error(0)
}

func (m *MockAuditEventRepository) ListByOrg(ctx context.Context, q repository.Querier, orgID string, limit int) ([]domain.AuditEvent, error) {
	args := m.Called(ctx, q, orgID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuditEvent), args.Error(1)
}

type MockProviderAccountRepository struct {
	mock.Mock
}

func (m *MockProviderAccountRepository) Create(ctx context.Context, q repository.Querier, acc *domain.ProviderAccount) (*domain.ProviderAccount, error) {
	args := m.Called(ctx, q, acc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderAccount), args.Error(1)
}

func (m *MockProviderAccountRepository) GetByID(ctx context.Context, q repository.Querier, orgID, id string) (*domain.ProviderAccount, error) {
	args := m.Called(ctx, q, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderAccount), args.Error(1)
}

func (m *MockProviderAccountRepository) GetByOrgAndProvider(ctx context.Context, q repository.Querier, orgID, providerID string) (*domain.ProviderAccount, error) {
	args := m.Called(ctx, q, orgID, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderAccount), args.Error(1)
}

func (m *MockProviderAccountRepository) ListByOrg(ctx context.Context, q repository.Querier, orgID string) ([]domain.ProviderAccount, error) {
	args := m.Called(ctx, q, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProviderAccount), args.Error(1)
}

type MockPhoneNumberRepository struct {
	mock.Mock
}

func (m *MockPhoneNumberRepository) Create(ctx context.Context, q repository.Querier, pn *domain.PhoneNumber) (*domain.PhoneNumber, error) {
	args := m.Called(ctx, q, pn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PhoneNumber), args.Error(1)
}

func (m *MockPhoneNumberRepository) GetByE164(ctx context.Context, q repository.Querier, e164 string) (*domain.PhoneNumber, error) {
	args := m.Called(ctx, q, e164)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PhoneNumber), args.Error(1)
}

func (m *MockPhoneNumberRepository) ListByOrg(ctx context.Context, q repository.Querier, orgID string) ([]domain.PhoneNumber, error) {
	args := m.Called(ctx, q, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PhoneNumber), args.Error(1)
}

// MockSecretLoader returns a fixed credential bundle.
type MockSecretLoader struct {
	Creds map[string]string
	Err   error

	LoadedRefs []string
}

func (m *MockSecretLoader) Load(ctx context.Context, ref string) (map[string]string, error) {
	m.LoadedRefs = append(m.LoadedRefs, ref)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Creds, nil
}

// MockPublisher records published events.
type MockPublisher struct {
	Subjects []string
	Payloads [][]byte
	Err      error
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	m.Subjects = append(m.Subjects, subject)
	m.Payloads = append(m.Payloads, data)
	return m.Err
}
