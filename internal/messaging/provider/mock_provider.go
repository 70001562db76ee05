package provider

import (
	"context"
)

// MockAdapter is a configurable in-memory adapter for tests.
type MockAdapter struct {
	ProviderName string
	SendFunc     func(ctx context.Context, req SendRequest) (*SendResponse, error)
	LookupFunc   func(ctx context.Context, e164 string) (bool, error)

	SentRequests []SendRequest
}

func (m *MockAdapter) SendSMS(ctx context.Context, req SendRequest) (*SendResponse, error) {
	m.SentRequests = append(m.SentRequests, req)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, req)
	}
	return &SendResponse{
		ProviderMessageID: "mock-" + req.InternalMessageID,
		Success:           true,
		StatusCode:        200,
		ProviderName:      m.Name(),
	}, nil
}

func (m *MockAdapter) LookupNumber(ctx context.Context, e164 string) (bool, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, e164)
	}
	return true, nil
}

func (m *MockAdapter) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// MockFactory returns a fixed adapter (or error) regardless of provider ID.
type MockFactory struct {
	Adapter Adapter
	Err     error

	Requested []string
}

func (f *MockFactory) New(providerID string, creds map[string]string) (Adapter, error) {
	f.Requested = append(f.Requested, providerID)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Adapter, nil
}
