// Package provider holds the vendor-specific outbound adapters. Each adapter
// is built per request from an organization's decrypted credentials; nothing
// here is shared across tenants.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Vendor identifiers as stored on org_provider_accounts.provider_id.
const (
	ProviderTwilio = "twilio"
	ProviderTelnyx = "telnyx"
)

// SendRequest holds the data for one outbound SMS attempt.
type SendRequest struct {
	InternalMessageID string // our message row ID, for log correlation
	To                string
	From              string
	Body              string
}

// SendResponse holds the outcome of a send attempt.
type SendResponse struct {
	ProviderMessageID string
	Success           bool
	StatusCode        int
	ErrorMessage      string
	ProviderName      string
}

// Adapter is the capability set the dispatch path is polymorphic over.
type Adapter interface {
	// SendSMS submits one message. A nil error with Success=false means the
	// vendor declined the message; a non-nil error means the attempt never
	// reached a vendor verdict (transport failure, bad response).
	SendSMS(ctx context.Context, req SendRequest) (*SendResponse, error)

	// LookupNumber reports whether the E.164 number exists in the vendor
	// account these credentials belong to.
	LookupNumber(ctx context.Context, e164 string) (bool, error)

	// Name returns the vendor identifier, e.g. "twilio".
	Name() string
}

// Factory builds adapters from decrypted credential bundles. It exists as an
// interface so the dispatch path can be tested with stub adapters.
type Factory interface {
	New(providerID string, creds map[string]string) (Adapter, error)
}

// HTTPFactory builds real HTTP-backed vendor adapters.
type HTTPFactory struct {
	logger     *slog.Logger
	httpClient *http.Client
}

// NewHTTPFactory creates the production adapter factory. timeout bounds each
// vendor API call.
func NewHTTPFactory(logger *slog.Logger, timeout time.Duration) *HTTPFactory {
	return &HTTPFactory{
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFactory) New(providerID string, creds map[string]string) (Adapter, error) {
	switch providerID {
	case ProviderTwilio:
		return NewTwilioProvider(f.logger, twilioAPIBaseURL, creds["account_sid"], creds["auth_token"], f.httpClient)
	case ProviderTelnyx:
		return NewTelnyxProvider(f.logger, telnyxAPIBaseURL, creds["api_key"], f.httpClient)
	default:
		return nil, fmt.Errorf("unknown provider %q", providerID)
	}
}
