package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioAPIBaseURL = "https://api.twilio.com"

// TwilioProvider sends SMS through Twilio's REST API using a tenant's
// account SID and auth token.
type TwilioProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiBaseURL string
	accountSID string
	authToken  string
}

// NewTwilioProvider creates a Twilio-backed adapter. apiBaseURL is
// parameterized so tests can point it at a local server.
func NewTwilioProvider(logger *slog.Logger, apiBaseURL, accountSID, authToken string, httpClient *http.Client) (*TwilioProvider, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio credentials incomplete: account_sid and auth_token required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TwilioProvider{
		logger:     logger.With("provider", ProviderTwilio),
		httpClient: httpClient,
		apiBaseURL: strings.TrimSuffix(apiBaseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
	}, nil
}

func (p *TwilioProvider) Name() string { return ProviderTwilio }

type twilioMessageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	// Error payload fields (Twilio returns a different shape on 4xx/5xx).
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (p *TwilioProvider) SendSMS(ctx context.Context, req SendRequest) (*SendResponse, error) {
	p.logger.InfoContext(ctx, "submitting SMS to Twilio", "recipient", req.To, "internal_message_id", req.InternalMessageID)

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Body", req.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.apiBaseURL, p.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build twilio request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(p.accountSID, p.authToken)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read twilio response: %w", err)
	}

	var parsed twilioMessageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode twilio response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMsg := parsed.Message
		if errMsg == "" {
			errMsg = fmt.Sprintf("twilio returned status %d", resp.StatusCode)
		}
		p.logger.WarnContext(ctx, "Twilio declined message", "status_code", resp.StatusCode, "twilio_code", parsed.Code)
		return &SendResponse{
			Success:      false,
			StatusCode:   resp.StatusCode,
			ErrorMessage: errMsg,
			ProviderName: ProviderTwilio,
		}, nil
	}

	return &SendResponse{
		ProviderMessageID: parsed.SID,
		Success:           true,
		StatusCode:        resp.StatusCode,
		ProviderName:      ProviderTwilio,
	}, nil
}

type twilioNumberListResponse struct {
	IncomingPhoneNumbers []struct {
		SID         string `json:"sid"`
		PhoneNumber string `json:"phone_number"`
	} `json:"incoming_phone_numbers"`
}

// LookupNumber queries the account's incoming phone numbers filtered to the
// given E.164 and reports whether at least one match exists.
func (p *TwilioProvider) LookupNumber(ctx context.Context, e164 string) (bool, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/IncomingPhoneNumbers.json?PhoneNumber=%s",
		p.apiBaseURL, p.accountSID, url.QueryEscape(e164))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build twilio lookup request: %w", err)
	}
	httpReq.SetBasicAuth(p.accountSID, p.authToken)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("twilio lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("twilio lookup returned status %d", resp.StatusCode)
	}

	var parsed twilioNumberListResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return false, fmt.Errorf("decode twilio lookup response: %w", err)
	}
	return len(parsed.IncomingPhoneNumbers) > 0, nil
}
