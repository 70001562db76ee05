package provider

import (
	"bytes"
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

const telnyxAPIBaseURL = "https://api.telnyx.com"

// TelnyxProvider sends SMS through Telnyx's v2 REST API using a tenant's
// API key.
type TelnyxProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiBaseURL string
	apiKey     string
}

// NewTelnyxProvider creates a Telnyx-backed adapter.
func NewTelnyxProvider(logger *slog.Logger, apiBaseURL, apiKey string, httpClient *http.Client) (*TelnyxProvider, error) {
	if apiKey == "" {
		return nil, errors.New("telnyx credentials incomplete: api_key required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TelnyxProvider{
		logger:     logger.With("provider", ProviderTelnyx),
		httpClient: httpClient,
		apiBaseURL: strings.TrimSuffix(apiBaseURL, "/"),
		apiKey:     apiKey,
	}, nil
}

func (p *TelnyxProvider) Name() string { return ProviderTelnyx }

type telnyxSendRequestBody struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

type telnyxSendResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (p *TelnyxProvider) SendSMS(ctx context.Context, req SendRequest) (*SendResponse, error) {
	p.logger.InfoContext(ctx, "submitting SMS to Telnyx", "recipient", req.To, "internal_message_id", req.InternalMessageID)

	reqBody := telnyxSendRequestBody{From: req.From, To: req.To, Text: req.Body}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal telnyx request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBaseURL+"/v2/messages", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("build telnyx request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("telnyx request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed telnyxSendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode telnyx response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMsg := fmt.Sprintf("telnyx returned status %d", resp.StatusCode)
		if len(parsed.Errors) > 0 {
			errMsg = parsed.Errors[0].Detail
			if errMsg == "" {
				errMsg = parsed.Errors[0].Title
			}
		}
		p.logger.WarnContext(ctx, "Telnyx declined message", "status_code", resp.StatusCode)
		return &SendResponse{
			Success:      false,
			StatusCode:   resp.StatusCode,
			ErrorMessage: errMsg,
			ProviderName: ProviderTelnyx,
		}, nil
	}

	return &SendResponse{
		ProviderMessageID: parsed.Data.ID,
		Success:           true,
		StatusCode:        resp.StatusCode,
		ProviderName:      ProviderTelnyx,
	}, nil
}

type telnyxNumberListResponse struct {
	Data []struct {
		ID          string `json:"id"`
		PhoneNumber string `json:"phone_number"`
	} `json:"data"`
}

// LookupNumber filters the account's numbers by the given E.164 and reports
// whether at least one match exists.
func (p *TelnyxProvider) LookupNumber(ctx context.Context, e164 string) (bool, error) {
	endpoint := fmt.Sprintf("%s/v2/phone_numbers?filter[phone_number]=%s", p.apiBaseURL, url.QueryEscape(e164))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build telnyx lookup request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("telnyx lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("telnyx lookup returned status %d", resp.StatusCode)
	}

	var parsed telnyxNumberListResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return false, fmt.Errorf("decode telnyx lookup response: %w", err)
	}
	return len(parsed.Data) > 0, nil
}
