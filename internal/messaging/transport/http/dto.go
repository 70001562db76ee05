package http

import (
	"time"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
)

// SendMessageRequest DTO for POST /api/messages/send.
type SendMessageRequest struct {
	To   string `json:"to" validate:"required,e164"`
	From string `json:"from,omitempty" validate:"omitempty,e164"`
	Body string `json:"body" validate:"required,min=1"`
}

// SendMessageResponse DTO.
type SendMessageResponse struct {
	OK         bool   `json:"ok"`
	MessageID  string `json:"message_id,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CreateProviderAccountRequest DTO for POST /api/telecom/providers/accounts.
// Secrets are encrypted before persistence and never echoed back.
type CreateProviderAccountRequest struct {
	ProviderID string            `json:"provider_id" validate:"required,oneof=twilio telnyx"`
	Label      *string           `json:"label,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	IsDefault  bool              `json:"is_default,omitempty"`
	Secrets    map[string]string `json:"secrets" validate:"required,min=1"`
}

// ProviderAccountResponse DTO; mirrors the account row minus secret material.
type ProviderAccountResponse struct {
	ID         string            `json:"id"`
	OrgID      string            `json:"org_id"`
	ProviderID string            `json:"provider_id"`
	Label      *string           `json:"label,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	SecretRef  string            `json:"secret_ref"`
	IsDefault  bool              `json:"is_default"`
	CreatedAt  time.Time         `json:"created_at"`
}

func toProviderAccountResponse(acc *domain.ProviderAccount) ProviderAccountResponse {
	return ProviderAccountResponse{
		ID:         acc.ID,
		OrgID:      acc.OrgID,
		ProviderID: acc.ProviderID,
		Label:      acc.Label,
		Meta:       acc.Meta,
		SecretRef:  acc.SecretRef,
		IsDefault:  acc.IsDefault,
		CreatedAt:  acc.CreatedAt,
	}
}

// CreatePhoneNumberRequest DTO for POST /api/telecom/phone-numbers.
type CreatePhoneNumberRequest struct {
	E164              string  `json:"e164" validate:"required,e164"`
	ProviderAccountID *string `json:"provider_account_id,omitempty"`
}
