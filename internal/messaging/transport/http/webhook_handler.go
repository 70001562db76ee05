package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ghostcrm/messaging/internal/messaging/app"
	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/provider"
	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
)

const maxWebhookBodyBytes = 1 << 20

// WebhookHandler terminates vendor callbacks for inbound SMS. Webhook
// requests are unauthenticated; trust comes from the per-tenant signature
// check, so the destination number must resolve before anything is persisted.
type WebhookHandler struct {
	inbound       *app.InboundProcessor
	publicBaseURL string
	logger        *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. publicBaseURL is the externally
// visible scheme and host vendors were given, used to reconstruct the signed
// Twilio URL behind proxies.
func NewWebhookHandler(inbound *app.InboundProcessor, publicBaseURL string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		inbound:       inbound,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With("handler", "webhook"),
	}
}

// RegisterRoutes registers the vendor callback routes with the given router.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/telecom/twilio/inbound-sms", h.handleTwilioInbound)
	r.Post("/telecom/telnyx/inbound-sms", h.handleTelnyxInbound)
}

func (h *WebhookHandler) handleTwilioInbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("vendor", provider.ProviderTwilio, "request_id", chi_middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	if err := r.ParseForm(); err != nil {
		app.CountWebhookRejected(provider.ProviderTwilio, "payload")
		writeErrorCode(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	to := r.PostForm.Get("To")
	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")
	if to == "" || from == "" {
		app.CountWebhookRejected(provider.ProviderTwilio, "payload")
		writeErrorCode(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	pn, err := h.inbound.ResolveDestination(ctx, to)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownDestination) {
			app.CountWebhookRejected(provider.ProviderTwilio, "unknown_destination")
			logger.WarnContext(ctx, "webhook for unmapped destination", "to", to)
			writeErrorCode(w, http.StatusNotFound, "unknown_destination")
			return
		}
		handleDomainError(w, logger, r, err)
		return
	}

	creds, err := h.inbound.VendorCredentials(ctx, pn, provider.ProviderTwilio)
	if err != nil {
		handleDomainError(w, logger, r, err)
		return
	}

	signedURL := h.publicBaseURL + r.URL.RequestURI()
	if err := app.VerifyTwilioSignature(creds["auth_token"], signedURL, r.PostForm, r.Header.Get("X-Twilio-Signature")); err != nil {
		app.CountWebhookRejected(provider.ProviderTwilio, "signature")
		logger.WarnContext(ctx, "webhook failed signature check", "to", to)
		writeErrorCode(w, http.StatusForbidden, "invalid_signature")
		return
	}

	msg, err := h.inbound.RecordInbound(ctx, pn, provider.ProviderTwilio, from, body)
	if err != nil {
		handleDomainError(w, logger, r, err)
		return
	}

	logger.InfoContext(ctx, "inbound message recorded", "message_id", msg.ID, "org_id", pn.OrgID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// telnyxEndpoint is a Telnyx address that may arrive as a bare string or as
// an object carrying phone_number.
type telnyxEndpoint struct {
	PhoneNumber string
}

func (e *telnyxEndpoint) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.PhoneNumber = s
		return nil
	}
	var obj struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.PhoneNumber = obj.PhoneNumber
	return nil
}

// telnyxEndpoints accepts a single endpoint or an array of them.
type telnyxEndpoints []telnyxEndpoint

func (es *telnyxEndpoints) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []telnyxEndpoint
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*es = list
		return nil
	}
	var one telnyxEndpoint
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*es = telnyxEndpoints{one}
	return nil
}

type telnyxWebhookBody struct {
	Data struct {
		EventType string `json:"event_type"`
		Payload   struct {
			From telnyxEndpoint  `json:"from"`
			To   telnyxEndpoints `json:"to"`
			Text string          `json:"text"`
		} `json:"payload"`
	} `json:"data"`
}

func (h *WebhookHandler) handleTelnyxInbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("vendor", provider.ProviderTelnyx, "request_id", chi_middleware.GetReqID(ctx))

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		app.CountWebhookRejected(provider.ProviderTelnyx, "payload")
		writeErrorCode(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	var payload telnyxWebhookBody
	if err := json.Unmarshal(raw, &payload); err != nil {
		app.CountWebhookRejected(provider.ProviderTelnyx, "payload")
		writeErrorCode(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	from := payload.Data.Payload.From.PhoneNumber
	var to string
	if len(payload.Data.Payload.To) > 0 {
		to = payload.Data.Payload.To[0].PhoneNumber
	}
	if to == "" || from == "" {
		app.CountWebhookRejected(provider.ProviderTelnyx, "payload")
		writeErrorCode(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	pn, err := h.inbound.ResolveDestination(ctx, to)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownDestination) {
			app.CountWebhookRejected(provider.ProviderTelnyx, "unknown_destination")
			logger.WarnContext(ctx, "webhook for unmapped destination", "to", to)
			writeErrorCode(w, http.StatusNotFound, "unknown_destination")
			return
		}
		handleDomainError(w, logger, r, err)
		return
	}

	creds, err := h.inbound.VendorCredentials(ctx, pn, provider.ProviderTelnyx)
	if err != nil {
		handleDomainError(w, logger, r, err)
		return
	}

	err = app.VerifyTelnyxSignature(
		creds["public_key"],
		r.Header.Get("telnyx-signature-ed25519"),
		r.Header.Get("telnyx-timestamp"),
		raw,
		time.Now(),
	)
	if err != nil {
		app.CountWebhookRejected(provider.ProviderTelnyx, "signature")
		logger.WarnContext(ctx, "webhook failed signature check", "to", to)
		writeErrorCode(w, http.StatusForbidden, "invalid_signature")
		return
	}

	msg, err := h.inbound.RecordInbound(ctx, pn, provider.ProviderTelnyx, from, payload.Data.Payload.Text)
	if err != nil {
		handleDomainError(w, logger, r, err)
		return
	}

	logger.InfoContext(ctx, "inbound message recorded", "message_id", msg.ID, "org_id", pn.OrgID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
