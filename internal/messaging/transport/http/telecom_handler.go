package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/middleware"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// SecretSaver encrypts and persists a provider secret bundle.
type SecretSaver interface {
	Save(ctx context.Context, orgID, providerID string, secrets map[string]string) (string, error)
}

// OwnershipVerifier runs the one-shot vendor ownership check for a number.
type OwnershipVerifier interface {
	VerifyOwnership(ctx context.Context, orgID, providerAccountID, e164 string) (bool, error)
}

// TelecomHandler exposes provider-account and phone-number management plus
// the org-scoped audit trail.
type TelecomHandler struct {
	accounts    repository.ProviderAccountRepository
	phones      repository.PhoneNumberRepository
	audits      repository.AuditEventRepository
	secretStore SecretSaver
	verifier    OwnershipVerifier
	db          repository.Querier
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewTelecomHandler creates a TelecomHandler.
func NewTelecomHandler(
	accounts repository.ProviderAccountRepository,
	phones repository.PhoneNumberRepository,
	audits repository.AuditEventRepository,
	secretStore SecretSaver,
	verifier OwnershipVerifier,
	db repository.Querier,
	validate *validator.Validate,
	logger *slog.Logger,
) *TelecomHandler {
	return &TelecomHandler{
		accounts:    accounts,
		phones:      phones,
		audits:      audits,
		secretStore: secretStore,
		verifier:    verifier,
		db:          db,
		validate:    validate,
		logger:      logger.With("handler", "telecom"),
	}
}

// RegisterRoutes registers telecom management routes with the given router.
func (h *TelecomHandler) RegisterRoutes(r chi.Router) {
	r.Post("/telecom/providers/accounts", h.handleCreateProviderAccount)
	r.Get("/telecom/providers/accounts", h.handleListProviderAccounts)
	r.Post("/telecom/phone-numbers", h.handleCreatePhoneNumber)
	r.Get("/telecom/phone-numbers", h.handleListPhoneNumbers)
	r.Get("/audit-events", h.handleListAuditEvents)
}

func (h *TelecomHandler) handleCreateProviderAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	membership, ok := middleware.MembershipFromContext(ctx)
	if !ok {
		writeErrorCode(w, http.StatusForbidden, "no_membership")
		return
	}

	var req CreateProviderAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		logger.WarnContext(ctx, "provider account request failed validation", "error", err)
		writeErrorCode(w, http.StatusBadRequest, "missing_fields")
		return
	}

	ref, err := h.secretStore.Save(ctx, membership.OrgID, req.ProviderID, req.Secrets)
	if err != nil {
		logger.ErrorContext(ctx, "failed to store provider secrets", "error", err, "provider", req.ProviderID)
		writeErrorCode(w, http.StatusInternalServerError, "internal_error")
		return
	}

	acc, err := h.accounts.Create(ctx, h.db, &domain.ProviderAccount{
		OrgID:      membership.OrgID,
		ProviderID: req.ProviderID,
		Label:      req.Label,
		Meta:       req.Meta,
		SecretRef:  ref,
		IsDefault:  req.IsDefault,
	})
	if err != nil {
		handleDomainError(w, logger, r, err)
		return
	}

	h.writeAudit(ctx, logger, membership, domain.AuditActionProviderLinked, "provider_account", acc.ID, req.ProviderID)
	writeJSON(w, http.StatusCreated, toProviderAccountResponse(acc))
}

func (h *TelecomHandler) handleListProviderAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	membership, ok := middleware.MembershipFromContext(ctx)
	if !ok {
		writeErrorCode(w, http.StatusForbidden, "no_membership")
		return
	}

	accounts, err := h.accounts.ListByOrg(ctx, h.db, membership.OrgID)
	if err != nil {
		handleDomainError(w, h.logger, r, err)
		return
	}
	resp := make([]ProviderAccountResponse, 0, len(accounts))
	for i := range accounts {
		resp = append(resp, toProviderAccountResponse(&accounts[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": resp})
}

func (h *TelecomHandler) handleCreatePhoneNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	membership, ok := middleware.MembershipFromContext(ctx)
	if !ok {
		writeErrorCode(w, http.StatusForbidden, "no_membership")
		return
	}

	var req CreatePhoneNumberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		logger.WarnContext(ctx, "phone number request failed validation", "error", err)
		writeErrorCode(w, http.StatusBadRequest, "missing_fields")
		return
	}

	// Ownership verification is one-shot, at registration time. A vendor
	// zero-match is a hard failure surfaced to the caller, not a row with
	// verified=false.
	verified := false
	if req.ProviderAccountID != nil {
		ok, err := h.verifier.VerifyOwnership(ctx, membership.OrgID, *req.ProviderAccountID, req.E164)
		if err != nil {
			if errors.Is(err, domain.ErrNumberNotFound) {
				logger.WarnContext(ctx, "ownership check rejected number", "e164", req.E164)
			}
			handleDomainError(w, logger, r, err)
			return
		}
		verified = ok
	}

	pn, err := h.phones.Create(ctx, h.db, &domain.PhoneNumber{
		OrgID:             membership.OrgID,
		ProviderAccountID: req.ProviderAccountID,
		E164:              req.E164,
		Verified:          verified,
	})
	if err != nil {
		handleDomainError(w, logger, r, err)
		return
	}

	h.writeAudit(ctx, logger, membership, domain.AuditActionNumberRegistered, "phone_number", pn.ID, pn.E164)
	writeJSON(w, http.StatusCreated, pn)
}

func (h *TelecomHandler) handleListPhoneNumbers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	membership, ok := middleware.MembershipFromContext(ctx)
	if !ok {
		writeErrorCode(w, http.StatusForbidden, "no_membership")
		return
	}

	numbers, err := h.phones.ListByOrg(ctx, h.db, membership.OrgID)
	if err != nil {
		handleDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phone_numbers": numbers})
}

func (h *TelecomHandler) handleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	membership, ok := middleware.MembershipFromContext(ctx)
	if !ok {
		writeErrorCode(w, http.StatusForbidden, "no_membership")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.audits.ListByOrg(ctx, h.db, membership.OrgID, limit)
	if err != nil {
		handleDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_events": events})
}

// writeAudit records a management action. Audit failures are logged, not
// surfaced: the primary row is already committed.
func (h *TelecomHandler) writeAudit(ctx context.Context, logger *slog.Logger, membership domain.Membership, action, entityType, entityID, detail string) {
	actor := membership.UserID
	err := h.audits.Create(ctx, h.db, &domain.AuditEvent{
		OrgID:      membership.OrgID,
		ActorID:    &actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to write audit event", "error", err, "action", action)
	}
}
