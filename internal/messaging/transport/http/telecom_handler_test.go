package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	httptransport "github.com/ghostcrm/messaging/internal/messaging/transport/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubSecretSaver struct {
	ref   string
	err   error
	saved []map[string]string
}

func (s *stubSecretSaver) Save(ctx context.Context, orgID, providerID string, secrets map[string]string) (string, error) {
	s.saved = append(s.saved, secrets)
	if s.err != nil {
		return "", s.err
	}
	return s.ref, nil
}

type stubVerifier struct {
	verified bool
	err      error
	calls    int
}

func (s *stubVerifier) VerifyOwnership(ctx context.Context, orgID, providerAccountID, e164 string) (bool, error) {
	s.calls++
	return s.verified, s.err
}

type telecomFixture struct {
	router   chi.Router
	accounts *MockProviderAccountRepository
	phones   *MockPhoneNumberRepository
	audits   *MockAuditEventRepository
	saver    *stubSecretSaver
	verifier *stubVerifier
}

func newTelecomFixture(t *testing.T) *telecomFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts := new(MockProviderAccountRepository)
	phones := new(MockPhoneNumberRepository)
	audits := new(MockAuditEventRepository)
	saver := &stubSecretSaver{ref: "sec_org-1_1_abcd"}
	verifier := &stubVerifier{verified: true}

	handler := httptransport.NewTelecomHandler(accounts, phones, audits, saver, verifier, nil, validator.New(), logger)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return &telecomFixture{router: router, accounts: accounts, phones: phones, audits: audits, saver: saver, verifier: verifier}
}

func TestTelecomHandler_CreateProviderAccount(t *testing.T) {
	t.Run("creates account with encrypted secret ref", func(t *testing.T) {
		f := newTelecomFixture(t)
		f.accounts.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(acc *domain.ProviderAccount) bool {
			return acc.OrgID == "org-1" && acc.ProviderID == "twilio" && acc.SecretRef == f.saver.ref
		})).Return(&domain.ProviderAccount{ID: "acc-1", OrgID: "org-1", ProviderID: "twilio", SecretRef: f.saver.ref}, nil).Once()
		f.audits.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(ev *domain.AuditEvent) bool {
			return ev.Action == domain.AuditActionProviderLinked && ev.EntityID == "acc-1"
		})).Return(nil).Once()

		body, _ := json.Marshal(httptransport.CreateProviderAccountRequest{
			ProviderID: "twilio",
			Secrets:    map[string]string{"account_sid": "AC1", "auth_token": "tok"},
		})
		req := httptest.NewRequest("POST", "/telecom/providers/accounts", bytes.NewReader(body)).
			WithContext(ctxWithMembership("org-1", "user-1"))
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		// Plaintext secrets must never be echoed back.
		assert.NotContains(t, rr.Body.String(), "tok")
		assert.Contains(t, rr.Body.String(), f.saver.ref)
		f.accounts.AssertExpectations(t)
		f.audits.AssertExpectations(t)
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		f := newTelecomFixture(t)
		body, _ := json.Marshal(httptransport.CreateProviderAccountRequest{
			ProviderID: "smoke-signals",
			Secrets:    map[string]string{"k": "v"},
		})
		req := httptest.NewRequest("POST", "/telecom/providers/accounts", bytes.NewReader(body)).
			WithContext(ctxWithMembership("org-1", "user-1"))
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, f.saver.saved)
	})

	t.Run("missing secrets is rejected", func(t *testing.T) {
		f := newTelecomFixture(t)
		body, _ := json.Marshal(httptransport.CreateProviderAccountRequest{ProviderID: "twilio"})
		req := httptest.NewRequest("POST", "/telecom/providers/accounts", bytes.NewReader(body)).
			WithContext(ctxWithMembership("org-1", "user-1"))
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "missing_fields")
	})
}

func TestTelecomHandler_CreatePhoneNumber(t *testing.T) {
	accID := "acc-1"

	t.Run("verifies ownership when bound to an account", func(t *testing.T) {
		f := newTelecomFixture(t)
		f.phones.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(pn *domain.PhoneNumber) bool {
			return pn.OrgID == "org-1" && pn.E164 == "+15550001111" && pn.Verified
		})).Return(&domain.PhoneNumber{ID: "pn-1", OrgID: "org-1", E164: "+15550001111", Verified: true}, nil).Once()
		f.audits.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(ev *domain.AuditEvent) bool {
			return ev.Action == domain.AuditActionNumberRegistered
		})).Return(nil).Once()

		body, _ := json.Marshal(httptransport.CreatePhoneNumberRequest{E164: "+15550001111", ProviderAccountID: &accID})
		req := httptest.NewRequest("POST", "/telecom/phone-numbers", bytes.NewReader(body)).
			WithContext(ctxWithMembership("org-1", "user-1"))
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, 1, f.verifier.calls)
		f.phones.AssertExpectations(t)
	})

	t.Run("vendor zero match rejects registration", func(t *testing.T) {
		f := newTelecomFixture(t)
		f.verifier.verified = false
		f.verifier.err = domain.ErrNumberNotFound

		body, _ := json.Marshal(httptransport.CreatePhoneNumberRequest{E164: "+15550001111", ProviderAccountID: &accID})
		req := httptest.NewRequest("POST", "/telecom/phone-numbers", bytes.NewReader(body)).
			WithContext(ctxWithMembership("org-1", "user-1"))
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "number_not_found")
		f.phones.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already registered number conflicts", func(t *testing.T) {
		f := newTelecomFixture(t)
		f.phones.On("Create", mock.Anything, mock.Anything, mock.Anything).
			Return((*domain.PhoneNumber)(nil), domain.ErrNumberInUse).Once()

		body, _ := json.Marshal(httptransport.CreatePhoneNumberRequest{E164: "+15550002222"})
		req := httptest.NewRequest("POST", "/telecom/phone-numbers", bytes.NewReader(body)).
			WithContext(ctxWithMembership("org-1", "user-1"))
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusConflict, rr.Code)
		assert.Contains(t, rr.Body.String(), "number_in_use")
		f.audits.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unbound number skips verification", func(t *testing.T) {
		f := newTelecomFixture(t)
		f.phones.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(pn *domain.PhoneNumber) bool {
			return !pn.Verified && pn.ProviderAccountID == nil
		})).Return(&domain.PhoneNumber{ID: "pn-2", OrgID: "org-1", E164: "+15550002222"}, nil).Once()
		f.audits.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		body, _ := json.Marshal(httptransport.CreatePhoneNumberRequest{E164: "+15550002222"})
		req := httptest.NewRequest("POST", "/telecom/phone-numbers", bytes.NewReader(body)).
			WithContext(ctxWithMembership("org-1", "user-1"))
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, 0, f.verifier.calls)
		f.phones.AssertExpectations(t)
	})
}

func TestTelecomHandler_ListAuditEvents(t *testing.T) {
	f := newTelecomFixture(t)
	f.audits.On("ListByOrg", mock.Anything, mock.Anything, "org-1", 0).
		Return([]domain.AuditEvent{{ID: "ev-1", OrgID: "org-1", Action: domain.AuditActionMessageSent}}, nil).Once()

	req := httptest.NewRequest("GET", "/audit-events", nil).WithContext(ctxWithMembership("org-1", "user-1"))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ev-1")
	f.audits.AssertExpectations(t)
}
