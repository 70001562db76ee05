package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTwilioProvider_Name(t *testing.T) {
	p, err := NewTwilioProvider(discardLogger(), "http://localhost", "AC123", "token", nil)
	require.NoError(t, err)
	assert.Equal(t, "twilio", p.Name())
}

func TestNewTwilioProvider_RequiresCredentials(t *testing.T) {
	_, err := NewTwilioProvider(discardLogger(), "http://localhost", "", "token", nil)
	assert.Error(t, err)

	_, err = NewTwilioProvider(discardLogger(), "http://localhost", "AC123", "", nil)
	assert.Error(t, err)
}

func TestTwilioProvider_SendSMS_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		sid, token, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", sid)
		assert.Equal(t, "secret-token", token)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15551234567", r.PostForm.Get("To"))
		assert.Equal(t, "+15557654321", r.PostForm.Get("From"))
		assert.Equal(t, "hi there", r.PostForm.Get("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"sid": "SM0001", "status": "queued"})
	}))
	defer server.Close()

	p, err := NewTwilioProvider(discardLogger(), server.URL, "AC123", "secret-token", server.Client())
	require.NoError(t, err)

	resp, err := p.SendSMS(context.Background(), SendRequest{
		InternalMessageID: "msg-1",
		To:                "+15551234567",
		From:              "+15557654321",
		Body:              "hi there",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "SM0001", resp.ProviderMessageID)
	assert.Equal(t, "twilio", resp.ProviderName)
}

func TestTwilioProvider_SendSMS_VendorDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"code": 21211, "message": "Invalid 'To' Phone Number"})
	}))
	defer server.Close()

	p, err := NewTwilioProvider(discardLogger(), server.URL, "AC123", "secret-token", server.Client())
	require.NoError(t, err)

	resp, err := p.SendSMS(context.Background(), SendRequest{To: "bogus", From: "+1", Body: "x"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid 'To' Phone Number", resp.ErrorMessage)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTwilioProvider_LookupNumber(t *testing.T) {
	present := map[string]bool{"+15551234567": true}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/IncomingPhoneNumbers.json", r.URL.Path)
		number := r.URL.Query().Get("PhoneNumber")

		w.Header().Set("Content-Type", "application/json")
		if present[number] {
			json.NewEncoder(w).Encode(map[string]any{
				"incoming_phone_numbers": []map[string]string{{"sid": "PN1", "phone_number": number}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"incoming_phone_numbers": []map[string]string{}})
	}))
	defer server.Close()

	p, err := NewTwilioProvider(discardLogger(), server.URL, "AC123", "secret-token", server.Client())
	require.NoError(t, err)

	found, err := p.LookupNumber(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = p.LookupNumber(context.Background(), "+15550000000")
	require.NoError(t, err)
	assert.False(t, found)
}
