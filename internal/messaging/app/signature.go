package app

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
)

// TelnyxTimestampTolerance bounds how old a signed Telnyx webhook may be
// before it is treated as a replay.
const TelnyxTimestampTolerance = 5 * time.Minute

// VerifyTwilioSignature checks the X-Twilio-Signature header value against
// the request: base64(HMAC-SHA1(authToken, url + sorted(param name+value))).
// Comparison is constant-time. Returns domain.ErrSignatureInvalid on mismatch.
func VerifyTwilioSignature(authToken, requestURL string, params url.Values, signature string) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := requestURL
	for _, k := range keys {
		payload += k + params.Get(k)
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return domain.ErrSignatureInvalid
	}
	return nil
}

// VerifyTelnyxSignature checks Telnyx's Ed25519 webhook signature: the
// telnyx-signature-ed25519 header is a base64 signature over
// "<timestamp>|<raw body>" verifiable with the account's public key.
// Timestamps outside the tolerance window are rejected as replays.
func VerifyTelnyxSignature(publicKeyB64, signatureB64, timestamp string, body []byte, now time.Time) error {
	publicKey, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil || len(publicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad public key", domain.ErrSignatureInvalid)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", domain.ErrSignatureInvalid)
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > TelnyxTimestampTolerance || age < -TelnyxTimestampTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrSignatureInvalid)
	}

	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding", domain.ErrSignatureInvalid)
	}

	signed := append([]byte(timestamp+"|"), body...)
	if !ed25519.Verify(ed25519.PublicKey(publicKey), signed, signature) {
		return domain.ErrSignatureInvalid
	}
	return nil
}
