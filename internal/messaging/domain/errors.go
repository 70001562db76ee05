package domain

import (
	"errors"
	"fmt"
)

// Closed error set for the messaging slice. Handlers map these to HTTP
// statuses and stable error codes at the transport boundary; nothing below
// the boundary deals in status codes or ad hoc strings.
var (
	// ErrMissingFields indicates a request was missing required fields.
	ErrMissingFields = errors.New("missing required fields")

	// ErrUnauthorized indicates the caller could not be authenticated.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoMembership indicates an authenticated caller with no organization.
	ErrNoMembership = errors.New("caller has no organization membership")

	// ErrNoProviderConfigured indicates an organization with zero provider accounts.
	ErrNoProviderConfigured = errors.New("no telephony provider configured for organization")

	// ErrNumberNotFound indicates the vendor reported zero matches for a
	// number during ownership verification. Callers must treat this as a
	// hard failure, never as "unverified but allowed".
	ErrNumberNotFound = errors.New("number not found in provider account")

	// ErrUnknownDestination indicates an inbound destination number that maps
	// to no organization.
	ErrUnknownDestination = errors.New("destination number not mapped to an organization")

	// ErrNumberInUse indicates an E.164 that is already registered. Numbers
	// bind to exactly one organization, so a second registration is rejected
	// rather than reassigned.
	ErrNumberInUse = errors.New("phone number already registered")

	// ErrDecryptionFailed indicates a secret blob could not be authenticated
	// and decrypted (missing/rotated key or corrupt ciphertext).
	ErrDecryptionFailed = errors.New("secret decryption failed")

	// ErrSignatureInvalid indicates a webhook signature that failed verification.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrMessageNotFound indicates a message row that does not exist.
	ErrMessageNotFound = errors.New("message not found")
)

// VendorError carries an upstream vendor failure. The raw vendor message is
// recorded on the message row and surfaced to the caller as a 502; it is
// never retried or reclassified.
type VendorError struct {
	Provider string
	Message  string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("vendor %s: %s", e.Provider, e.Message)
}
