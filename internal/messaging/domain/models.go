package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Direction of a message relative to the organization.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Value implements driver.Valuer for Direction.
func (d Direction) Value() (driver.Value, error) {
	return string(d), nil
}

// Scan implements sql.Scanner for Direction.
func (d *Direction) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan Direction: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	switch Direction(strVal) {
	case DirectionInbound, DirectionOutbound:
		*d = Direction(strVal)
		return nil
	default:
		return fmt.Errorf("unknown Direction value: %s", strVal)
	}
}

// Channel over which a message travels.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelVoice Channel = "voice"
)

// Value implements driver.Valuer for Channel.
func (c Channel) Value() (driver.Value, error) {
	return string(c), nil
}

// Scan implements sql.Scanner for Channel.
func (c *Channel) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan Channel: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	switch Channel(strVal) {
	case ChannelSMS, ChannelVoice:
		*c = Channel(strVal)
		return nil
	default:
		return fmt.Errorf("unknown Channel value: %s", strVal)
	}
}

// MessageStatus defines the possible states of a message.
// Outbound lifecycle: queued -> sent | error, exactly one transition.
// Inbound messages are created as received and never mutated.
type MessageStatus string

const (
	MessageStatusQueued   MessageStatus = "queued"
	MessageStatusSent     MessageStatus = "sent"
	MessageStatusError    MessageStatus = "error"
	MessageStatusReceived MessageStatus = "received"
)

// Value implements driver.Valuer for MessageStatus.
func (ms MessageStatus) Value() (driver.Value, error) {
	return string(ms), nil
}

// Scan implements sql.Scanner for MessageStatus.
func (ms *MessageStatus) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan MessageStatus: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	switch MessageStatus(strVal) {
	case MessageStatusQueued, MessageStatusSent, MessageStatusError, MessageStatusReceived:
		*ms = MessageStatus(strVal)
		return nil
	default:
		return fmt.Errorf("unknown MessageStatus value: %s", strVal)
	}
}

// Message is a single inbound or outbound communication attempt.
// Direction and channel are immutable after creation; for outbound messages
// only status, provider_message_id and error_message change, exactly once.
type Message struct {
	ID                string        `json:"id"`
	OrgID             string        `json:"org_id"`
	Direction         Direction     `json:"direction"`
	Channel           Channel       `json:"channel"`
	ToAddress         string        `json:"to"`
	FromAddress       string        `json:"from,omitempty"`
	Body              string        `json:"body"`
	Status            MessageStatus `json:"status"`
	ProviderMessageID *string       `json:"provider_message_id,omitempty"`
	ErrorMessage      *string       `json:"error,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// ProviderAccount is a tenant's credential/config bundle for one telephony
// vendor. SecretRef points at an encrypted blob; plaintext secrets are never
// persisted or logged.
type ProviderAccount struct {
	ID         string            `json:"id"`
	OrgID      string            `json:"org_id"`
	ProviderID string            `json:"provider_id"`
	Label      *string           `json:"label,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	SecretRef  string            `json:"secret_ref"`
	IsDefault  bool              `json:"is_default"`
	CreatedAt  time.Time         `json:"created_at"`
}

// PhoneNumber is an E.164 number bound to exactly one organization and
// optionally one provider account. The org binding is immutable after
// creation. Verified is set once, at registration, by an ownership check
// against the vendor API.
type PhoneNumber struct {
	ID                string    `json:"id"`
	OrgID             string    `json:"org_id"`
	ProviderAccountID *string   `json:"provider_account_id,omitempty"`
	E164              string    `json:"e164"`
	Verified          bool      `json:"verified"`
	CreatedAt         time.Time `json:"created_at"`
}

// AuditEvent is an append-only record of an action taken against an entity.
type AuditEvent struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"org_id"`
	ActorID    *string   `json:"actor_id,omitempty"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Membership links a user to the organization they act for.
type Membership struct {
	OrgID  string `json:"org_id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Audit actions written by this slice.
const (
	AuditActionMessageSent       = "message.sent"
	AuditActionMessageSendFailed = "message.send_failed"
	AuditActionProviderLinked    = "provider_account.created"
	AuditActionNumberRegistered  = "phone_number.registered"
)
