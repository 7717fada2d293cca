package domain

import "time"

// Direction marks which side of the conversation a message came from.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// ConversationMessage is one message exchanged with a club contact.
// The conversation is append-only and ordered by timestamp ascending; it is
// the audit trail of the outreach relationship and is never mutated.
type ConversationMessage struct {
	ID           string    `json:"id" db:"id"`
	ClubName     string    `json:"club_name" db:"club_name"`
	ContactName  string    `json:"contact_name" db:"contact_name"`
	ContactEmail string    `json:"contact_email" db:"contact_email"`
	Direction    Direction `json:"direction" db:"direction"`
	Subject      string    `json:"subject" db:"subject"`
	Content      string    `json:"content" db:"content"`
	Sender       string    `json:"sender" db:"sender"`

	// TransportMessageID is the mail transport's message ID when known.
	TransportMessageID string `json:"transport_message_id" db:"transport_message_id"`

	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
