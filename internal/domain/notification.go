package domain

import "time"

// NotificationKind classifies an operator notification.
type NotificationKind string

const (
	// NotifyPositiveResponse flags a positive reply for human review before
	// the next stage email goes out.
	NotifyPositiveResponse NotificationKind = "positive_response"

	// NotifyFollowUpDue flags a club whose sent email has gone unanswered
	// past the follow-up window.
	NotifyFollowUpDue NotificationKind = "follow_up_due"
)

// Notification is an item in the operator's review queue.
type Notification struct {
	ID        string           `json:"id" db:"id"`
	ClubName  string           `json:"club_name" db:"club_name"`
	Kind      NotificationKind `json:"kind" db:"kind"`
	Message   string           `json:"message" db:"message"`
	Read      bool             `json:"read" db:"is_read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}
