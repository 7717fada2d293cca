package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/photoreach/club-outreach/internal/domain"
)

// ConversationRepo stores the append-only conversation log. Rows are never
// updated or deleted.
type ConversationRepo struct {
	db *sql.DB
}

// NewConversationRepo creates the repository.
func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const insertConversationSQL = `
	INSERT INTO conversation_messages (
		id, club_name, contact_name, contact_email,
		direction, subject, content, sender,
		transport_message_id, timestamp
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func conversationArgs(m *domain.ConversationMessage) []interface{} {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return []interface{}{
		m.ID, m.ClubName, m.ContactName, m.ContactEmail,
		m.Direction, m.Subject, m.Content, m.Sender,
		m.TransportMessageID, m.Timestamp,
	}
}

// Append adds one message to the log. A missing ID is generated.
func (r *ConversationRepo) Append(ctx context.Context, m *domain.ConversationMessage) error {
	_, err := r.db.ExecContext(ctx, insertConversationSQL, conversationArgs(m)...)
	if err != nil {
		return &domain.StorageError{Op: "append conversation", Err: err}
	}
	return nil
}

// ListByClub returns the club's conversation oldest first.
func (r *ConversationRepo) ListByClub(ctx context.Context, clubName string) ([]domain.ConversationMessage, error) {
	query := `
		SELECT id, club_name, contact_name, contact_email,
		       direction, subject, content, sender,
		       transport_message_id, timestamp
		FROM conversation_messages
		WHERE club_name = ?
		ORDER BY timestamp`

	rows, err := r.db.QueryContext(ctx, query, clubName)
	if err != nil {
		return nil, &domain.StorageError{Op: "list conversation", Err: err}
	}
	defer rows.Close()

	var messages []domain.ConversationMessage
	for rows.Next() {
		var m domain.ConversationMessage
		if err := rows.Scan(
			&m.ID, &m.ClubName, &m.ContactName, &m.ContactEmail,
			&m.Direction, &m.Subject, &m.Content, &m.Sender,
			&m.TransportMessageID, &m.Timestamp,
		); err != nil {
			return nil, &domain.StorageError{Op: "scan conversation", Err: err}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
