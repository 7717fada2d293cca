// Package api exposes the outreach operations over HTTP: generation and
// sending, response detection, manual response entry, status projections,
// conversations, notifications and campaign stats.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/photoreach/club-outreach/internal/brevo"
	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/personalizer"
	"github.com/photoreach/club-outreach/internal/reconcile"
	"github.com/photoreach/club-outreach/internal/repository/sqlite"
	"github.com/photoreach/club-outreach/internal/roster"
)

// Sender delivers generated emails over the mail transport.
type Sender interface {
	Send(ctx context.Context, req brevo.SendRequest) (string, error)
}

// ResponseStore reads stored responses and resolves their processed flag.
type ResponseStore interface {
	List(ctx context.Context) ([]domain.ResponseRecord, error)
	ListByClub(ctx context.Context, clubName string) ([]domain.ResponseRecord, error)
	MarkProcessed(ctx context.Context, responseID string) error
}

// ResearchStore reads and evicts the cached club research.
type ResearchStore interface {
	List(ctx context.Context) ([]domain.ClubResearch, error)
	Delete(ctx context.Context, clubName string) error
}

// EmailReader lists a club's generated emails.
type EmailReader interface {
	ListByClub(ctx context.Context, clubName string) ([]domain.GeneratedEmail, error)
}

// ConversationReader lists a club's conversation log.
type ConversationReader interface {
	ListByClub(ctx context.Context, clubName string) ([]domain.ConversationMessage, error)
}

// NotificationStore reads and resolves the operator review queue.
type NotificationStore interface {
	ListUnread(ctx context.Context) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// StatsReader computes the dashboard rollup.
type StatsReader interface {
	Summary(ctx context.Context) (*sqlite.Summary, error)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	engine        *reconcile.Engine
	personalizer  *personalizer.Personalizer
	sender        Sender
	roster        *roster.Roster
	responses     ResponseStore
	conversations ConversationReader
	notifications NotificationStore
	stats         StatsReader
	research      ResearchStore
	emailLog      EmailReader
}

// NewHandlers creates the handler set.
func NewHandlers(engine *reconcile.Engine, p *personalizer.Personalizer, sender Sender,
	r *roster.Roster, responses ResponseStore, conversations ConversationReader,
	notifications NotificationStore, stats StatsReader, research ResearchStore,
	emailLog EmailReader) *Handlers {

	return &Handlers{
		engine:        engine,
		personalizer:  p,
		sender:        sender,
		roster:        r,
		responses:     responses,
		conversations: conversations,
		notifications: notifications,
		stats:         stats,
		research:      research,
		emailLog:      emailLog,
	}
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrClubNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTransportUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrProviderQuotaExceeded), errors.Is(err, domain.ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func clubParam(r *http.Request) string {
	club := chi.URLParam(r, "club")
	if decoded, err := url.PathUnescape(club); err == nil {
		club = decoded
	}
	return club
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"clubs":     h.roster.Len(),
	})
}

// CheckResponses runs one detection pass on demand.
func (h *Handlers) CheckResponses(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.CheckForNewResponses(r.Context())
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// ListResponses returns all detected responses, most recent first.
func (h *Handlers) ListResponses(w http.ResponseWriter, r *http.Request) {
	records, err := h.responses.List(r.Context())
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	if records == nil {
		records = []domain.ResponseRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

type manualResponseRequest struct {
	ClubName     string `json:"club_name"`
	ContactEmail string `json:"contact_email"`
	EmailType    string `json:"email_type"`
	ResponseType string `json:"response_type"`
	Content      string `json:"content"`
	ResponseDate string `json:"response_date,omitempty"`
}

// AddManualResponse records an operator-logged response.
func (h *Handlers) AddManualResponse(w http.ResponseWriter, r *http.Request) {
	var req manualResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ClubName == "" {
		respondError(w, http.StatusBadRequest, "club_name is required")
		return
	}

	emailType, err := domain.ParseEmailType(req.EmailType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	responseType, err := domain.ParseResponseType(req.ResponseType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry := reconcile.ManualEntry{
		ClubName:     req.ClubName,
		ContactEmail: req.ContactEmail,
		EmailType:    emailType,
		ResponseType: responseType,
		Content:      req.Content,
	}
	if req.ResponseDate != "" {
		date, err := brevo.ParseEventDate(req.ResponseDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		entry.Date = date
	}

	rec, err := h.engine.AddManualResponse(r.Context(), entry)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// MarkResponseProcessed flags a response as handled by the operator.
func (h *Handlers) MarkResponseProcessed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}

	if err := h.responses.MarkProcessed(r.Context(), id); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// ListResearch returns every cached research row.
func (h *Handlers) ListResearch(w http.ResponseWriter, r *http.Request) {
	rows, err := h.research.List(r.Context())
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	if rows == nil {
		rows = []domain.ClubResearch{}
	}
	respondJSON(w, http.StatusOK, rows)
}

// DeleteResearch evicts a club's cached research so the next generation runs
// fresh, without waiting for expiry.
func (h *Handlers) DeleteResearch(w http.ResponseWriter, r *http.Request) {
	club, err := h.roster.Lookup(clubParam(r))
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	if err := h.research.Delete(r.Context(), club.Name); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "club_name": club.Name})
}

// ListClubEmails returns a club's generated emails across all types.
func (h *Handlers) ListClubEmails(w http.ResponseWriter, r *http.Request) {
	club, err := h.roster.Lookup(clubParam(r))
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	emails, err := h.emailLog.ListByClub(r.Context(), club.Name)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	if emails == nil {
		emails = []domain.GeneratedEmail{}
	}
	respondJSON(w, http.StatusOK, emails)
}

// GetClubStatus returns the projected status and pipeline stage for a club.
func (h *Handlers) GetClubStatus(w http.ResponseWriter, r *http.Request) {
	club := clubParam(r)

	status, err := h.engine.ClubStatus(r.Context(), club)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	stage, err := h.engine.Stage(r.Context(), club)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"club_name": club,
		"status":    status,
		"stage":     stage,
	})
}

// ListClubResponses returns one club's responses.
func (h *Handlers) ListClubResponses(w http.ResponseWriter, r *http.Request) {
	club, err := h.roster.Lookup(clubParam(r))
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	records, err := h.responses.ListByClub(r.Context(), club.Name)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	if records == nil {
		records = []domain.ResponseRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

// GetConversation returns a club's conversation log, oldest first.
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	club, err := h.roster.Lookup(clubParam(r))
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	messages, err := h.conversations.ListByClub(r.Context(), club.Name)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	if messages == nil {
		messages = []domain.ConversationMessage{}
	}
	respondJSON(w, http.StatusOK, messages)
}

// ListClubs returns the roster with projected statuses.
func (h *Handlers) ListClubs(w http.ResponseWriter, r *http.Request) {
	type clubView struct {
		domain.Club
		Status domain.ClubStatus `json:"status"`
	}

	clubs := h.roster.Clubs()
	out := make([]clubView, 0, len(clubs))
	for _, club := range clubs {
		status, err := h.engine.ClubStatus(r.Context(), club.Name)
		if err != nil {
			respondError(w, statusForError(err), err.Error())
			return
		}
		out = append(out, clubView{Club: club, Status: status})
	}
	respondJSON(w, http.StatusOK, out)
}

type generateRequest struct {
	ClubName      string `json:"club_name"`
	EmailType     string `json:"email_type"`
	ForceResearch bool   `json:"force_research,omitempty"`
}

// GenerateEmail runs research (cached or fresh) and content generation for a
// club and stores the result.
func (h *Handlers) GenerateEmail(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	emailType, err := domain.ParseEmailType(req.EmailType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	email, err := h.personalizer.Generate(r.Context(), req.ClubName, emailType, req.ForceResearch)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, email)
}

type sendEmailRequest struct {
	ClubName  string `json:"club_name"`
	EmailType string `json:"email_type"`
	Subject   string `json:"subject"`
}

// SendEmail delivers the stored generated email for a club and records the
// send in the conversation log.
func (h *Handlers) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	emailType, err := domain.ParseEmailType(req.EmailType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Subject == "" {
		respondError(w, http.StatusBadRequest, "subject is required")
		return
	}

	club, err := h.roster.Lookup(req.ClubName)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	if club.ContactEmail == "" {
		respondError(w, http.StatusUnprocessableEntity, "club has no contact email")
		return
	}

	email, err := h.personalizer.Get(r.Context(), club.Name, emailType)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	if email == nil {
		respondError(w, http.StatusConflict, "email has not been generated yet")
		return
	}

	messageID, err := h.sender.Send(r.Context(), brevo.SendRequest{
		ToEmail:   club.ContactEmail,
		ToName:    club.ContactName,
		Subject:   req.Subject,
		TextBody:  email.Body,
		ClubName:  club.Name,
		EmailType: emailType,
		Role:      club.ContactRole,
	})
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	if err := h.engine.RecordEmailSent(r.Context(), club.Name, emailType, messageID, req.Subject, email.Body); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message_id": messageID,
		"club_name":  club.Name,
	})
}

// GetStats returns the campaign dashboard rollup.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.stats.Summary(r.Context())
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"summary":       summary,
		"response_rate": summary.ResponseRate(),
	})
}

// ListNotifications returns the unread review queue.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	items, err := h.notifications.ListUnread(r.Context())
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	respondJSON(w, http.StatusOK, items)
}

// MarkNotificationRead resolves one notification.
func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// Brevo webhook payloads use dash-separated keys and a bare tag list.
type webhookEvent struct {
	Event     string   `json:"event"`
	Email     string   `json:"email"`
	Date      string   `json:"date"`
	MessageID string   `json:"message-id"`
	Subject   string   `json:"subject"`
	Tag       string   `json:"tag"`
	Tags      []string `json:"tags"`
}

// BrevoWebhook ingests one pushed transport event through the same
// deduplication path as polling.
func (h *Handlers) BrevoWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date := time.Now()
	if payload.Date != "" {
		if parsed, err := brevo.ParseEventDate(payload.Date); err == nil {
			date = parsed
		}
	}

	// Sends stamp several tags (club:, type:, role:); the club tag is the
	// one attribution needs and its position is not guaranteed.
	tag := payload.Tag
	if tag == "" {
		for _, t := range payload.Tags {
			if strings.HasPrefix(t, "club:") {
				tag = t
				break
			}
		}
	}
	if tag == "" && len(payload.Tags) > 0 {
		tag = payload.Tags[0]
	}

	recorded, err := h.engine.IngestEvent(r.Context(), brevo.Event{
		Email:     payload.Email,
		Date:      date,
		MessageID: payload.MessageID,
		Event:     payload.Event,
		Subject:   payload.Subject,
		Tag:       tag,
	})
	if err != nil {
		if errors.Is(err, domain.ErrClubNotFound) {
			// Unknown contacts are normal webhook noise; acknowledge so
			// Brevo does not retry.
			respondJSON(w, http.StatusOK, map[string]bool{"recorded": false})
			return
		}
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"recorded": recorded})
}
