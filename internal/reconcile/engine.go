// Package reconcile turns raw mail-transport events and manual entries into
// response records, and projects per-club outreach status from them.
//
// Automatic detection is idempotent: response IDs are derived from the club
// and email type alone, the store inserts only if absent, and the event-scan
// watermark advances only after a fully successful pass. Re-running a scan
// over an overlapping window therefore never duplicates a response.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/photoreach/club-outreach/internal/brevo"
	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/pkg/logger"
	"github.com/photoreach/club-outreach/internal/roster"
)

// EventWatermark names the scan watermark for the transport event feed.
const EventWatermark = "brevo_events"

// EventSource lists transport events since a point in time.
type EventSource interface {
	ListEvents(ctx context.Context, since time.Time) ([]brevo.Event, error)
}

// ResponseStore is the response persistence the engine needs.
type ResponseStore interface {
	// InsertIfAbsentWithMessage writes the response and its conversation
	// message atomically, or neither. Returns false on an ID collision.
	InsertIfAbsentWithMessage(ctx context.Context, rec *domain.ResponseRecord, msg *domain.ConversationMessage) (bool, error)
	CountManual(ctx context.Context, clubName string, t domain.EmailType) (int, error)
	Latest(ctx context.Context, clubName string) (*domain.ResponseRecord, error)
	ListByClub(ctx context.Context, clubName string) ([]domain.ResponseRecord, error)
}

// WatermarkStore persists the scan high-water mark.
type WatermarkStore interface {
	Get(ctx context.Context, name string) (time.Time, bool, error)
	Set(ctx context.Context, name string, value time.Time) error
}

// ConversationStore appends to the per-club conversation log.
type ConversationStore interface {
	Append(ctx context.Context, m *domain.ConversationMessage) error
}

// NotificationStore queues items for operator review.
type NotificationStore interface {
	Add(ctx context.Context, n *domain.Notification) error
}

// EmailStore is the generated-email persistence the engine needs.
type EmailStore interface {
	LatestSent(ctx context.Context, clubName string) (*domain.GeneratedEmail, error)
	MarkSent(ctx context.Context, clubName string, t domain.EmailType, at time.Time) error
	ListSentBefore(ctx context.Context, cutoff time.Time) ([]domain.GeneratedEmail, error)
}

// Policy holds the detection policy knobs.
type Policy struct {
	// TreatOpensAsResponses counts open events as reply-worthy. Opens are a
	// weak signal; this is off unless the operator opts in.
	TreatOpensAsResponses bool

	// DefaultResponseType is the sentiment assigned to automatic detections,
	// which carry no sentiment of their own.
	DefaultResponseType domain.ResponseType

	// Lookback bounds the first scan when no watermark exists yet.
	Lookback time.Duration
}

// Engine reconciles transport events and manual entries into responses.
type Engine struct {
	events        EventSource
	responses     ResponseStore
	watermarks    WatermarkStore
	conversations ConversationStore
	notifications NotificationStore
	emails        EmailStore
	roster        *roster.Roster
	policy        Policy
	now           func() time.Time
}

// New creates the engine. events may be nil when the transport has no event
// feed; CheckForNewResponses then reports an error and only the manual and
// webhook paths operate.
func New(events EventSource, responses ResponseStore, watermarks WatermarkStore,
	conversations ConversationStore, notifications NotificationStore,
	emails EmailStore, r *roster.Roster, policy Policy) *Engine {

	if policy.DefaultResponseType == "" {
		policy.DefaultResponseType = domain.ResponseNeutral
	}
	if policy.Lookback == 0 {
		policy.Lookback = 30 * 24 * time.Hour
	}
	return &Engine{
		events:        events,
		responses:     responses,
		watermarks:    watermarks,
		conversations: conversations,
		notifications: notifications,
		emails:        emails,
		roster:        r,
		policy:        policy,
		now:           time.Now,
	}
}

// Summary reports one detection pass.
type Summary struct {
	Scanned int `json:"scanned"`
	New     int `json:"new"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// CheckForNewResponses scans transport events since the stored watermark and
// records a response for every reply-worthy event that is not already known.
// The watermark advances to the newest event seen, and only when every event
// in the pass was handled without a storage failure; a partial pass is
// re-scanned in full next time and deduplicated by the ID scheme.
func (e *Engine) CheckForNewResponses(ctx context.Context) (*Summary, error) {
	if e.events == nil {
		return nil, fmt.Errorf("%w: no event feed configured", domain.ErrTransportUnavailable)
	}

	since, ok, err := e.watermarks.Get(ctx, EventWatermark)
	if err != nil {
		return nil, err
	}
	if !ok {
		since = e.now().Add(-e.policy.Lookback)
	}

	events, err := e.events.ListEvents(ctx, since)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Scanned: len(events)}
	var newest time.Time

	for _, ev := range events {
		if ev.Date.After(newest) {
			newest = ev.Date
		}
		if !e.replyWorthy(ev.Event) {
			continue
		}

		club, ok := e.attribute(ev)
		if !ok {
			logger.Warn("event does not match any roster club", "event", ev.Event, "contact_email", ev.Email)
			summary.Skipped++
			continue
		}

		if err := e.recordAutoResponse(ctx, club, ev, domain.DetectionPolledAPI, summary); err != nil {
			logger.Error("recording response failed", "club", club.Name, "error", err.Error())
			summary.Failed++
		}
	}

	if summary.Failed > 0 {
		logger.Warn("detection pass had failures, watermark not advanced",
			"failed", summary.Failed, "new", summary.New)
		return summary, nil
	}

	if !newest.IsZero() {
		if err := e.watermarks.Set(ctx, EventWatermark, newest); err != nil {
			return summary, err
		}
	}

	logger.Info("detection pass complete",
		"scanned", summary.Scanned,
		"new", summary.New,
		"skipped", summary.Skipped)
	return summary, nil
}

// IngestEvent records a single pushed webhook event through the same
// classification and deduplication path as polling. Returns whether a new
// response was recorded.
func (e *Engine) IngestEvent(ctx context.Context, ev brevo.Event) (bool, error) {
	if !e.replyWorthy(ev.Event) {
		return false, nil
	}
	club, ok := e.attribute(ev)
	if !ok {
		return false, fmt.Errorf("event contact %q: %w", ev.Email, domain.ErrClubNotFound)
	}

	summary := &Summary{}
	if err := e.recordAutoResponse(ctx, club, ev, domain.DetectionWebhook, summary); err != nil {
		return false, err
	}
	return summary.New > 0, nil
}

func (e *Engine) recordAutoResponse(ctx context.Context, club domain.Club, ev brevo.Event, method domain.DetectionMethod, summary *Summary) error {
	emailType := domain.EmailIntroduction
	if sent, err := e.emails.LatestSent(ctx, club.Name); err != nil {
		return err
	} else if sent != nil {
		emailType = sent.EmailType
	}

	rec := &domain.ResponseRecord{
		ResponseID:   domain.ResponseID(club.Name, emailType),
		ClubName:     club.Name,
		ContactName:  e.roster.ContactName(club.Name, ev.Email),
		ContactEmail: ev.Email,
		EmailType:    emailType,
		ResponseType: e.policy.DefaultResponseType,
		Content:      fmt.Sprintf("Auto-detected from %s event", ev.Event),
		ResponseDate: ev.Date,
		Detection:    method,
		CreatedAt:    e.now(),
	}

	// Response row and conversation message commit together: a failure
	// records neither, so the held watermark re-detects the reply next pass
	// instead of colliding with an orphan row.
	inserted, err := e.responses.InsertIfAbsentWithMessage(ctx, rec, &domain.ConversationMessage{
		ClubName:           club.Name,
		ContactName:        rec.ContactName,
		ContactEmail:       ev.Email,
		Direction:          domain.DirectionReceived,
		Subject:            ev.Subject,
		Content:            rec.Content,
		Sender:             ev.Email,
		TransportMessageID: ev.MessageID,
		Timestamp:          ev.Date,
	})
	if err != nil {
		return err
	}
	if !inserted {
		summary.Skipped++
		return nil
	}
	summary.New++

	logger.Info("response detected",
		"club", club.Name,
		"email_type", emailType,
		"detection", method,
		"event", ev.Event)
	return nil
}

// replyWorthy classifies transport events. Replies and clicks always count;
// opens only under the configured policy; delivery and bounce plumbing never
// does.
func (e *Engine) replyWorthy(event string) bool {
	switch event {
	case "reply", "replied", "inbound":
		return true
	case "click", "clicked":
		return true
	case "opened", "open", "uniqueOpened", "firstOpening", "proxy_open":
		return e.policy.TreatOpensAsResponses
	default:
		return false
	}
}

// attribute resolves which club an event belongs to, preferring the club tag
// stamped at send time and falling back to the contact email.
func (e *Engine) attribute(ev brevo.Event) (domain.Club, bool) {
	if len(ev.Tag) > 5 && ev.Tag[:5] == "club:" {
		if club, ok := e.roster.ClubForSlug(ev.Tag[5:]); ok {
			return club, true
		}
	}
	return e.roster.ClubForEmail(ev.Email)
}

// ManualEntry is an operator-logged response.
type ManualEntry struct {
	ClubName     string
	ContactEmail string
	EmailType    domain.EmailType
	ResponseType domain.ResponseType
	Content      string
	Date         time.Time
}

// AddManualResponse records a response logged by a human. The first manual
// entry for a (club, email type) shares the automatic ID and so deduplicates
// against automatic detection; later entries get sequence-suffixed IDs
// because a human logging twice means two distinct replies. Positive
// responses queue a review notification.
func (e *Engine) AddManualResponse(ctx context.Context, entry ManualEntry) (*domain.ResponseRecord, error) {
	club, err := e.roster.Lookup(entry.ClubName)
	if err != nil {
		return nil, err
	}

	date := entry.Date
	if date.IsZero() {
		date = e.now()
	}

	existing, err := e.responses.CountManual(ctx, club.Name, entry.EmailType)
	if err != nil {
		return nil, err
	}

	// An identical entry is probably a double submission. Warn, don't block:
	// the operator may genuinely mean it.
	if entry.Content != "" {
		prior, err := e.responses.ListByClub(ctx, club.Name)
		if err != nil {
			return nil, err
		}
		for _, p := range prior {
			if p.Content == entry.Content && p.EmailType == entry.EmailType {
				logger.Warn("manual response content matches an existing record",
					"club", club.Name,
					"email_type", entry.EmailType,
					"existing_id", p.ResponseID)
				break
			}
		}
	}

	rec := &domain.ResponseRecord{
		ClubName:     club.Name,
		ContactName:  e.roster.ContactName(club.Name, entry.ContactEmail),
		ContactEmail: entry.ContactEmail,
		EmailType:    entry.EmailType,
		ResponseType: entry.ResponseType,
		Content:      entry.Content,
		ResponseDate: date,
		Detection:    domain.DetectionManual,
		CreatedAt:    e.now(),
	}

	msg := &domain.ConversationMessage{
		ClubName:     club.Name,
		ContactName:  rec.ContactName,
		ContactEmail: entry.ContactEmail,
		Direction:    domain.DirectionReceived,
		Content:      entry.Content,
		Sender:       entry.ContactEmail,
		Timestamp:    date,
	}

	// A concurrent insert can take the candidate ID; walk forward until one
	// lands. Manual entry is intentionally non-idempotent past the first.
	// Response and conversation message commit together.
	for n := existing + 1; ; n++ {
		rec.ResponseID = domain.ManualResponseID(club.Name, entry.EmailType, n)
		inserted, err := e.responses.InsertIfAbsentWithMessage(ctx, rec, msg)
		if err != nil {
			return nil, err
		}
		if inserted {
			break
		}
	}

	if entry.ResponseType == domain.ResponsePositive {
		if err := e.notifications.Add(ctx, &domain.Notification{
			ClubName:  club.Name,
			Kind:      domain.NotifyPositiveResponse,
			Message:   fmt.Sprintf("%s replied positively to the %s email", club.Name, entry.EmailType),
			CreatedAt: e.now(),
		}); err != nil {
			return nil, err
		}
	}

	logger.Info("manual response recorded",
		"club", club.Name,
		"email_type", entry.EmailType,
		"response_type", entry.ResponseType,
		"response_id", rec.ResponseID)
	return rec, nil
}

// ClubStatus projects a club's outreach status. The latest response wins;
// with no responses, a sent email means we are waiting; otherwise the club
// has not been contacted. The projection is computed on read and never
// stored.
func (e *Engine) ClubStatus(ctx context.Context, clubName string) (domain.ClubStatus, error) {
	club, err := e.roster.Lookup(clubName)
	if err != nil {
		return "", err
	}

	latest, err := e.responses.Latest(ctx, club.Name)
	if err != nil {
		return "", err
	}
	if latest != nil {
		return domain.StatusForResponse(latest.ResponseType), nil
	}

	sent, err := e.emails.LatestSent(ctx, club.Name)
	if err != nil {
		return "", err
	}
	if sent != nil {
		return domain.StatusAwaitingResponse, nil
	}
	return domain.StatusNotContacted, nil
}

// Stage projects the club's pipeline stage from its responses: the latest
// response to the furthest email type decides, defaulting to introduction.
func (e *Engine) Stage(ctx context.Context, clubName string) (domain.Stage, error) {
	club, err := e.roster.Lookup(clubName)
	if err != nil {
		return "", err
	}

	latest, err := e.responses.Latest(ctx, club.Name)
	if err != nil {
		return "", err
	}
	if latest == nil {
		return domain.StageIntroduction, nil
	}
	return domain.NextStage(latest.EmailType, latest.ResponseType), nil
}

// RecordEmailSent marks the generated email as sent and appends the outbound
// message to the conversation log.
func (e *Engine) RecordEmailSent(ctx context.Context, clubName string, t domain.EmailType, messageID, subject, body string) error {
	club, err := e.roster.Lookup(clubName)
	if err != nil {
		return err
	}

	at := e.now()
	if err := e.emails.MarkSent(ctx, club.Name, t, at); err != nil {
		return err
	}

	return e.conversations.Append(ctx, &domain.ConversationMessage{
		ClubName:           club.Name,
		ContactName:        club.ContactName,
		ContactEmail:       club.ContactEmail,
		Direction:          domain.DirectionSent,
		Subject:            subject,
		Content:            body,
		TransportMessageID: messageID,
		Timestamp:          at,
	})
}

// DetectFollowUpsDue finds clubs whose sent email has gone unanswered past
// the window and queues one follow-up notification per club.
func (e *Engine) DetectFollowUpsDue(ctx context.Context, window time.Duration) ([]string, error) {
	cutoff := e.now().Add(-window)
	sent, err := e.emails.ListSentBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var due []string
	seen := map[string]bool{}
	for _, email := range sent {
		if seen[email.ClubName] {
			continue
		}
		seen[email.ClubName] = true

		latest, err := e.responses.Latest(ctx, email.ClubName)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			continue
		}

		if err := e.notifications.Add(ctx, &domain.Notification{
			ClubName:  email.ClubName,
			Kind:      domain.NotifyFollowUpDue,
			Message:   fmt.Sprintf("%s has not replied to the %s email", email.ClubName, email.EmailType),
			CreatedAt: e.now(),
		}); err != nil {
			return nil, err
		}
		due = append(due, email.ClubName)
	}
	return due, nil
}
