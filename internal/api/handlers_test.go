package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoreach/club-outreach/internal/brevo"
	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/personalizer"
	"github.com/photoreach/club-outreach/internal/provider"
	"github.com/photoreach/club-outreach/internal/reconcile"
	"github.com/photoreach/club-outreach/internal/repository/sqlite"
	"github.com/photoreach/club-outreach/internal/research"
	"github.com/photoreach/club-outreach/internal/roster"
)

const rosterCSV = `Club,Country,Website,Name,Email,Role
BOISE CAMERA CLUB,USA,https://boisecameraclub.org,Jane Smith,president@boisecameraclub.org,president
`

// memStore is a single in-memory backing store for every persistence
// interface the handlers touch.
type memStore struct {
	responses     map[string]*domain.ResponseRecord
	research      map[string]*domain.ClubResearch
	emails        map[string]*domain.GeneratedEmail
	conversations []domain.ConversationMessage
	notifications []domain.Notification
	watermarks    map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{
		responses:  map[string]*domain.ResponseRecord{},
		research:   map[string]*domain.ClubResearch{},
		emails:     map[string]*domain.GeneratedEmail{},
		watermarks: map[string]time.Time{},
	}
}

func (s *memStore) InsertIfAbsentWithMessage(_ context.Context, rec *domain.ResponseRecord, msg *domain.ConversationMessage) (bool, error) {
	if _, ok := s.responses[rec.ResponseID]; ok {
		return false, nil
	}
	cp := *rec
	s.responses[rec.ResponseID] = &cp
	s.conversations = append(s.conversations, *msg)
	return true, nil
}

func (s *memStore) MarkProcessed(_ context.Context, responseID string) error {
	rec, ok := s.responses[responseID]
	if !ok {
		return &domain.StorageError{Op: "mark processed", Err: sql.ErrNoRows}
	}
	rec.Processed = true
	return nil
}

func (s *memStore) CountManual(_ context.Context, clubName string, t domain.EmailType) (int, error) {
	base := domain.ResponseID(clubName, t)
	n := 0
	for id := range s.responses {
		if id == base || strings.HasPrefix(id, base+"#") {
			n++
		}
	}
	return n, nil
}

func (s *memStore) Latest(_ context.Context, clubName string) (*domain.ResponseRecord, error) {
	var latest *domain.ResponseRecord
	for _, rec := range s.responses {
		if rec.ClubName != clubName {
			continue
		}
		if latest == nil || rec.ResponseDate.After(latest.ResponseDate) {
			latest = rec
		}
	}
	return latest, nil
}

func (s *memStore) List(_ context.Context) ([]domain.ResponseRecord, error) {
	var out []domain.ResponseRecord
	for _, rec := range s.responses {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResponseDate.After(out[j].ResponseDate) })
	return out, nil
}

func (s *memStore) ListByClub(_ context.Context, clubName string) ([]domain.ResponseRecord, error) {
	var out []domain.ResponseRecord
	for _, rec := range s.responses {
		if rec.ClubName == clubName {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, clubName string) (*domain.ClubResearch, error) {
	return s.research[clubName], nil
}

func (s *memStore) Upsert(_ context.Context, res *domain.ClubResearch) error {
	s.research[res.ClubName] = res
	return nil
}

type emailStore memStore

func (s *emailStore) key(club string, t domain.EmailType) string { return club + "/" + string(t) }

func (s *emailStore) Upsert(_ context.Context, e *domain.GeneratedEmail) error {
	cp := *e
	s.emails[s.key(e.ClubName, e.EmailType)] = &cp
	return nil
}

func (s *emailStore) Get(_ context.Context, clubName string, t domain.EmailType) (*domain.GeneratedEmail, error) {
	return s.emails[s.key(clubName, t)], nil
}

func (s *emailStore) LatestSent(_ context.Context, clubName string) (*domain.GeneratedEmail, error) {
	var latest *domain.GeneratedEmail
	for _, e := range s.emails {
		if e.ClubName != clubName || !e.Sent {
			continue
		}
		if latest == nil || e.SentAt.After(*latest.SentAt) {
			latest = e
		}
	}
	return latest, nil
}

func (s *emailStore) MarkSent(_ context.Context, clubName string, t domain.EmailType, at time.Time) error {
	e, ok := s.emails[s.key(clubName, t)]
	if !ok {
		return &domain.StorageError{Op: "mark sent", Err: assert.AnError}
	}
	e.Sent = true
	e.SentAt = &at
	return nil
}

func (s *emailStore) ListByClub(_ context.Context, clubName string) ([]domain.GeneratedEmail, error) {
	var out []domain.GeneratedEmail
	for _, e := range s.emails {
		if e.ClubName == clubName {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *emailStore) ListSentBefore(_ context.Context, cutoff time.Time) ([]domain.GeneratedEmail, error) {
	var out []domain.GeneratedEmail
	for _, e := range s.emails {
		if e.Sent && e.SentAt.Before(cutoff) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *memStore) Append(_ context.Context, m *domain.ConversationMessage) error {
	s.conversations = append(s.conversations, *m)
	return nil
}

func (s *memStore) ListConversation(_ context.Context, clubName string) ([]domain.ConversationMessage, error) {
	var out []domain.ConversationMessage
	for _, m := range s.conversations {
		if m.ClubName == clubName {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) Add(_ context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = "n1"
	}
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *memStore) ListUnread(_ context.Context) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range s.notifications {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memStore) MarkRead(_ context.Context, id string) error {
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			return nil
		}
	}
	return &domain.StorageError{Op: "mark notification read", Err: assert.AnError}
}

func (s *memStore) GetWatermark(_ context.Context, name string) (time.Time, bool, error) {
	v, ok := s.watermarks[name]
	return v, ok, nil
}

func (s *memStore) SetWatermark(_ context.Context, name string, value time.Time) error {
	s.watermarks[name] = value
	return nil
}

// watermarkAdapter maps the engine's interface onto memStore.
type watermarkAdapter struct{ s *memStore }

func (a watermarkAdapter) Get(ctx context.Context, name string) (time.Time, bool, error) {
	return a.s.GetWatermark(ctx, name)
}

func (a watermarkAdapter) Set(ctx context.Context, name string, value time.Time) error {
	return a.s.SetWatermark(ctx, name, value)
}

// conversationAdapter exposes ListByClub under the handler's interface name.
type conversationAdapter struct{ s *memStore }

func (a conversationAdapter) ListByClub(ctx context.Context, clubName string) ([]domain.ConversationMessage, error) {
	return a.s.ListConversation(ctx, clubName)
}

// researchAdapter exposes the research cache rows under the handler's
// interface; List on memStore itself belongs to the response store.
type researchAdapter struct{ s *memStore }

func (a researchAdapter) List(_ context.Context) ([]domain.ClubResearch, error) {
	var out []domain.ClubResearch
	for _, res := range a.s.research {
		out = append(out, *res)
	}
	return out, nil
}

func (a researchAdapter) Delete(_ context.Context, clubName string) error {
	delete(a.s.research, clubName)
	return nil
}

type stubResearcher struct{}

func (stubResearcher) Research(_ context.Context, _ provider.ClubInfo) (*provider.Research, error) {
	return &provider.Research{
		Introduction: "They ran the Urban Nights exhibition.",
		FullText:     "full",
		Costs:        domain.CostBreakdown{SearchCost: 0.05, TotalCost: 0.05},
	}, nil
}

type stubContent struct{}

func (stubContent) GeneratePersonalization(_ context.Context, _ string, _ string, _ domain.EmailType) (*provider.Personalization, error) {
	return &provider.Personalization{
		Content: "I was impressed by your Urban Nights exhibition.",
		Costs:   domain.CostBreakdown{ContentCost: 0.002, TotalCost: 0.002},
	}, nil
}

type stubSender struct {
	sent []brevo.SendRequest
	err  error
}

func (s *stubSender) Send(_ context.Context, req brevo.SendRequest) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, req)
	return "<m1>", nil
}

type stubStats struct{}

func (stubStats) Summary(_ context.Context) (*sqlite.Summary, error) {
	return &sqlite.Summary{EmailsGenerated: 3, EmailsSent: 2, Responses: 1, Positive: 1}, nil
}

type harness struct {
	server *httptest.Server
	store  *memStore
	sender *stubSender
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	r, err := roster.Parse(strings.NewReader(rosterCSV))
	require.NoError(t, err)

	store := newMemStore()
	emails := (*emailStore)(store)

	engine := reconcile.New(nil, store, watermarkAdapter{store}, store, store, emails, r, reconcile.Policy{})
	rs := research.NewService(store, stubResearcher{}, nil, 30*24*time.Hour)
	p := personalizer.New(r, rs, stubContent{}, emails, personalizer.NewTemplates(""), "Alex Rivera")
	sender := &stubSender{}

	h := NewHandlers(engine, p, sender, r, store, conversationAdapter{store}, store, stubStats{},
		researchAdapter{store}, emails)
	server := httptest.NewServer(SetupRoutes(h, nil))
	t.Cleanup(server.Close)

	return &harness{server: server, store: store, sender: sender}
}

func (h *harness) post(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(h.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func (h *harness) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(h.server.URL + path)
	require.NoError(t, err)
	return resp
}

func (h *harness) delete(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, h.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	resp := h.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["clubs"])
}

func TestManualResponseEndpoint(t *testing.T) {
	h := newHarness(t)

	resp := h.post(t, "/api/responses", manualResponseRequest{
		ClubName:     "BOISE CAMERA CLUB",
		ContactEmail: "president@boisecameraclub.org",
		EmailType:    "introduction",
		ResponseType: "positive",
		Content:      "Love it, let's talk.",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var rec domain.ResponseRecord
	decode(t, resp, &rec)
	assert.Equal(t, "boise-camera-club:introduction", rec.ResponseID)
	assert.Equal(t, domain.DetectionManual, rec.Detection)

	// Positive entry queued a notification.
	resp = h.get(t, "/api/notifications")
	var notifications []domain.Notification
	decode(t, resp, &notifications)
	require.Len(t, notifications, 1)
	assert.Equal(t, domain.NotifyPositiveResponse, notifications[0].Kind)
}

func TestManualResponseValidation(t *testing.T) {
	h := newHarness(t)

	resp := h.post(t, "/api/responses", manualResponseRequest{
		ClubName:     "BOISE CAMERA CLUB",
		EmailType:    "newsletter",
		ResponseType: "positive",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = h.post(t, "/api/responses", manualResponseRequest{
		ClubName:     "NO SUCH CLUB",
		EmailType:    "introduction",
		ResponseType: "positive",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestClubStatusEndpoint(t *testing.T) {
	h := newHarness(t)

	resp := h.get(t, "/api/clubs/BOISE%20CAMERA%20CLUB/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, string(domain.StatusNotContacted), body["status"])
	assert.Equal(t, string(domain.StageIntroduction), body["stage"])

	resp = h.get(t, "/api/clubs/UNKNOWN/status")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGenerateAndSendFlow(t *testing.T) {
	h := newHarness(t)

	// Sending before generation conflicts.
	resp := h.post(t, "/api/emails/send", sendEmailRequest{
		ClubName:  "BOISE CAMERA CLUB",
		EmailType: "introduction",
		Subject:   "Partnership with PhotoReach",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = h.post(t, "/api/emails/generate", generateRequest{
		ClubName:  "boise camera club",
		EmailType: "introduction",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var email domain.GeneratedEmail
	decode(t, resp, &email)
	assert.Contains(t, email.Body, "Urban Nights")
	assert.False(t, email.Sent)

	resp = h.post(t, "/api/emails/send", sendEmailRequest{
		ClubName:  "BOISE CAMERA CLUB",
		EmailType: "introduction",
		Subject:   "Partnership with PhotoReach",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var sent map[string]string
	decode(t, resp, &sent)
	assert.Equal(t, "<m1>", sent["message_id"])

	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, "president@boisecameraclub.org", h.sender.sent[0].ToEmail)

	// The send landed in the conversation log and flipped the status.
	resp = h.get(t, "/api/clubs/BOISE%20CAMERA%20CLUB/conversation")
	var messages []domain.ConversationMessage
	decode(t, resp, &messages)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.DirectionSent, messages[0].Direction)

	resp = h.get(t, "/api/clubs/BOISE%20CAMERA%20CLUB/status")
	var status map[string]string
	decode(t, resp, &status)
	assert.Equal(t, string(domain.StatusAwaitingResponse), status["status"])
}

func TestWebhookEndpoint(t *testing.T) {
	h := newHarness(t)

	payload := map[string]interface{}{
		"event":      "reply",
		"email":      "president@boisecameraclub.org",
		"date":       "2026-08-24 10:00:00",
		"message-id": "<m1>",
		"subject":    "Re: Partnership",
		"tag":        "club:boise-camera-club",
	}

	resp := h.post(t, "/webhooks/brevo", payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]bool
	decode(t, resp, &body)
	assert.True(t, body["recorded"])

	// Duplicate push is acknowledged but not recorded again.
	resp = h.post(t, "/webhooks/brevo", payload)
	decode(t, resp, &body)
	assert.False(t, body["recorded"])

	// Unknown contact is acknowledged so Brevo stops retrying.
	resp = h.post(t, "/webhooks/brevo", map[string]interface{}{
		"event": "reply",
		"email": "stranger@example.org",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &body)
	assert.False(t, body["recorded"])
}

func TestWebhookTagListAttribution(t *testing.T) {
	h := newHarness(t)

	// The contact replied from a personal address, so attribution has to come
	// from the club tag, which is not first in the tag list.
	resp := h.post(t, "/webhooks/brevo", map[string]interface{}{
		"event": "reply",
		"email": "jane.personal@example.org",
		"date":  "2026-08-24 10:00:00",
		"tags":  []string{"type:introduction", "role:president", "club:boise-camera-club"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]bool
	decode(t, resp, &body)
	assert.True(t, body["recorded"])

	rec, ok := h.store.responses["boise-camera-club:introduction"]
	require.True(t, ok)
	assert.Equal(t, "BOISE CAMERA CLUB", rec.ClubName)
}

func TestMarkResponseProcessedEndpoint(t *testing.T) {
	h := newHarness(t)

	resp := h.post(t, "/api/responses", manualResponseRequest{
		ClubName:     "BOISE CAMERA CLUB",
		ContactEmail: "president@boisecameraclub.org",
		EmailType:    "introduction",
		ResponseType: "neutral",
		Content:      "We'll discuss at the next meeting.",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = h.post(t, "/api/responses/boise-camera-club:introduction/processed", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.True(t, h.store.responses["boise-camera-club:introduction"].Processed)

	resp = h.post(t, "/api/responses/no-such-club:introduction/processed", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestResearchEndpoints(t *testing.T) {
	h := newHarness(t)
	h.store.research["BOISE CAMERA CLUB"] = &domain.ClubResearch{
		ClubName:             "BOISE CAMERA CLUB",
		IntroductionResearch: "They ran the Urban Nights exhibition.",
	}

	resp := h.get(t, "/api/research")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var rows []domain.ClubResearch
	decode(t, resp, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "BOISE CAMERA CLUB", rows[0].ClubName)

	resp = h.delete(t, "/api/research/BOISE%20CAMERA%20CLUB")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Empty(t, h.store.research)

	resp = h.delete(t, "/api/research/UNKNOWN")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestClubEmailsEndpoint(t *testing.T) {
	h := newHarness(t)

	resp := h.post(t, "/api/emails/generate", generateRequest{
		ClubName:  "BOISE CAMERA CLUB",
		EmailType: "introduction",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = h.get(t, "/api/clubs/BOISE%20CAMERA%20CLUB/emails")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var emails []domain.GeneratedEmail
	decode(t, resp, &emails)
	require.Len(t, emails, 1)
	assert.Equal(t, domain.EmailIntroduction, emails[0].EmailType)

	resp = h.get(t, "/api/clubs/UNKNOWN/emails")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestStatsEndpoint(t *testing.T) {
	h := newHarness(t)

	resp := h.get(t, "/api/stats")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Summary      sqlite.Summary `json:"summary"`
		ResponseRate float64        `json:"response_rate"`
	}
	decode(t, resp, &body)
	assert.Equal(t, 3, body.Summary.EmailsGenerated)
	assert.InDelta(t, 0.5, body.ResponseRate, 1e-9)
}

func TestNotificationRead(t *testing.T) {
	h := newHarness(t)
	h.store.notifications = []domain.Notification{{ID: "n1", Kind: domain.NotifyFollowUpDue}}

	resp := h.post(t, "/api/notifications/n1/read", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = h.get(t, "/api/notifications")
	var items []domain.Notification
	decode(t, resp, &items)
	assert.Empty(t, items)
}
