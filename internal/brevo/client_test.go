package brevo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoreach/club-outreach/internal/config"
	"github.com/photoreach/club-outreach/internal/domain"
)

func newTestClient(server *httptest.Server) *Client {
	return NewClient(config.BrevoConfig{
		APIKey:         "test-key",
		BaseURL:        server.URL,
		SenderEmail:    "partnerships@photoreach.example",
		SenderName:     "PhotoReach Partnerships",
		TimeoutSeconds: 5,
	})
}

func TestSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/smtp/email", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("api-key"))

		var payload sendPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		assert.Equal(t, "partnerships@photoreach.example", payload.Sender.Email)
		require.Len(t, payload.To, 1)
		assert.Equal(t, "president@boisecameraclub.org", payload.To[0].Email)
		assert.Contains(t, payload.Tags, "club:boise-camera-club")
		assert.Contains(t, payload.Tags, "type:introduction")

		var meta map[string]string
		require.NoError(t, json.Unmarshal([]byte(payload.Headers["X-Mailin-custom"]), &meta))
		assert.Equal(t, "BOISE CAMERA CLUB", meta["club_name"])
		assert.Equal(t, "introduction", meta["email_type"])

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"messageId":"<202608241000.12345@smtp-relay.mailin.fr>"}`)
	}))
	defer server.Close()

	c := newTestClient(server)
	id, err := c.Send(context.Background(), SendRequest{
		ToEmail:   "president@boisecameraclub.org",
		ToName:    "Jane Smith",
		Subject:   "Partnership with PhotoReach",
		TextBody:  "Hello",
		ClubName:  "BOISE CAMERA CLUB",
		EmailType: domain.EmailIntroduction,
		Role:      "president",
	})
	require.NoError(t, err)
	assert.Equal(t, "<202608241000.12345@smtp-relay.mailin.fr>", id)
}

func TestSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":"invalid_parameter","message":"sender not valid"}`)
	}))
	defer server.Close()

	c := newTestClient(server)
	_, err := c.Send(context.Background(), SendRequest{ToEmail: "x@example.org", ClubName: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestSendTransportUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	c := newTestClient(server)
	_, err := c.Send(context.Background(), SendRequest{ToEmail: "x@example.org", ClubName: "X"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransportUnavailable)
}

func TestListEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/smtp/statistics/events", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "0", r.URL.Query().Get("offset"))

		fmt.Fprint(w, `{"events":[
			{"email":"president@boisecameraclub.org","date":"2026-08-20T10:00:00.000+00:00","messageId":"<m1>","event":"delivered","subject":"Partnership","tag":"club:boise-camera-club"},
			{"email":"president@boisecameraclub.org","date":"2026-08-21T09:30:00.000+00:00","messageId":"<m1>","event":"opened","subject":"Partnership","tag":"club:boise-camera-club"},
			{"email":"old@example.org","date":"2026-07-01T00:00:00.000+00:00","messageId":"<m0>","event":"delivered","subject":"Old","tag":""}
		]}`)
	}))
	defer server.Close()

	c := newTestClient(server)
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	events, err := c.ListEvents(context.Background(), since)
	require.NoError(t, err)

	// The July event falls before the window and is dropped.
	require.Len(t, events, 2)
	assert.Equal(t, "delivered", events[0].Event)
	assert.Equal(t, "opened", events[1].Event)
	assert.Equal(t, time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC), events[0].Date.UTC())
}

func TestListEventsPagination(t *testing.T) {
	page := func(n int) string {
		items := make([]string, 0, n)
		for i := 0; i < n; i++ {
			items = append(items, `{"email":"a@example.org","date":"2026-08-20T10:00:00.000+00:00","messageId":"<m>","event":"delivered"}`)
		}
		return `{"events":[` + joinComma(items) + `]}`
	}

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("offset") == "0" {
			fmt.Fprint(w, page(eventPageSize))
			return
		}
		fmt.Fprint(w, page(3))
	}))
	defer server.Close()

	c := newTestClient(server)
	events, err := c.ListEvents(context.Background(), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, events, eventPageSize+3)
	assert.Equal(t, 2, calls)
}

func joinComma(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += it
	}
	return out
}

func TestCreateWebhook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhooks", r.URL.Path)

		var payload webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "https://outreach.photoreach.example/webhooks/brevo", payload.URL)
		assert.Equal(t, "transactional", payload.Type)
		assert.NotEmpty(t, payload.Events)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":42}`)
	}))
	defer server.Close()

	c := newTestClient(server)
	id, err := c.CreateWebhook(context.Background(), "https://outreach.photoreach.example/webhooks/brevo", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account", r.URL.Path)
		fmt.Fprint(w, `{"email":"owner@photoreach.example","companyName":"PhotoReach"}`)
	}))
	defer server.Close()

	c := newTestClient(server)
	assert.NoError(t, c.TestConnection(context.Background()))
}

func TestTestConnectionBadKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":"unauthorized"}`)
	}))
	defer server.Close()

	c := newTestClient(server)
	err := c.TestConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API key")
}

func TestParseEventDateFormats(t *testing.T) {
	for _, s := range []string{
		"2026-08-20T10:00:00.000+02:00",
		"2026-08-20T10:00:00Z",
		"2026-08-20 10:00:00",
	} {
		_, err := ParseEventDate(s)
		assert.NoError(t, err, s)
	}

	_, err := ParseEventDate("yesterday")
	assert.Error(t, err)
}
