// Package brevo implements the transactional mail transport against the
// Brevo v3 API: sending outreach emails, polling transactional events for
// response detection, and managing the inbound webhook.
package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/photoreach/club-outreach/internal/config"
	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/pkg/httpretry"
	"github.com/photoreach/club-outreach/internal/pkg/logger"
)

const eventPageSize = 100

// Client is a Brevo v3 API client.
type Client struct {
	baseURL     string
	apiKey      string
	senderEmail string
	senderName  string
	httpClient  httpretry.HTTPDoer
}

// NewClient creates a Brevo client from config.
func NewClient(cfg config.BrevoConfig) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		senderEmail: cfg.SenderEmail,
		senderName:  cfg.SenderName,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// SendRequest describes one outreach email to send.
type SendRequest struct {
	ToEmail  string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string

	ClubName  string
	EmailType domain.EmailType
	Role      string
}

type sendPayload struct {
	Sender      party             `json:"sender"`
	To          []party           `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent,omitempty"`
	TextContent string            `json:"textContent,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
}

type party struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
}

// Send delivers one email. The club and email type travel with the message
// as X-Mailin-custom metadata and as tags, so events coming back from Brevo
// can be attributed without a separate lookup.
func (c *Client) Send(ctx context.Context, req SendRequest) (string, error) {
	meta, err := json.Marshal(map[string]string{
		"club_name":  req.ClubName,
		"email_type": string(req.EmailType),
		"role":       req.Role,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling metadata: %w", err)
	}

	slug := domain.ClubSlug(req.ClubName)
	payload := sendPayload{
		Sender:      party{Email: c.senderEmail, Name: c.senderName},
		To:          []party{{Email: req.ToEmail, Name: req.ToName}},
		Subject:     req.Subject,
		HTMLContent: req.HTMLBody,
		TextContent: req.TextBody,
		Headers:     map[string]string{"X-Mailin-custom": string(meta)},
		Tags:        []string{"club:" + slug, "type:" + string(req.EmailType), "role:" + req.Role},
	}

	body, status, err := c.doRequest(ctx, http.MethodPost, "/smtp/email", payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return "", fmt.Errorf("send failed (status %d): %s", status, string(body))
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parsing send response: %w", err)
	}

	logger.Info("email sent",
		"club", req.ClubName,
		"email_type", req.EmailType,
		"contact_email", req.ToEmail,
		"message_id", parsed.MessageID)
	return parsed.MessageID, nil
}

// Event is one transactional event from Brevo.
type Event struct {
	Email     string    `json:"email"`
	Date      time.Time `json:"-"`
	MessageID string    `json:"messageId"`
	Event     string    `json:"event"`
	Subject   string    `json:"subject"`
	Tag       string    `json:"tag"`
}

type rawEvent struct {
	Email     string `json:"email"`
	Date      string `json:"date"`
	MessageID string `json:"messageId"`
	Event     string `json:"event"`
	Subject   string `json:"subject"`
	Tag       string `json:"tag"`
}

type eventsResponse struct {
	Events []rawEvent `json:"events"`
}

// Brevo event dates come back in a handful of shapes depending on the
// endpoint version.
var eventDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02 15:04:05",
}

// ParseEventDate parses a Brevo event timestamp in any of the known shapes.
func ParseEventDate(s string) (time.Time, error) {
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized event date %q", s)
}

// ListEvents returns all transactional events between since and now, oldest
// first. Pagination is followed until a short page; events with unparseable
// dates are skipped with a warning rather than failing the whole scan.
func (c *Client) ListEvents(ctx context.Context, since time.Time) ([]Event, error) {
	var events []Event

	for offset := 0; ; offset += eventPageSize {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(eventPageSize))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("startDate", since.Format("2006-01-02"))
		q.Set("endDate", time.Now().Format("2006-01-02"))
		q.Set("sort", "asc")

		body, status, err := c.doRequest(ctx, http.MethodGet, "/smtp/statistics/events?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("listing events failed (status %d): %s", status, string(body))
		}

		var parsed eventsResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("parsing events response: %w", err)
		}

		for _, raw := range parsed.Events {
			date, err := ParseEventDate(raw.Date)
			if err != nil {
				logger.Warn("skipping event with bad date", "date", raw.Date, "event", raw.Event)
				continue
			}
			if date.Before(since) {
				continue
			}
			events = append(events, Event{
				Email:     raw.Email,
				Date:      date,
				MessageID: raw.MessageID,
				Event:     raw.Event,
				Subject:   raw.Subject,
				Tag:       raw.Tag,
			})
		}

		if len(parsed.Events) < eventPageSize {
			break
		}
	}

	return events, nil
}

type webhookPayload struct {
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Events      []string `json:"events"`
	Type        string   `json:"type"`
}

type webhookResponse struct {
	ID int64 `json:"id"`
}

// CreateWebhook registers a transactional webhook so replies and deliveries
// push to us instead of waiting for the next poll.
func (c *Client) CreateWebhook(ctx context.Context, callbackURL string, events []string) (int64, error) {
	if len(events) == 0 {
		events = []string{"delivered", "opened", "click", "softBounce", "hardBounce"}
	}

	body, status, err := c.doRequest(ctx, http.MethodPost, "/webhooks", webhookPayload{
		URL:         callbackURL,
		Description: "club outreach response detection",
		Events:      events,
		Type:        "transactional",
	})
	if err != nil {
		return 0, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return 0, fmt.Errorf("creating webhook failed (status %d): %s", status, string(body))
	}

	var parsed webhookResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("parsing webhook response: %w", err)
	}
	return parsed.ID, nil
}

type accountResponse struct {
	Email       string `json:"email"`
	CompanyName string `json:"companyName"`
}

// TestConnection verifies the API key against the account endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	body, status, err := c.doRequest(ctx, http.MethodGet, "/account", nil)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("invalid API key (status %d)", status)
	}
	if status != http.StatusOK {
		return fmt.Errorf("account check failed (status %d): %s", status, string(body))
	}

	var parsed accountResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("parsing account response: %w", err)
	}

	logger.Info("transport connected", "account_email", parsed.Email, "company", parsed.CompanyName)
	return nil
}
