package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/photoreach/club-outreach/internal/config"
	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/pkg/httpretry"
	"github.com/photoreach/club-outreach/internal/pkg/logger"
)

// OpenAI implements ResearchProvider and ContentProvider against the OpenAI
// chat completions API. The search model is expected to have web search
// enabled; the content model is a cheap text model.
type OpenAI struct {
	baseURL      string
	apiKey       string
	searchModel  string
	contentModel string
	cfg          config.OpenAIConfig
	httpClient   httpretry.HTTPDoer
}

// NewOpenAI creates the OpenAI provider from config.
func NewOpenAI(cfg config.OpenAIConfig) *OpenAI {
	return &OpenAI{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		searchModel:  cfg.SearchModel,
		contentModel: cfg.ContentModel,
		cfg:          cfg,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens       int `json:"prompt_tokens"`
		CompletionTokens   int `json:"completion_tokens"`
		PromptTokensCached int `json:"prompt_tokens_cached"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (o *OpenAI) chatCompletion(ctx context.Context, req chatRequest) (string, Usage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", Usage{}, domain.WrapTimeout(fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", Usage{}, fmt.Errorf("%w: %s", domain.ErrProviderQuotaExceeded, strings.TrimSpace(string(respBody)))
	}
	if resp.StatusCode != http.StatusOK {
		return "", Usage{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("parsing response: %w", err)
	}
	if parsed.Error != nil {
		return "", Usage{}, fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("empty response from model %s", req.Model)
	}

	usage := Usage{
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		CachedTokens: parsed.Usage.PromptTokensCached,
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), usage, nil
}

// Research searches the web for club findings and splits them into the
// three email-type sections.
func (o *OpenAI) Research(ctx context.Context, info ClubInfo) (*Research, error) {
	tracker := NewCostTracker(o.cfg.Pricing, o.cfg.WebSearchCostPerQuery())
	tracker.AddWebSearch(1)

	text, usage, err := o.chatCompletion(ctx, chatRequest{
		Model: o.searchModel,
		Messages: []chatMessage{
			{Role: "system", Content: researchSystemPrompt},
			{Role: "user", Content: buildResearchPrompt(info)},
		},
	})
	if err != nil {
		return nil, &domain.ProviderError{Stage: domain.StageResearch, Err: err}
	}
	tracker.AddSearch(o.searchModel, usage)

	logger.Debug("research completed",
		"club", info.Name,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens)

	intro, checkup, acceptance := parseSections(text)
	return &Research{
		Introduction: intro,
		Checkup:      checkup,
		Acceptance:   acceptance,
		FullText:     text,
		Costs:        tracker.Costs(),
	}, nil
}

// GeneratePersonalization turns a research section into the 1-2 sentence
// snippet inserted into the email template.
func (o *OpenAI) GeneratePersonalization(ctx context.Context, clubName, researchText string, emailType domain.EmailType) (*Personalization, error) {
	tracker := NewCostTracker(o.cfg.Pricing, o.cfg.WebSearchCostPerQuery())

	text, usage, err := o.chatCompletion(ctx, chatRequest{
		Model: o.contentModel,
		Messages: []chatMessage{
			{Role: "system", Content: contentSystemPrompt},
			{Role: "user", Content: buildContentPrompt(clubName, researchText, emailType)},
		},
		Temperature: 0.8,
		MaxTokens:   200,
	})
	if err != nil {
		return nil, &domain.ProviderError{Stage: domain.StageContent, Err: err}
	}
	tracker.AddContent(o.contentModel, usage)

	return &Personalization{Content: text, Costs: tracker.Costs()}, nil
}
