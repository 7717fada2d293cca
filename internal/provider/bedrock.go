package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/photoreach/club-outreach/internal/config"
	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/pkg/logger"
)

// Bedrock implements ResearchProvider and ContentProvider against AWS
// Bedrock (Claude). All calls stay inside AWS; token pricing for Bedrock
// model IDs comes from the same pricing table as OpenAI models, keyed by
// model ID.
type Bedrock struct {
	client        *bedrockruntime.Client
	researchModel string
	contentModel  string
	pricing       map[string]config.ModelPricing
}

// NewBedrock creates the Bedrock provider using the default AWS credential
// chain.
func NewBedrock(ctx context.Context, cfg config.BedrockConfig, pricing map[string]config.ModelPricing) (*Bedrock, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	researchModel := cfg.ResearchModelID
	if researchModel == "" {
		researchModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	contentModel := cfg.ContentModelID
	if contentModel == "" {
		contentModel = "anthropic.claude-3-haiku-20240307-v1:0"
	}

	logger.Info("bedrock provider initialized", "region", cfg.Region, "research_model", researchModel)
	return &Bedrock{
		client:        bedrockruntime.NewFromConfig(awsCfg),
		researchModel: researchModel,
		contentModel:  contentModel,
		pricing:       pricing,
	}, nil
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (b *Bedrock) invoke(ctx context.Context, modelID, system, user string, maxTokens int, temperature float64) (string, Usage, error) {
	req := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           system,
		Messages: []bedrockMessage{
			{Role: "user", Content: []bedrockContentBlock{{Type: "text", Text: user}}},
		},
		Temperature: temperature,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshaling request: %w", err)
	}

	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", Usage{}, domain.WrapTimeout(fmt.Errorf("invoking model %s: %w", modelID, err))
	}

	var parsed bedrockResponse
	if err := json.Unmarshal(output.Body, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("parsing response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", Usage{}, fmt.Errorf("empty response from model %s", modelID)
	}

	usage := Usage{
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
	}
	return parsed.Content[0].Text, usage, nil
}

// Research implements ResearchProvider. Bedrock has no web-search tool, so
// no web-search cost is added; the prompt still instructs sectioned output.
func (b *Bedrock) Research(ctx context.Context, info ClubInfo) (*Research, error) {
	tracker := NewCostTracker(b.pricing, 0)

	text, usage, err := b.invoke(ctx, b.researchModel, researchSystemPrompt, buildResearchPrompt(info), 4000, 0.7)
	if err != nil {
		return nil, &domain.ProviderError{Stage: domain.StageResearch, Err: err}
	}
	tracker.AddSearch(b.researchModel, usage)

	intro, checkup, acceptance := parseSections(text)
	return &Research{
		Introduction: intro,
		Checkup:      checkup,
		Acceptance:   acceptance,
		FullText:     text,
		Costs:        tracker.Costs(),
	}, nil
}

// GeneratePersonalization implements ContentProvider.
func (b *Bedrock) GeneratePersonalization(ctx context.Context, clubName, researchText string, emailType domain.EmailType) (*Personalization, error) {
	tracker := NewCostTracker(b.pricing, 0)

	text, usage, err := b.invoke(ctx, b.contentModel, contentSystemPrompt, buildContentPrompt(clubName, researchText, emailType), 200, 0.8)
	if err != nil {
		return nil, &domain.ProviderError{Stage: domain.StageContent, Err: err}
	}
	tracker.AddContent(b.contentModel, usage)

	return &Personalization{Content: text, Costs: tracker.Costs()}, nil
}
