package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Brevo    BrevoConfig    `yaml:"brevo"`
	SES      SESConfig      `yaml:"ses"`
	Provider ProviderConfig `yaml:"provider"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Bedrock  BedrockConfig  `yaml:"bedrock"`
	Storage  StorageConfig  `yaml:"storage"`
	Roster   RosterConfig   `yaml:"roster"`
	Template TemplateConfig `yaml:"template"`
	Research ResearchConfig `yaml:"research"`
	Polling  PollingConfig  `yaml:"polling"`
	FollowUp FollowUpConfig `yaml:"follow_up"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig controls log level and PII redaction
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// BrevoConfig holds the transactional mail transport settings
type BrevoConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	SenderEmail    string `yaml:"sender_email"`
	SenderName     string `yaml:"sender_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration
func (c BrevoConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds the optional SES send-only transport settings
type SESConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Region         string `yaml:"region"`
	SenderEmail    string `yaml:"sender_email"`
	SenderName     string `yaml:"sender_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ProviderConfig selects the AI backend for research and content generation
type ProviderConfig struct {
	// Backend is "openai" (default) or "bedrock".
	Backend string `yaml:"backend"`
}

// ModelPricing holds per-1M-token prices for one model
type ModelPricing struct {
	Input       float64 `yaml:"input"`
	CachedInput float64 `yaml:"cached_input"`
	Output      float64 `yaml:"output"`
}

// OpenAIConfig holds the OpenAI provider settings and token pricing
type OpenAIConfig struct {
	APIKey         string                  `yaml:"api_key"`
	BaseURL        string                  `yaml:"base_url"`
	SearchModel    string                  `yaml:"search_model"`
	ContentModel   string                  `yaml:"content_model"`
	TimeoutSeconds int                     `yaml:"timeout_seconds"`
	Pricing        map[string]ModelPricing `yaml:"pricing"`

	// WebSearchCostPer1K is the flat web-search tool cost per 1000 calls.
	WebSearchCostPer1K float64 `yaml:"web_search_cost_per_1k"`
}

// Timeout returns the request timeout as a duration
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WebSearchCostPerQuery returns the cost of a single web search call
func (c OpenAIConfig) WebSearchCostPerQuery() float64 {
	return c.WebSearchCostPer1K / 1000
}

// BedrockConfig holds the AWS Bedrock provider settings
type BedrockConfig struct {
	Region          string `yaml:"region"`
	ResearchModelID string `yaml:"research_model_id"`
	ContentModelID  string `yaml:"content_model_id"`
}

// StorageConfig holds the sqlite database location
type StorageConfig struct {
	Path string `yaml:"path"`
}

// RosterConfig points at the club roster CSV
type RosterConfig struct {
	CSVPath string `yaml:"csv_path"`
}

// TemplateConfig points at the Liquid email templates, one per email type
type TemplateConfig struct {
	Dir string `yaml:"dir"`
}

// ResearchConfig controls research cache freshness
type ResearchConfig struct {
	FreshnessDays int `yaml:"freshness_days"`
}

// FreshnessWindow returns the research validity window as a duration
func (c ResearchConfig) FreshnessWindow() time.Duration {
	return time.Duration(c.FreshnessDays) * 24 * time.Hour
}

// PollingConfig controls automatic response detection
type PollingConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	LookbackDays    int `yaml:"lookback_days"`

	// TreatOpensAsResponses makes open events count as reply-worthy. Opens
	// are a weak engagement signal, not a certain reply; this conflation is
	// an explicit policy decision, off by default.
	TreatOpensAsResponses bool `yaml:"treat_opens_as_responses"`

	// DefaultResponseType is the sentiment assigned to automatically
	// detected responses ("neutral" by default).
	DefaultResponseType string `yaml:"default_response_type"`
}

// Interval returns the polling interval as a duration
func (c PollingConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// FollowUpConfig controls the no-response follow-up window
type FollowUpConfig struct {
	Days int `yaml:"days"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Brevo.BaseURL == "" {
		cfg.Brevo.BaseURL = "https://api.brevo.com/v3"
	}
	if cfg.Brevo.TimeoutSeconds == 0 {
		cfg.Brevo.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.Provider.Backend == "" {
		cfg.Provider.Backend = "openai"
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.SearchModel == "" {
		cfg.OpenAI.SearchModel = "o3"
	}
	if cfg.OpenAI.ContentModel == "" {
		cfg.OpenAI.ContentModel = "gpt-4.1-nano"
	}
	if cfg.OpenAI.TimeoutSeconds == 0 {
		cfg.OpenAI.TimeoutSeconds = 60
	}
	if cfg.OpenAI.WebSearchCostPer1K == 0 {
		cfg.OpenAI.WebSearchCostPer1K = 10.00
	}
	if cfg.OpenAI.Pricing == nil {
		cfg.OpenAI.Pricing = map[string]ModelPricing{}
	}
	if _, ok := cfg.OpenAI.Pricing["o3"]; !ok {
		cfg.OpenAI.Pricing["o3"] = ModelPricing{Input: 2.00, CachedInput: 0.50, Output: 8.00}
	}
	if _, ok := cfg.OpenAI.Pricing["gpt-4.1-nano"]; !ok {
		cfg.OpenAI.Pricing["gpt-4.1-nano"] = ModelPricing{Input: 0.100, CachedInput: 0.025, Output: 0.400}
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "us-east-1"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/outreach.db"
	}
	if cfg.Roster.CSVPath == "" {
		cfg.Roster.CSVPath = "data/clubs.csv"
	}
	if cfg.Template.Dir == "" {
		cfg.Template.Dir = "templates"
	}
	if cfg.Research.FreshnessDays == 0 {
		cfg.Research.FreshnessDays = 30
	}
	if cfg.Polling.IntervalSeconds == 0 {
		cfg.Polling.IntervalSeconds = 300
	}
	if cfg.Polling.LookbackDays == 0 {
		cfg.Polling.LookbackDays = 30
	}
	if cfg.Polling.DefaultResponseType == "" {
		cfg.Polling.DefaultResponseType = "neutral"
	}
	if cfg.FollowUp.Days == 0 {
		cfg.FollowUp.Days = 7
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file (if present) is loaded first, so secrets can live in .env
// locally and in real environment variables in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("BREVO_API_KEY"); v != "" {
		cfg.Brevo.APIKey = v
	}
	if v := os.Getenv("BREVO_BASE_URL"); v != "" {
		cfg.Brevo.BaseURL = v
	}
	if v := os.Getenv("BREVO_SENDER_EMAIL"); v != "" {
		cfg.Brevo.SenderEmail = v
	}
	if v := os.Getenv("BREVO_SENDER_NAME"); v != "" {
		cfg.Brevo.SenderName = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("SEARCH_MODEL"); v != "" {
		cfg.OpenAI.SearchModel = v
	}
	if v := os.Getenv("CONTENT_MODEL"); v != "" {
		cfg.OpenAI.ContentModel = v
	}
	if v := os.Getenv("CLUBS_CSV_PATH"); v != "" {
		cfg.Roster.CSVPath = v
	}
	if v := os.Getenv("TEMPLATE_DIR"); v != "" {
		cfg.Template.Dir = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Bedrock.Region = v
		cfg.SES.Region = v
	}

	return cfg, nil
}
