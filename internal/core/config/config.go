// Package config handles loading and validating Herald configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure. It is loaded once at startup
// and passed read-only through every component; nothing reads ambient state
// after that point.
type Config struct {
	// Owner and Repo define the single repository this bot is scoped to.
	// The engine refuses to act on issues outside this scope.
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`

	// Organization is the GitHub org used when rewriting document-store
	// citations. Defaults to Owner.
	Organization string `yaml:"organization,omitempty"`

	// Interactive requires a human confirmation before any write.
	Interactive bool `yaml:"interactive"`

	// BatchSize bounds how many recent issues a batch run processes.
	BatchSize int `yaml:"batch_size"`

	// BotLabel, when set, is applied alongside the classified label so
	// bot-triaged issues are identifiable later.
	BotLabel string `yaml:"bot_label,omitempty"`

	// Labels is the closed enumeration the classifier must choose from.
	Labels []LabelRule `yaml:"labels,omitempty"`

	Answer    AnswerConfig    `yaml:"answer"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// LabelRule names one allowed label and the routing hint fed to the
// classifier prompt.
type LabelRule struct {
	Name string `yaml:"name"`
	Hint string `yaml:"hint,omitempty"`
}

// AnswerConfig holds settings for the answering pipeline.
type AnswerConfig struct {
	// Marker is the attribution appended (bolded) to every posted answer.
	// Its presence in a later comment suppresses re-answering.
	Marker string `yaml:"marker,omitempty"`

	// RelevanceThreshold is the minimum retrieval score a document must
	// reach to count as supporting evidence.
	RelevanceThreshold float64 `yaml:"relevance_threshold"`

	// MaxDocuments caps how many supporting documents are retrieved and
	// cited.
	MaxDocuments int `yaml:"max_documents"`
}

// QdrantConfig holds the document-store connection settings.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model,omitempty"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model,omitempty"`
}

// TimeoutConfig bounds the engine's suspension points.
type TimeoutConfig struct {
	// Request caps each tracker / retrieval / LLM call.
	Request time.Duration `yaml:"request"`

	// Approval caps the interactive confirmation wait. Elapsing counts
	// as a denial, not a failure.
	Approval time.Duration `yaml:"approval"`
}

// DefaultLabels is the label enumeration used when the config does not
// declare its own.
var DefaultLabels = []LabelRule{
	{Name: "documentation", Hint: "documentation-related questions or gaps"},
	{Name: "services", Hint: "session, memory or artifact services"},
	{Name: "question", Hint: "general usage questions"},
	{Name: "tools", Hint: "tool definitions and tool calling"},
	{Name: "eval", Hint: "agent evaluation"},
	{Name: "live", Hint: "streaming and live interaction"},
	{Name: "models", Hint: "non-default model support (LiteLLM, Ollama, OpenAI, ...)"},
	{Name: "tracing", Hint: "tracing and observability"},
	{Name: "core", Hint: "agent orchestration and agent definitions"},
	{Name: "web", Hint: "UI and web surface"},
}

// Load reads a config file from the given path and expands environment
// variables before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// FindConfigPath searches for a config file in standard locations.
func FindConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	candidates := []string{
		".github/herald.yaml",
		".github/herald.yml",
		".herald.yaml",
		".herald.yml",
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			abs, _ := filepath.Abs(c)
			return abs
		}
	}

	return ""
}

// applyDefaults sets default values for unset fields.
func (c *Config) applyDefaults() {
	if c.Organization == "" {
		c.Organization = c.Owner
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 3
	}
	if len(c.Labels) == 0 {
		c.Labels = DefaultLabels
	}
	if c.Answer.Marker == "" {
		c.Answer.Marker = "Response from Herald Answering Agent"
	}
	if c.Answer.RelevanceThreshold == 0 {
		c.Answer.RelevanceThreshold = 0.65
	}
	if c.Answer.MaxDocuments == 0 {
		c.Answer.MaxDocuments = 5
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-004"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.0-flash-lite"
	}
	if c.Timeouts.Request == 0 {
		c.Timeouts.Request = 30 * time.Second
	}
	if c.Timeouts.Approval == 0 {
		c.Timeouts.Approval = 2 * time.Minute
	}
}

// Validate checks the fields every run depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Owner) == "" || strings.TrimSpace(c.Repo) == "" {
		return fmt.Errorf("config: owner and repo are required")
	}
	if len(c.Labels) == 0 {
		return fmt.Errorf("config: label enumeration cannot be empty")
	}
	for _, l := range c.Labels {
		if strings.TrimSpace(l.Name) == "" {
			return fmt.Errorf("config: label with empty name")
		}
	}
	return nil
}

// Scope returns the "owner/repo" string the engine is restricted to.
func (c *Config) Scope() string {
	return c.Owner + "/" + c.Repo
}

// LabelNames returns the allowed label names in declaration order.
func (c *Config) LabelNames() []string {
	names := make([]string, len(c.Labels))
	for i, l := range c.Labels {
		names[i] = l.Name
	}
	return names
}

// LabelAllowed reports whether name is part of the closed enumeration.
// Matching is exact: the tracker treats label names as opaque strings.
func (c *Config) LabelAllowed(name string) bool {
	for _, l := range c.Labels {
		if l.Name == name {
			return true
		}
	}
	return false
}
