// Package config loads and validates the council's YAML configuration:
// the model catalog, persona seats with their fallback chains, routing
// models, provider endpoints, and the tuning block that collects every
// timeout and threshold in one place.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aspendos/council/internal/models"
	"gopkg.in/yaml.v3"
)

// Config is the complete council configuration.
type Config struct {
	Models    []ModelConfig    `yaml:"models"`
	Seats     []SeatConfig     `yaml:"seats"`
	Routing   RoutingConfig    `yaml:"routing"`
	Providers []ProviderConfig `yaml:"providers"`
	Tuning    Tuning           `yaml:"tuning"`
}

// ModelConfig describes one entry in the model catalog.
type ModelConfig struct {
	ID            string  `yaml:"id" json:"id"`
	DisplayName   string  `yaml:"display_name" json:"display_name"`
	ContextWindow int     `yaml:"context_window" json:"context_window"`
	SupportsTools bool    `yaml:"supports_tools,omitempty" json:"supports_tools,omitempty"`
	Pinned        bool    `yaml:"pinned,omitempty" json:"pinned,omitempty"`
	InputPer1K    float64 `yaml:"input_per_1k" json:"input_per_1k"`
	OutputPer1K   float64 `yaml:"output_per_1k" json:"output_per_1k"`
}

// Vendor returns the vendor prefix of a model ID ("openai/gpt-5.2" → "openai").
func Vendor(modelID string) string {
	if i := strings.IndexByte(modelID, '/'); i > 0 {
		return modelID[:i]
	}
	return modelID
}

// SeatConfig maps a persona seat to its primary model and ordered fallbacks.
type SeatConfig struct {
	Seat         models.Seat `yaml:"seat"`
	SystemPrompt string      `yaml:"system_prompt"`
	Primary      string      `yaml:"primary"`
	Fallbacks    []string    `yaml:"fallbacks,omitempty"`
}

// RoutingConfig names the models used by the free-text route classifier.
type RoutingConfig struct {
	ClassifierModel string `yaml:"classifier_model"`
	BackupModel     string `yaml:"backup_model"`
	DefaultModel    string `yaml:"default_model"`
}

// ProviderConfig describes one provider backend endpoint.
type ProviderConfig struct {
	Name      string `yaml:"name"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env"`
	// Gateway marks the provider used for any vendor without a
	// dedicated entry (the OpenRouter role in the original service).
	Gateway bool `yaml:"gateway,omitempty"`
}

// Tuning collects every hand-tuned constant. Values are product policy,
// not part of the core contract, so they live here rather than in code.
type Tuning struct {
	SessionTimeoutSec     int     `yaml:"session_timeout_seconds"`
	CancelGraceSec        int     `yaml:"cancel_grace_seconds"`
	MaxQueryLen           int     `yaml:"max_query_length"`
	BreakerWindowSec      int     `yaml:"breaker_window_seconds"`
	BreakerThreshold      int     `yaml:"breaker_failure_threshold"`
	BreakerCooldownSec    int     `yaml:"breaker_cooldown_seconds"`
	BreakerMaxCooldownSec int     `yaml:"breaker_max_cooldown_seconds"`
	StreamBufferCap       int     `yaml:"stream_buffer_cap"`
	ReplayWindow          int     `yaml:"replay_window"`
	DefaultInputPer1K     float64 `yaml:"default_input_per_1k"`
	DefaultOutputPer1K    float64 `yaml:"default_output_per_1k"`
}

// SessionTimeout returns the session wall-clock deadline.
func (t Tuning) SessionTimeout() time.Duration {
	return time.Duration(t.SessionTimeoutSec) * time.Second
}

// CancelGrace returns the bounded wait for workers to acknowledge a cancel.
func (t Tuning) CancelGrace() time.Duration {
	return time.Duration(t.CancelGraceSec) * time.Second
}

// BreakerWindow returns the sliding window over provider outcomes.
func (t Tuning) BreakerWindow() time.Duration {
	return time.Duration(t.BreakerWindowSec) * time.Second
}

// BreakerCooldown returns the initial open-state cooldown.
func (t Tuning) BreakerCooldown() time.Duration {
	return time.Duration(t.BreakerCooldownSec) * time.Second
}

// BreakerMaxCooldown returns the backoff cap for repeated probe failures.
func (t Tuning) BreakerMaxCooldown() time.Duration {
	return time.Duration(t.BreakerMaxCooldownSec) * time.Second
}

// Default returns the shipped configuration: the standard four-seat
// council over the current catalog, with product-default tuning.
func Default() *Config {
	return &Config{
		Models: []ModelConfig{
			{ID: "openai/gpt-5.2", DisplayName: "GPT-5.2", ContextWindow: 256000, SupportsTools: true, Pinned: true, InputPer1K: 0.10, OutputPer1K: 0.40},
			{ID: "openai/gpt-5.2-chat", DisplayName: "GPT-5.2 Chat", ContextWindow: 128000, SupportsTools: true, Pinned: true, InputPer1K: 0.005, OutputPer1K: 0.015},
			{ID: "openai/o3-pro", DisplayName: "o3 Pro", ContextWindow: 200000, SupportsTools: true, InputPer1K: 0.15, OutputPer1K: 0.60},
			{ID: "anthropic/claude-opus-4.5", DisplayName: "Claude Opus 4.5", ContextWindow: 200000, SupportsTools: true, Pinned: true, InputPer1K: 0.075, OutputPer1K: 0.30},
			{ID: "anthropic/claude-sonnet-4.5", DisplayName: "Claude Sonnet 4.5", ContextWindow: 200000, SupportsTools: true, Pinned: true, InputPer1K: 0.003, OutputPer1K: 0.015},
			{ID: "google/gemini-3-pro-preview", DisplayName: "Gemini 3 Pro", ContextWindow: 1000000, SupportsTools: true, InputPer1K: 0.00125, OutputPer1K: 0.010},
			{ID: "google/gemini-3-flash-preview", DisplayName: "Gemini 3 Flash", ContextWindow: 1000000, SupportsTools: true, Pinned: true, InputPer1K: 0.0003, OutputPer1K: 0.0025},
			{ID: "x-ai/grok-4", DisplayName: "Grok 4", ContextWindow: 256000, SupportsTools: true, InputPer1K: 0.003, OutputPer1K: 0.015},
		},
		Seats: []SeatConfig{
			{
				Seat:         models.SeatLogic,
				SystemPrompt: "You are the council's logic seat. Reason step by step and answer with rigor. Flag unstated assumptions.",
				Primary:      "openai/o3-pro",
				Fallbacks:    []string{"anthropic/claude-opus-4.5", "google/gemini-3-pro-preview"},
			},
			{
				Seat:         models.SeatCreative,
				SystemPrompt: "You are the council's creative seat. Offer the unconventional framing the other seats will miss.",
				Primary:      "anthropic/claude-opus-4.5",
				Fallbacks:    []string{"openai/gpt-5.2", "google/gemini-3-pro-preview"},
			},
			{
				Seat:         models.SeatPractical,
				SystemPrompt: "You are the council's practical seat. Answer with the shortest workable plan and concrete next steps.",
				Primary:      "google/gemini-3-flash-preview",
				Fallbacks:    []string{"openai/gpt-5.2-chat", "anthropic/claude-sonnet-4.5"},
			},
			{
				Seat:         models.SeatContrarian,
				SystemPrompt: "You are the council's contrarian seat. Argue the strongest case against the obvious answer.",
				Primary:      "x-ai/grok-4",
				Fallbacks:    []string{"anthropic/claude-sonnet-4.5", "openai/gpt-5.2"},
			},
		},
		Routing: RoutingConfig{
			ClassifierModel: "google/gemini-3-flash-preview",
			BackupModel:     "openai/gpt-5.2-chat",
			DefaultModel:    "openai/gpt-5.2",
		},
		Providers: []ProviderConfig{
			{Name: "openai", APIKeyEnv: "OPENAI_API_KEY"},
			{Name: "anthropic", BaseURL: "https://api.anthropic.com/v1", APIKeyEnv: "ANTHROPIC_API_KEY"},
			{Name: "google", BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai", APIKeyEnv: "GOOGLE_API_KEY"},
			{Name: "openrouter", BaseURL: "https://openrouter.ai/api/v1", APIKeyEnv: "OPENROUTER_API_KEY", Gateway: true},
		},
		Tuning: Tuning{
			SessionTimeoutSec:     60,
			CancelGraceSec:        5,
			MaxQueryLen:           2000,
			BreakerWindowSec:      30,
			BreakerThreshold:      5,
			BreakerCooldownSec:    15,
			BreakerMaxCooldownSec: 240,
			StreamBufferCap:       1024,
			ReplayWindow:          512,
			DefaultInputPer1K:     0.002,
			DefaultOutputPer1K:    0.008,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.merge(&overlay)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// merge overlays any non-zero sections of other onto c. Sections replace
// wholesale; there is no per-entry patching.
func (c *Config) merge(other *Config) {
	if len(other.Models) > 0 {
		c.Models = other.Models
	}
	if len(other.Seats) > 0 {
		c.Seats = other.Seats
	}
	if len(other.Providers) > 0 {
		c.Providers = other.Providers
	}
	if other.Routing.ClassifierModel != "" {
		c.Routing.ClassifierModel = other.Routing.ClassifierModel
	}
	if other.Routing.BackupModel != "" {
		c.Routing.BackupModel = other.Routing.BackupModel
	}
	if other.Routing.DefaultModel != "" {
		c.Routing.DefaultModel = other.Routing.DefaultModel
	}
	if other.Tuning != (Tuning{}) {
		c.Tuning = other.Tuning
	}
}

// Model returns the catalog entry for id.
func (c *Config) Model(id string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// Seat returns the configuration for the given seat.
func (c *Config) Seat(seat models.Seat) (SeatConfig, bool) {
	for _, s := range c.Seats {
		if s.Seat == seat {
			return s, true
		}
	}
	return SeatConfig{}, false
}

// SeatOrder returns the configured seats in order.
func (c *Config) SeatOrder() []models.Seat {
	seats := make([]models.Seat, 0, len(c.Seats))
	for _, s := range c.Seats {
		seats = append(seats, s.Seat)
	}
	return seats
}

// Validate checks catalog references and the fallback chain invariants.
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("no models configured")
	}
	if len(c.Seats) == 0 {
		return fmt.Errorf("no seats configured")
	}

	for _, s := range c.Seats {
		chain := append([]string{s.Primary}, s.Fallbacks...)
		for _, id := range chain {
			if _, ok := c.Model(id); !ok {
				return fmt.Errorf("seat %s references unknown model %q", s.Seat, id)
			}
		}
		// Adjacent chain entries must not share a vendor: a fallback on
		// the same provider as the model just judged unhealthy would
		// mask a provider-wide outage as a model-specific one.
		for i := 1; i < len(chain); i++ {
			if Vendor(chain[i]) == Vendor(chain[i-1]) {
				return fmt.Errorf("seat %s: fallback %q shares provider %q with the model it backs up",
					s.Seat, chain[i], Vendor(chain[i]))
			}
		}
	}

	for _, id := range []string{c.Routing.ClassifierModel, c.Routing.BackupModel, c.Routing.DefaultModel} {
		if id == "" {
			return fmt.Errorf("routing models must all be set")
		}
		if _, ok := c.Model(id); !ok {
			return fmt.Errorf("routing references unknown model %q", id)
		}
	}

	t := c.Tuning
	if t.SessionTimeoutSec < 1 {
		return fmt.Errorf("session_timeout_seconds must be at least 1, got %d", t.SessionTimeoutSec)
	}
	if t.MaxQueryLen < 1 {
		return fmt.Errorf("max_query_length must be at least 1, got %d", t.MaxQueryLen)
	}
	if t.BreakerThreshold < 1 {
		return fmt.Errorf("breaker_failure_threshold must be at least 1, got %d", t.BreakerThreshold)
	}
	if t.StreamBufferCap < t.ReplayWindow {
		return fmt.Errorf("stream_buffer_cap (%d) must be at least replay_window (%d) so reconnect replay fits one subscriber queue",
			t.StreamBufferCap, t.ReplayWindow)
	}
	return nil
}
