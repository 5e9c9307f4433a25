package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/aspendos/council/internal/config"
	"github.com/aspendos/council/internal/provider"
	"github.com/aspendos/council/internal/remind"
)

const classifierSystemPrompt = `You are a message router. Classify the user's message into exactly one route and reply with a single JSON object, no prose:
{
  "route": "direct_reply" | "rag_search" | "tool_call" | "scheduled_callback",
  "confidence": 0.0-1.0,
  "alt_route": "<second most likely route>",
  "alt_confidence": 0.0-1.0,
  "model": "<model id to answer with, for direct_reply>",
  "query": "<search query, for rag_search>",
  "tool": "<tool name, for tool_call>",
  "params": {<tool parameters, for tool_call>},
  "trigger_text": "<time expression, for scheduled_callback>",
  "action": "<what to do at the trigger time, for scheduled_callback>"
}
Available tools: web_search, calculator.`

// providerSource is the subset of the provider registry the
// classifier needs. Satisfied by *provider.Registry.
type providerSource interface {
	ForModel(modelID string) (provider.Provider, error)
}

// Classifier routes free-text messages. It never returns an error:
// every failure path degrades to a direct reply on the default model,
// since a safe default always exists.
type Classifier struct {
	cfg       *config.Config
	providers providerSource
	tools     *ToolRegistry
	log       *slog.Logger

	now func() time.Time
}

func NewClassifier(cfg *config.Config, providers providerSource, tools *ToolRegistry, log *slog.Logger) *Classifier {
	return &Classifier{
		cfg:       cfg,
		providers: providers,
		tools:     tools,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the reference instant used to resolve scheduled
// callbacks. Test hook.
func (c *Classifier) SetClock(now func() time.Time) { c.now = now }

// rawRoute is the classifier model's JSON output before interpretation.
type rawRoute struct {
	Route         string         `mapstructure:"route"`
	Confidence    float64        `mapstructure:"confidence"`
	AltRoute      string         `mapstructure:"alt_route"`
	AltConfidence float64        `mapstructure:"alt_confidence"`
	Model         string         `mapstructure:"model"`
	Query         string         `mapstructure:"query"`
	Tool          string         `mapstructure:"tool"`
	Params        map[string]any `mapstructure:"params"`
	TriggerText   string         `mapstructure:"trigger_text"`
	Action        string         `mapstructure:"action"`
}

// Route classifies one message, optionally with recent conversation
// turns for context. The primary classifier model is tried first, then
// the backup; if both fail the result is a direct reply on the default
// model.
func (c *Classifier) Route(ctx context.Context, message string, recent []string) Decision {
	for _, model := range []string{c.cfg.Routing.ClassifierModel, c.cfg.Routing.BackupModel} {
		raw, err := c.classify(ctx, model, message, recent)
		if err != nil {
			c.log.Warn("classifier call failed", "model", model, "error", err)
			continue
		}
		return c.interpret(raw, message)
	}

	return Decision{
		Kind:   RouteDirectReply,
		Model:  c.cfg.Routing.DefaultModel,
		Reason: "classification unavailable, using default route",
	}
}

func (c *Classifier) classify(ctx context.Context, model, message string, recent []string) (*rawRoute, error) {
	p, err := c.providers.ForModel(model)
	if err != nil {
		return nil, err
	}

	msgs := make([]provider.Message, 0, len(recent)+1)
	for _, turn := range recent {
		msgs = append(msgs, provider.Message{Role: provider.RoleUser, Content: turn})
	}
	msgs = append(msgs, provider.Message{Role: provider.RoleUser, Content: message})

	text, _, err := provider.Collect(ctx, p, provider.Request{
		Model:     model,
		System:    classifierSystemPrompt,
		Messages:  msgs,
		MaxTokens: 512,
	})
	if err != nil {
		return nil, err
	}

	return parseRawRoute(text)
}

func parseRawRoute(text string) (*rawRoute, error) {
	payload := extractJSON(text)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in classifier output")
	}

	var generic map[string]any
	if err := json.Unmarshal([]byte(payload), &generic); err != nil {
		return nil, fmt.Errorf("classifier output is not valid JSON: %w", err)
	}

	var raw rawRoute
	if err := mapstructure.Decode(generic, &raw); err != nil {
		return nil, fmt.Errorf("classifier output has unexpected shape: %w", err)
	}
	if raw.Route == "" {
		return nil, fmt.Errorf("classifier output missing route")
	}
	return &raw, nil
}

// extractJSON pulls the first JSON object out of model output,
// tolerating markdown code fences and surrounding prose.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// ambiguityGap is the maximum confidence gap at which two candidate
// routes are treated as a tie.
const ambiguityGap = 0.15

func (c *Classifier) interpret(raw *rawRoute, message string) Decision {
	kind := normalizeRoute(raw.Route)

	// Tie-break between a direct reply and a memory search: an
	// explicit historical reference in the message wins it for the
	// search, otherwise the direct reply wins.
	if ambiguous(raw, RouteDirectReply, RouteMemorySearch) {
		if hasHistoricalReference(message) {
			kind = RouteMemorySearch
		} else {
			kind = RouteDirectReply
		}
	}

	switch kind {
	case RouteMemorySearch:
		query := raw.Query
		if query == "" {
			query = message
		}
		return Decision{
			Kind:        RouteMemorySearch,
			Model:       c.answerModel(raw.Model),
			Confidence:  raw.Confidence,
			SearchQuery: query,
		}

	case RouteToolCall:
		if !c.tools.Known(raw.Tool) {
			return c.downgrade(raw, fmt.Sprintf("unknown tool %q", raw.Tool))
		}
		if err := c.tools.Validate(raw.Tool, raw.Params); err != nil {
			return c.downgrade(raw, err.Error())
		}
		return Decision{
			Kind:       RouteToolCall,
			Model:      c.answerModel(raw.Model),
			Confidence: raw.Confidence,
			Tool:       raw.Tool,
			ToolParams: raw.Params,
		}

	case RouteScheduledCallback:
		at, ok := remind.Parse(raw.TriggerText, c.now())
		if !ok {
			return c.downgrade(raw, fmt.Sprintf("unrecognized time expression %q", raw.TriggerText))
		}
		return Decision{
			Kind:       RouteScheduledCallback,
			Model:      c.answerModel(raw.Model),
			Confidence: raw.Confidence,
			TriggerAt:  at,
			Action:     raw.Action,
		}

	default:
		return Decision{
			Kind:       RouteDirectReply,
			Model:      c.answerModel(raw.Model),
			Confidence: raw.Confidence,
		}
	}
}

// downgrade turns an unusable rich route into a direct reply.
func (c *Classifier) downgrade(raw *rawRoute, reason string) Decision {
	c.log.Warn("downgrading route to direct reply", "route", raw.Route, "reason", reason)
	return Decision{
		Kind:       RouteDirectReply,
		Model:      c.answerModel(raw.Model),
		Confidence: raw.Confidence,
		Reason:     reason,
	}
}

// answerModel picks the model that will serve the reply, falling back
// to the configured default when the classifier named nothing or
// something outside the catalog.
func (c *Classifier) answerModel(id string) string {
	if _, ok := c.cfg.Model(id); ok && id != "" {
		return id
	}
	return c.cfg.Routing.DefaultModel
}

func normalizeRoute(s string) RouteKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct_reply", "direct-reply", "direct":
		return RouteDirectReply
	case "rag_search", "memory_search", "memory-search":
		return RouteMemorySearch
	case "tool_call", "tool-call", "tool":
		return RouteToolCall
	case "scheduled_callback", "scheduled-callback", "schedule", "reminder":
		return RouteScheduledCallback
	default:
		return RouteDirectReply
	}
}

// ambiguous reports whether the classifier's top two routes are a and
// b (in either order) with confidences within ambiguityGap.
func ambiguous(raw *rawRoute, a, b RouteKind) bool {
	top, alt := normalizeRoute(raw.Route), normalizeRoute(raw.AltRoute)
	if raw.AltRoute == "" {
		return false
	}
	pair := (top == a && alt == b) || (top == b && alt == a)
	return pair && raw.Confidence-raw.AltConfidence <= ambiguityGap
}

var historicalPhrases = []string{
	"remember when",
	"last time",
	"we talked about",
	"you told me",
	"earlier you said",
	"previously",
}

func hasHistoricalReference(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range historicalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
