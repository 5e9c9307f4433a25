package provider

import (
	"context"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider speaks the OpenAI-compatible chat completion wire
// format. It serves OpenAI directly and, with a base URL override, any
// compatible gateway (OpenRouter carries every vendor without a
// dedicated adapter).
type OpenAIProvider struct {
	name   string
	client *openai.Client
}

// NewOpenAI creates an adapter named name against the given endpoint.
// An empty baseURL uses the OpenAI default.
func NewOpenAI(name, baseURL, apiKey string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		name:   name,
		client: openai.NewClientWithConfig(cfg),
	}
}

// Name returns the adapter's provider name.
func (p *OpenAIProvider) Name() string { return p.name }

// Generate starts a streaming chat completion.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (Stream, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	// Gateways want the vendor-prefixed ID; OpenAI itself wants the
	// bare model name.
	model := req.Model
	if p.name == "openai" {
		model = strings.TrimPrefix(model, "openai/")
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	})
	if err != nil {
		return nil, p.classify(err, req.Model)
	}
	return &openaiStream{provider: p, model: req.Model, inner: stream}, nil
}

type openaiStream struct {
	provider *OpenAIProvider
	model    string
	inner    *openai.ChatCompletionStream
	usage    Usage
}

func (s *openaiStream) Recv() (Chunk, error) {
	for {
		resp, err := s.inner.Recv()
		if errors.Is(err, io.EOF) {
			return Chunk{}, io.EOF
		}
		if err != nil {
			return Chunk{}, s.provider.classify(err, s.model)
		}
		if resp.Usage != nil {
			s.usage = Usage{
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
			}
		}
		if len(resp.Choices) == 0 {
			// Usage-only frame at end of stream.
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return Chunk{Text: delta}, nil
		}
	}
}

func (s *openaiStream) Usage() Usage { return s.usage }

func (s *openaiStream) Close() error {
	s.inner.Close()
	return nil
}

// classify maps go-openai errors into the provider error taxonomy.
func (p *OpenAIProvider) classify(err error, model string) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := KindUnknown
		switch {
		case apiErr.HTTPStatusCode == 429:
			kind = KindRateLimited
		case apiErr.HTTPStatusCode == 400 && isContextLengthError(apiErr):
			kind = KindContextTooLong
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403 || apiErr.HTTPStatusCode == 404:
			// Bad credentials or an unknown model: our fault, not the
			// provider's.
			kind = KindConfig
		case apiErr.HTTPStatusCode >= 500:
			kind = KindUnavailable
		case apiErr.HTTPStatusCode == 408:
			kind = KindTimeout
		}
		return &Error{
			Kind:     kind,
			Provider: p.name,
			Model:    model,
			Status:   apiErr.HTTPStatusCode,
			Message:  apiErr.Message,
			wrapped:  err,
		}
	}
	return AsError(err, p.name, model)
}

func isContextLengthError(apiErr *openai.APIError) bool {
	if code, ok := apiErr.Code.(string); ok && code == "context_length_exceeded" {
		return true
	}
	return strings.Contains(apiErr.Message, "maximum context length")
}
