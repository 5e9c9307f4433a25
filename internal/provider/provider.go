// Package provider wraps every model backend behind one uniform
// streaming-generation interface. Vendor wire formats stay inside the
// adapters; callers see ordered text chunks, final token usage, and a
// typed error taxonomy.
package provider

import (
	"context"
	"io"
	"strings"
)

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation context.
type Message struct {
	Role    string
	Content string
}

// Request describes one generation call.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// Chunk is one incremental unit of streamed output.
type Chunk struct {
	Text string
}

// Usage is the token accounting for a completed call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Stream yields a finite, ordered sequence of chunks. Recv returns
// io.EOF after the last chunk; Usage is valid only after EOF.
type Stream interface {
	Recv() (Chunk, error)
	Usage() Usage
	Close() error
}

// Provider is one model backend. Implementations must honor context
// cancellation during Generate and between Recv calls so an in-flight
// call can be aborted promptly.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Stream, error)
}

// Collect drains a stream into its full text and usage. Used by
// callers that want a whole response rather than deltas, such as the
// route classifier and the synthesis pass.
func Collect(ctx context.Context, p Provider, req Request) (string, Usage, error) {
	stream, err := p.Generate(ctx, req)
	if err != nil {
		return "", Usage{}, err
	}
	defer stream.Close() //nolint:errcheck

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return sb.String(), stream.Usage(), nil
		}
		if err != nil {
			return sb.String(), Usage{}, err
		}
		sb.WriteString(chunk.Text)
	}
}
