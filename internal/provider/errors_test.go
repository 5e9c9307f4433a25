package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/aspendos/council/internal/models"
)

func TestKindRetryable(t *testing.T) {
	require.True(t, KindRateLimited.Retryable())
	require.True(t, KindUnavailable.Retryable())
	require.True(t, KindTimeout.Retryable())
	require.True(t, KindUnknown.Retryable())

	require.False(t, KindContextTooLong.Retryable())
	require.False(t, KindConfig.Retryable())
	require.False(t, KindCanceled.Retryable())
}

func TestKindFeedsBreaker(t *testing.T) {
	// Configuration mistakes and caller cancels are not provider
	// outcomes and must not penalize provider health.
	require.False(t, KindConfig.FeedsBreaker())
	require.False(t, KindCanceled.FeedsBreaker())

	require.True(t, KindRateLimited.FeedsBreaker())
	require.True(t, KindContextTooLong.FeedsBreaker())
	require.True(t, KindUnavailable.FeedsBreaker())
	require.True(t, KindTimeout.FeedsBreaker())
	require.True(t, KindUnknown.FeedsBreaker())
}

func TestKindCode(t *testing.T) {
	require.Equal(t, models.ErrCodeRateLimited, KindRateLimited.Code())
	require.Equal(t, models.ErrCodeContextTooLong, KindContextTooLong.Code())
	require.Equal(t, models.ErrCodeUnavailable, KindUnavailable.Code())
	require.Equal(t, models.ErrCodeTimeout, KindTimeout.Code())
	require.Equal(t, models.ErrCodeConfig, KindConfig.Code())
	require.Equal(t, models.ErrCodeCanceled, KindCanceled.Code())
	require.Equal(t, models.ErrCodeUnknown, ErrorKind("martian").Code())
}

func TestAsErrorPassThrough(t *testing.T) {
	orig := NewError(KindRateLimited, "openai", "openai/gpt-5.2", "slow down")
	wrapped := fmt.Errorf("attempt failed: %w", orig)

	perr := AsError(wrapped, "other", "other/model")
	require.Same(t, orig, perr)
}

func TestAsErrorContext(t *testing.T) {
	perr := AsError(context.Canceled, "openai", "m")
	require.Equal(t, KindCanceled, perr.Kind)

	perr = AsError(context.DeadlineExceeded, "openai", "m")
	require.Equal(t, KindTimeout, perr.Kind)

	perr = AsError(errors.New("something odd"), "openai", "m")
	require.Equal(t, KindUnknown, perr.Kind)
	require.Equal(t, "openai", perr.Provider)
}

func TestClassifyAPIErrors(t *testing.T) {
	p := NewOpenAI("openai", "", "test-key")

	tests := []struct {
		name string
		err  *openai.APIError
		want ErrorKind
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, KindRateLimited},
		{"context code", &openai.APIError{HTTPStatusCode: 400, Code: "context_length_exceeded"}, KindContextTooLong},
		{"context message", &openai.APIError{HTTPStatusCode: 400, Message: "This model's maximum context length is 128000 tokens"}, KindContextTooLong},
		{"bad key", &openai.APIError{HTTPStatusCode: 401}, KindConfig},
		{"forbidden", &openai.APIError{HTTPStatusCode: 403}, KindConfig},
		{"unknown model", &openai.APIError{HTTPStatusCode: 404}, KindConfig},
		{"server error", &openai.APIError{HTTPStatusCode: 500}, KindUnavailable},
		{"bad gateway", &openai.APIError{HTTPStatusCode: 502}, KindUnavailable},
		{"request timeout", &openai.APIError{HTTPStatusCode: 408}, KindTimeout},
		{"other 400", &openai.APIError{HTTPStatusCode: 400}, KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			perr := p.classify(tc.err, "openai/gpt-5.2")
			require.Equal(t, tc.want, perr.Kind)
			require.Equal(t, tc.err.HTTPStatusCode, perr.Status)
		})
	}
}

func TestCollect(t *testing.T) {
	p := NewScripted("test").Script("m", Script{
		Chunks: []string{"hello ", "world"},
		Usage:  Usage{InputTokens: 10, OutputTokens: 2},
	})

	text, usage, err := Collect(context.Background(), p, Request{Model: "m"})
	require.NoError(t, err)
	require.Equal(t, "hello world", text)
	require.Equal(t, Usage{InputTokens: 10, OutputTokens: 2}, usage)
}

func TestCollectStreamError(t *testing.T) {
	p := NewScripted("test").Script("m", Script{
		Chunks:    []string{"partial"},
		StreamErr: NewError(KindUnavailable, "test", "m", "connection reset"),
	})

	text, _, err := Collect(context.Background(), p, Request{Model: "m"})
	require.Error(t, err)
	require.Equal(t, "partial", text)

	perr := AsError(err, "test", "m")
	require.Equal(t, KindUnavailable, perr.Kind)
}

func TestScriptedExhausted(t *testing.T) {
	p := NewScripted("test")
	_, err := p.Generate(context.Background(), Request{Model: "m"})
	require.Error(t, err)
	require.Equal(t, KindConfig, AsError(err, "test", "m").Kind)
}

func TestRegistryForModel(t *testing.T) {
	direct := NewScripted("openai")
	gateway := NewScripted("openrouter")
	r := NewStaticRegistry(map[string]Provider{"openai": direct}, gateway)

	p, err := r.ForModel("openai/gpt-5.2")
	require.NoError(t, err)
	require.Equal(t, "openai", p.Name())

	// Vendors without a dedicated adapter route through the gateway.
	p, err = r.ForModel("x-ai/grok-4")
	require.NoError(t, err)
	require.Equal(t, "openrouter", p.Name())
}

func TestRegistryNoGateway(t *testing.T) {
	r := NewStaticRegistry(map[string]Provider{}, nil)
	_, err := r.ForModel("x-ai/grok-4")
	require.Error(t, err)
	require.Equal(t, KindConfig, AsError(err, "", "").Kind)
}

func TestStreamTerminatesWithEOF(t *testing.T) {
	p := NewScripted("test").Script("m", Script{Chunks: []string{"a", "b"}})
	st, err := p.Generate(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	defer st.Close()

	var got []string
	for {
		chunk, err := st.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk.Text)
	}
	require.Equal(t, []string{"a", "b"}, got)

	// EOF is sticky.
	_, err = st.Recv()
	require.ErrorIs(t, err, io.EOF)
}
