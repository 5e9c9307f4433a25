package provider

import (
	"context"
	"io"
	"sync"
	"time"
)

// Script describes one scripted Generate call for a model: the chunks
// to emit, the usage to report at end of stream, and an optional error.
// CallErr fails the call before any chunk; StreamErr is returned after
// the scripted chunks instead of EOF.
type Script struct {
	Chunks     []string
	Usage      Usage
	CallErr    error
	StreamErr  error
	ChunkDelay time.Duration
	// IgnoreCancel makes the stream sleep through ChunkDelay without
	// watching the context, to stand in for a backend that does not
	// honor cancellation.
	IgnoreCancel bool
}

// ScriptedProvider is a test double that replays per-model scripts in
// order. It mirrors the way the mock engine stands in for the real
// backend: deterministic output, no network.
type ScriptedProvider struct {
	name string

	mu      sync.Mutex
	scripts map[string][]Script
	calls   []string
}

// NewScripted creates a scripted provider with the given name.
func NewScripted(name string) *ScriptedProvider {
	return &ScriptedProvider{
		name:    name,
		scripts: make(map[string][]Script),
	}
}

// Name returns the provider name.
func (p *ScriptedProvider) Name() string { return p.name }

// Script queues one scripted response for model. Successive Generate
// calls for the same model consume scripts in order.
func (p *ScriptedProvider) Script(model string, s Script) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[model] = append(p.scripts[model], s)
	return p
}

// Calls returns the models requested so far, in call order.
func (p *ScriptedProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Generate replays the next script for req.Model.
func (p *ScriptedProvider) Generate(ctx context.Context, req Request) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, AsError(err, p.name, req.Model)
	}

	p.mu.Lock()
	p.calls = append(p.calls, req.Model)
	queue := p.scripts[req.Model]
	if len(queue) == 0 {
		p.mu.Unlock()
		return nil, NewError(KindConfig, p.name, req.Model, "no script queued for model")
	}
	script := queue[0]
	p.scripts[req.Model] = queue[1:]
	p.mu.Unlock()

	if script.CallErr != nil {
		return nil, script.CallErr
	}
	return &scriptedStream{ctx: ctx, provider: p.name, model: req.Model, script: script}, nil
}

type scriptedStream struct {
	ctx      context.Context
	provider string
	model    string
	script   Script
	pos      int
}

func (s *scriptedStream) Recv() (Chunk, error) {
	switch {
	case s.script.ChunkDelay > 0 && s.script.IgnoreCancel:
		time.Sleep(s.script.ChunkDelay)
	case s.script.ChunkDelay > 0:
		select {
		case <-s.ctx.Done():
			return Chunk{}, AsError(s.ctx.Err(), s.provider, s.model)
		case <-time.After(s.script.ChunkDelay):
		}
	default:
		if err := s.ctx.Err(); err != nil {
			return Chunk{}, AsError(err, s.provider, s.model)
		}
	}

	if s.pos < len(s.script.Chunks) {
		chunk := Chunk{Text: s.script.Chunks[s.pos]}
		s.pos++
		return chunk, nil
	}
	if s.script.StreamErr != nil {
		return Chunk{}, s.script.StreamErr
	}
	return Chunk{}, io.EOF
}

func (s *scriptedStream) Usage() Usage { return s.script.Usage }

func (s *scriptedStream) Close() error { return nil }

var _ Provider = (*ScriptedProvider)(nil)
