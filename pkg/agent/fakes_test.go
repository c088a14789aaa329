package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ma-assistant/pkg/llm"
	"ma-assistant/pkg/protocol"
)

// scriptedProvider answers each known system prompt with a fixed response
// and counts calls per prompt kind.
type scriptedProvider struct {
	planResponse     string
	draftResponse    string
	revisionResponse string
	summaryResponse  string
	verdictResponse  string

	planCalls     int
	draftCalls    int
	revisionCalls int
	summaryCalls  int
	verdictCalls  int
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	system := history[0].Content
	switch system {
	case planSystemPrompt:
		p.planCalls++
		return p.planResponse, nil
	case draftSystemPrompt:
		p.draftCalls++
		return p.draftResponse, nil
	case revisionSystemPrompt:
		p.revisionCalls++
		return p.revisionResponse, nil
	case researcherSystemPrompt:
		p.summaryCalls++
		return p.summaryResponse, nil
	case verifierSystemPrompt:
		p.verdictCalls++
		return p.verdictResponse, nil
	}
	return "", fmt.Errorf("unexpected system prompt: %.40q", system)
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// fakeEndpoint is an in-memory bus endpoint whose respond hook plays the
// role of the peer agents: each sent request may produce an inbound reply.
type fakeEndpoint struct {
	mu      sync.Mutex
	inbox   chan protocol.Message
	sent    []protocol.Message
	respond func(protocol.Message) *protocol.Message
}

func newFakeEndpoint(respond func(protocol.Message) *protocol.Message) *fakeEndpoint {
	return &fakeEndpoint{
		inbox:   make(chan protocol.Message, 16),
		respond: respond,
	}
}

func (f *fakeEndpoint) Name() string { return "coordinator" }

func (f *fakeEndpoint) Send(msg protocol.Message) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.respond != nil {
		if reply := f.respond(msg); reply != nil {
			f.inbox <- *reply
		}
	}
	return nil
}

func (f *fakeEndpoint) Receive(timeout time.Duration) (protocol.Message, bool) {
	select {
	case msg := <-f.inbox:
		return msg, true
	case <-time.After(timeout):
		return protocol.Message{}, false
	}
}

func (f *fakeEndpoint) sentMessages() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Message, len(f.sent))
	copy(out, f.sent)
	return out
}
