package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ma-assistant/internal/pkg/logger"
)

// flakyProvider fails a fixed number of times before succeeding.
type flakyProvider struct {
	failures int
	calls    int
	response string
}

func (p *flakyProvider) Chat(ctx context.Context, history []Message, opts ...Option) (string, error) {
	p.calls++
	if p.calls <= p.failures {
		return "", errors.New("transient provider error")
	}
	return p.response, nil
}

func (p *flakyProvider) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	return p.Chat(ctx, []Message{{Role: "user", Content: prompt}}, opts...)
}

func newTestGateway(provider LLMProvider) *Gateway {
	g := NewGateway(provider, logger.NewNopLogger())
	g.baseDelay = time.Millisecond
	return g
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	provider := &flakyProvider{failures: 2, response: "ok"}
	g := newTestGateway(provider)

	text, err := g.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, provider.calls)
}

func TestCompleteTerminalAfterExhaustedAttempts(t *testing.T) {
	provider := &flakyProvider{failures: 100}
	g := newTestGateway(provider)

	_, err := g.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Equal(t, gatewayAttempts, provider.calls)
}

func TestCompleteCachesIdenticalPrompts(t *testing.T) {
	provider := &flakyProvider{response: "cached"}
	g := newTestGateway(provider)

	first, err := g.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	second, err := g.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls, "second identical prompt must hit the cache")

	// A different prompt misses the cache.
	_, err = g.Complete(context.Background(), "sys", "other")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestCompleteHonorsContextCancellation(t *testing.T) {
	provider := &flakyProvider{failures: 100}
	g := newTestGateway(provider)
	g.baseDelay = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Complete(ctx, "sys", "usr")
	assert.Error(t, err)
	assert.Equal(t, 1, provider.calls, "must not retry past cancellation")
}
