package llm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"ma-assistant/internal/pkg/logger"
)

const (
	gatewayAttempts  = 4
	gatewayBaseDelay = 600 * time.Millisecond
)

// Gateway is the single entry point for text generation. It retries transient
// provider failures with exponential backoff and fails terminally once the
// attempts are exhausted; callers must treat that as a hard failure of the
// current turn. Identical prompts within the cache TTL are served from memory
// to spare the provider.
type Gateway struct {
	provider LLMProvider
	log      logger.ILogger

	attempts  int
	baseDelay time.Duration
	cache     *cache.Cache
}

func NewGateway(provider LLMProvider, log logger.ILogger) *Gateway {
	return &Gateway{
		provider:  provider,
		log:       log,
		attempts:  gatewayAttempts,
		baseDelay: gatewayBaseDelay,
		cache:     cache.New(10*time.Minute, 30*time.Minute),
	}
}

// Complete sends a system+user prompt pair and returns the model text.
func (g *Gateway) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...Option) (string, error) {
	key := completionKey(systemPrompt, userPrompt)
	if cached, found := g.cache.Get(key); found {
		g.log.Debug("llm", "completion cache hit", nil)
		return cached.(string), nil
	}

	history := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	var lastErr error
	for attempt := 0; attempt < g.attempts; attempt++ {
		if attempt > 0 {
			delay := g.baseDelay * (1 << (attempt - 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", fmt.Errorf("llm: completion canceled: %w", ctx.Err())
			}
		}

		text, err := g.provider.Chat(ctx, history, opts...)
		if err == nil {
			g.cache.Set(key, text, cache.DefaultExpiration)
			return text, nil
		}
		lastErr = err
		g.log.Warn("llm", "completion attempt failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	return "", fmt.Errorf("llm: completion failed after %d attempts: %w", g.attempts, lastErr)
}

func completionKey(systemPrompt, userPrompt string) string {
	sum := sha256.Sum256([]byte(systemPrompt + "\x00" + userPrompt))
	return fmt.Sprintf("%x", sum)
}
