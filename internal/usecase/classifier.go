package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"hint-agent/internal/domain"
)

// Classifier returns an advisory intent signal. It never fails: any
// infrastructure problem resolves to GAME_RELATED.
type Classifier interface {
	Classify(ctx context.Context, text string) domain.Intent
}

// LLMClassifier asks the generation capability for a one-word intent label.
type LLMClassifier struct {
	gen     Generator
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewLLMClassifier(gen Generator, model string, timeout time.Duration, logger *zap.Logger) *LLMClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClassifier{gen: gen, model: model, timeout: timeout, logger: logger}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) domain.Intent {
	raw, err := callWithTimeout(ctx, c.timeout, func(ctx context.Context) (string, error) {
		return c.gen.Generate(ctx, domain.Prompt{
			Model: c.model,
			User:  buildClassifierPrompt(text),
		})
	})
	if err != nil {
		c.logger.Warn("intent classification failed, assuming game related", zap.Error(err))
		return domain.IntentGameRelated
	}
	return parseIntent(raw)
}

func parseIntent(raw string) domain.Intent {
	label := strings.ToUpper(strings.TrimSpace(raw))
	if strings.Contains(label, string(domain.IntentOffTopic)) {
		return domain.IntentOffTopic
	}
	return domain.IntentGameRelated
}
