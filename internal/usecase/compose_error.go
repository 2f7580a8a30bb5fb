package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"hint-agent/internal/domain"
)

// ErrorComposer writes an in-character clarification when verification fails.
type ErrorComposer struct {
	gen     Generator
	model   string
	persona Persona
	guard   Guardrail
	timeout time.Duration
	logger  *zap.Logger
}

func NewErrorComposer(gen Generator, model string, persona Persona, guard Guardrail, timeout time.Duration, logger *zap.Logger) *ErrorComposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorComposer{gen: gen, model: model, persona: persona, guard: guard, timeout: timeout, logger: logger}
}

// Compose never sees the rejected hint, so its text cannot leak into the reply.
func (c *ErrorComposer) Compose(ctx context.Context, question string, verdict domain.Verdict) (string, domain.FallbackTier) {
	out, err := callWithTimeout(ctx, c.timeout, func(ctx context.Context) (string, error) {
		return c.gen.Generate(ctx, domain.Prompt{
			Model:       c.model,
			User:        buildErrorPrompt(c.persona, question, verdict),
			Temperature: 0.7,
		})
	})
	out = strings.TrimSpace(out)

	switch {
	case err != nil && isUpstreamFailure(err):
		c.logger.Warn("error composer: upstream failure, using fallback", zap.Error(err))
		return c.persona.errorUpstreamFallback(), domain.TierUpstream
	case err != nil || out == "":
		c.logger.Warn("error composer: unexpected failure, using fallback", zap.Error(err))
		return c.persona.errorUnexpectedFallback(), domain.TierUnexpected
	}

	if hits := c.guard.Violations(out); len(hits) > 0 {
		c.logger.Warn("error composer: guardrail triggered", zap.Strings("terms", hits))
		return c.persona.errorGuardrailFallback(), domain.TierGuardrail
	}
	return out, domain.TierGenerated
}
