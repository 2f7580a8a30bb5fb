package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"hint-agent/internal/domain"
)

// Verifier gates candidate hints on specificity and groundedness.
type Verifier struct {
	gen     Generator
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewVerifier(gen Generator, model string, timeout time.Duration, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{gen: gen, model: model, timeout: timeout, logger: logger}
}

// Verify returns exactly one verdict. Upstream failures map to API_ERROR and
// every other failure, including unparseable output, to VERIFICATION_ERROR.
func (v *Verifier) Verify(ctx context.Context, question, hint, contextText string) domain.Verdict {
	raw, err := callWithTimeout(ctx, v.timeout, func(ctx context.Context) (string, error) {
		return v.gen.Generate(ctx, domain.Prompt{
			Model: v.model,
			User:  buildVerifierPrompt(question, hint, contextText),
		})
	})
	if err != nil {
		if isUpstreamFailure(err) {
			status, _ := upstreamStatusCode(err)
			v.logger.Warn("verifier: upstream failure", zap.Int("status", status), zap.Error(err))
			return domain.VerdictAPIError
		}
		v.logger.Warn("verifier: unexpected failure", zap.Error(err))
		return domain.VerdictVerificationError
	}

	verdict, ok := ParseVerdict(raw)
	if !ok {
		v.logger.Warn("verifier: unrecognized verdict", zap.String("raw", truncate(raw, 80)))
		return domain.VerdictVerificationError
	}
	v.logger.Info("verifier: verdict", zap.String("verdict", string(verdict)))
	return verdict
}

var judgeVerdicts = map[string]domain.Verdict{
	string(domain.VerdictVerified):            domain.VerdictVerified,
	string(domain.VerdictTooSpecific):         domain.VerdictTooSpecific,
	string(domain.VerdictHallucinated):        domain.VerdictHallucinated,
	string(domain.VerdictInsufficientContext): domain.VerdictInsufficientContext,
}

// ParseVerdict accepts one of the four judgement words, tolerating case,
// surrounding quotes and trailing punctuation. Anything else is rejected.
func ParseVerdict(raw string) (domain.Verdict, bool) {
	word := strings.ToUpper(strings.TrimSpace(raw))
	word = strings.Trim(word, " \t\r\n\"'`.!*")
	verdict, ok := judgeVerdicts[word]
	return verdict, ok
}
