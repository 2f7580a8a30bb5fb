package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"hint-agent/internal/domain"
)

const defaultRetrievalK = 5

// HintCandidate is the fact-only hint plus the context that supports it.
type HintCandidate struct {
	Hint     string
	Context  string
	Chunks   int
	Filtered bool
}

// HintFinder drives retrieval and produces a fact-only candidate hint.
type HintFinder struct {
	retriever Retriever
	gen       Generator
	model     string
	k         int
	timeout   time.Duration
	logger    *zap.Logger
}

func NewHintFinder(retriever Retriever, gen Generator, model string, k int, timeout time.Duration, logger *zap.Logger) *HintFinder {
	if k <= 0 {
		k = defaultRetrievalK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HintFinder{retriever: retriever, gen: gen, model: model, k: k, timeout: timeout, logger: logger}
}

// FindHint never fails. Retrieval misses and generation failures surface as the
// "not enough detail" sentinel so the verifier and persona steps still run.
func (f *HintFinder) FindHint(ctx context.Context, question string, hintLevel int) HintCandidate {
	question = normalizePromptInput(question)
	chunks, filtered := f.retrieve(ctx, question, hintLevel)
	if len(chunks) == 0 {
		f.logger.Info("hint finder: no context retrieved", zap.Int("hint_level", hintLevel))
		return HintCandidate{Hint: SentinelNotEnough}
	}

	contextText := renderContext(chunks)
	prompt := buildHintPrompt(question, contextText)
	prompt.Model = f.model
	raw, err := callWithTimeout(ctx, f.timeout, func(ctx context.Context) (string, error) {
		return f.gen.Generate(ctx, prompt)
	})
	hint := strings.TrimSpace(raw)
	if err != nil || hint == "" {
		f.logger.Warn("hint finder: generation failed, using sentinel", zap.Error(err))
		hint = SentinelNotEnough
	}

	f.logger.Info("hint finder: candidate ready",
		zap.Int("chunks", len(chunks)),
		zap.Bool("level_filtered", filtered),
		zap.Int("hint_level", hintLevel),
		zap.String("hint", truncate(hint, 100)))
	return HintCandidate{Hint: hint, Context: contextText, Chunks: len(chunks), Filtered: filtered}
}

// retrieve asks for chunks at or below hintLevel and falls back to an
// unfiltered query when the filter yields nothing.
func (f *HintFinder) retrieve(ctx context.Context, question string, hintLevel int) ([]domain.Chunk, bool) {
	if f.retriever == nil {
		return nil, false
	}
	filtered, err := f.query(ctx, domain.RetrievalQuery{Text: question, MaxLevel: hintLevel, K: f.k})
	if err == nil && len(filtered) > 0 {
		return filtered, true
	}
	if err != nil {
		f.logger.Warn("hint finder: level-filtered retrieval failed", zap.Error(err))
	}
	f.logger.Info("hint finder: falling back to unfiltered retrieval", zap.Int("hint_level", hintLevel))

	all, err := f.query(ctx, domain.RetrievalQuery{Text: question, K: f.k})
	if err != nil {
		f.logger.Warn("hint finder: unfiltered retrieval failed", zap.Error(err))
		return nil, false
	}
	return all, false
}

func (f *HintFinder) query(ctx context.Context, q domain.RetrievalQuery) ([]domain.Chunk, error) {
	return callWithTimeout(ctx, f.timeout, func(ctx context.Context) ([]domain.Chunk, error) {
		return f.retriever.Retrieve(ctx, q)
	})
}
