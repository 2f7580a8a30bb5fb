package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hint-agent/internal/domain"
)

const (
	defaultMaxMessageLen   = 5000
	defaultRepeatThreshold = 2
	defaultCallTimeout     = 20 * time.Second
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// SessionStore serializes work on one session and persists the state fn returns.
type SessionStore interface {
	Run(ctx context.Context, sessionID string, fn func(domain.ConversationState) (domain.ConversationState, error)) error
	Delete(ctx context.Context, sessionID string) (bool, error)
}

// Models names the model used by each generation step.
type Models struct {
	Classifier string
	Hint       string
	Verifier   string
	Persona    string
	Error      string
}

type Options struct {
	Models          Models
	RetrievalK      int
	CallTimeout     time.Duration
	RepeatThreshold int
	MaxHistory      int
	MaxMessageLen   int
	// SmalltalkPatterns and EscalationPatterns extend the built-in tables.
	SmalltalkPatterns  []string
	EscalationPatterns []string
	// Denylist replaces DefaultDenylist when non-empty.
	Denylist []string
	Persona  Persona
	// Classifier overrides the generation-backed classifier.
	Classifier Classifier
	Logger     *zap.Logger
}

type HintService struct {
	sessions      SessionStore
	graph         *Graph
	maxMessageLen int
	logger        *zap.Logger
}

type TurnInput struct {
	SessionID string
	Text      string
}

type TurnOutput struct {
	Text      string
	SessionID string
	Result    domain.TurnResult
}

func NewHintService(gen Generator, retriever Retriever, sessions SessionStore, opts Options) (*HintService, error) {
	if gen == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	if retriever == nil {
		return nil, errors.New("usecase: retriever must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	threshold := opts.RepeatThreshold
	if threshold <= 0 {
		threshold = defaultRepeatThreshold
	}
	maxLen := opts.MaxMessageLen
	if maxLen <= 0 {
		maxLen = defaultMaxMessageLen
	}

	smalltalk, err := defaultSmalltalk.Extend(opts.SmalltalkPatterns...)
	if err != nil {
		return nil, err
	}
	vague, err := defaultEscalation.Extend(opts.EscalationPatterns...)
	if err != nil {
		return nil, err
	}
	logger.Debug("pattern tables loaded",
		zap.Int(smalltalk.Name(), smalltalk.Len()),
		zap.Int(vague.Name(), vague.Len()),
	)

	denylist := opts.Denylist
	if len(denylist) == 0 {
		denylist = DefaultDenylist
	}
	guard := NewGuardrail(denylist...)
	persona := opts.Persona.merge(DefaultPersona())
	if v := guard.Violations(persona.Smalltalk); len(v) > 0 {
		return nil, fmt.Errorf("usecase: persona smalltalk text contains denylisted terms %v", v)
	}

	classifier := opts.Classifier
	if classifier == nil {
		classifier = NewLLMClassifier(gen, opts.Models.Classifier, timeout, logger)
	}

	graph, err := NewGraph(GraphDeps{
		Router:    NewRouter(smalltalk, NewEscalationDetector(vague, threshold), classifier, logger),
		Finder:    NewHintFinder(retriever, gen, opts.Models.Hint, opts.RetrievalK, timeout, logger),
		Verifier:  NewVerifier(gen, opts.Models.Verifier, timeout, logger),
		Rewriter:  NewPersonaRewriter(gen, opts.Models.Persona, persona, guard, timeout, logger),
		Composer:  NewErrorComposer(gen, opts.Models.Error, persona, guard, timeout, logger),
		Formatter: NewOutputFormatter(opts.MaxHistory),
		Persona:   persona,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &HintService{
		sessions:      sessions,
		graph:         graph,
		maxMessageLen: maxLen,
		logger:        logger,
	}, nil
}

// SubmitTurn runs one player message through the graph under the session's lock.
func (s *HintService) SubmitTurn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return TurnOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(text) > s.maxMessageLen {
		return TurnOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newUUID()
	} else if !sessionIDPattern.MatchString(sessionID) {
		return TurnOutput{}, newError(ErrorInvalidInput, "invalid_session_id", nil)
	}

	var result domain.TurnResult
	err := s.sessions.Run(ctx, sessionID, func(state domain.ConversationState) (domain.ConversationState, error) {
		res, next := s.graph.Run(ctx, text, state)
		result = res
		return next, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrSessionLimit) {
			return TurnOutput{}, newError(ErrorSessionLimit, "max_sessions_reached", err)
		}
		s.logger.Error("submit turn: session store failure", zap.String("session_id", sessionID), zap.Error(err))
		return TurnOutput{}, newError(ErrorInternal, "session_store_error", err)
	}

	return TurnOutput{
		Text:      result.Text,
		SessionID: sessionID,
		Result:    result,
	}, nil
}

// ClearSession removes one session and reports whether it existed.
func (s *HintService) ClearSession(ctx context.Context, sessionID string) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if !sessionIDPattern.MatchString(sessionID) {
		return false, newError(ErrorInvalidInput, "invalid_session_id", nil)
	}
	removed, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return false, newError(ErrorInternal, "session_store_error", err)
	}
	s.logger.Info("session cleared", zap.String("session_id", sessionID), zap.Bool("existed", removed))
	return removed, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
