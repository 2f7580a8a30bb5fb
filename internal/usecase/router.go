package usecase

import (
	"context"

	"go.uber.org/zap"

	"hint-agent/internal/domain"
)

// Route is the router's decision for one turn.
type Route struct {
	Decision          domain.Decision
	Intent            domain.Intent
	EffectiveQuestion string
	Repeat            RepeatReason
	Overlap           int
}

// Router composes pattern tables, the escalation detector and the advisory
// classifier into a routing decision plus the next conversation state.
type Router struct {
	smalltalk  PatternTable
	escalation EscalationDetector
	classifier Classifier
	logger     *zap.Logger
}

func NewRouter(smalltalk PatternTable, escalation EscalationDetector, classifier Classifier, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{smalltalk: smalltalk, escalation: escalation, classifier: classifier, logger: logger}
}

// Route never mutates state in place; the returned state is what the session
// should hold if the run reaches a terminal transition.
func (r *Router) Route(ctx context.Context, text string, state domain.ConversationState) (Route, domain.ConversationState) {
	next := state.Clone().Normalize()

	if r.smalltalk.Match(text) {
		r.logger.Debug("router: smalltalk", zap.String("input", truncate(text, 80)))
		return Route{Decision: domain.DecisionSmalltalk, EffectiveQuestion: text}, next
	}

	if r.escalation.IsVagueContinuation(text, state.ChatHistory) {
		effective := text
		if state.LastQuestionID != "" {
			effective = state.LastQuestionID
		}
		next.HintLevel++
		r.logger.Info("router: vague escalation",
			zap.String("input", truncate(text, 80)),
			zap.String("effective_question", truncate(effective, 80)),
			zap.Int("hint_level", next.HintLevel))
		return Route{Decision: domain.DecisionEscalate, Intent: domain.IntentGameRelated, EffectiveQuestion: effective}, next
	}

	intent := domain.IntentGameRelated
	if r.classifier != nil {
		intent = r.classifier.Classify(ctx, text)
	}
	if intent == domain.IntentOffTopic {
		r.logger.Info("router: classifier flagged off topic, continuing", zap.String("input", truncate(text, 80)))
	}

	keywords := ExtractKeywords(text)
	reason, overlap := r.escalation.IsRepeat(text, keywords, state)
	if reason != RepeatNone {
		effective := text
		if state.LastQuestionID != "" {
			effective = state.LastQuestionID
		}
		next.HintLevel++
		r.logger.Info("router: repeat question",
			zap.String("reason", string(reason)),
			zap.Int("overlap", overlap),
			zap.Int("hint_level", next.HintLevel))
		return Route{Decision: domain.DecisionEscalate, Intent: intent, EffectiveQuestion: effective, Repeat: reason, Overlap: overlap}, next
	}

	next.LastQuestionID = text
	next.LastQuestionKeywords = domain.SortedKeywords(keywords)
	next.HintLevel = 1

	decision := domain.DecisionNew
	if intent == domain.IntentOffTopic {
		decision = domain.DecisionPassthroughAdvisory
	}
	r.logger.Info("router: new question", zap.String("decision", string(decision)), zap.Int("overlap", overlap))
	return Route{Decision: decision, Intent: intent, EffectiveQuestion: text, Overlap: overlap}, next
}
