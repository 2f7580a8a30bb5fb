package usecase

import "hint-agent/internal/domain"

const defaultOverlapThreshold = 2

// EscalationDetector decides whether a turn continues the previous question.
type EscalationDetector struct {
	vague     PatternTable
	threshold int
}

// NewEscalationDetector builds a detector. A threshold below one falls back to
// the default of two shared keywords.
func NewEscalationDetector(vague PatternTable, threshold int) EscalationDetector {
	if threshold < 1 {
		threshold = defaultOverlapThreshold
	}
	return EscalationDetector{vague: vague, threshold: threshold}
}

// IsVagueContinuation matches phrases like "still stuck". It only counts when
// there is history to continue from.
func (d EscalationDetector) IsVagueContinuation(text string, history []domain.ChatMessage) bool {
	return len(history) > 0 && d.vague.Match(text)
}

// RepeatReason explains why a turn was treated as a repeat.
type RepeatReason string

const (
	RepeatNone       RepeatReason = ""
	RepeatKeywords   RepeatReason = "keyword_overlap"
	RepeatExactMatch RepeatReason = "exact_match"
)

// IsRepeat compares the current question with the last new question.
func (d EscalationDetector) IsRepeat(text string, keywords map[string]struct{}, state domain.ConversationState) (RepeatReason, int) {
	overlap := KeywordOverlap(keywords, domain.KeywordSet(state.LastQuestionKeywords))
	switch {
	case overlap >= d.threshold:
		return RepeatKeywords, overlap
	case state.LastQuestionID != "" && text == state.LastQuestionID:
		return RepeatExactMatch, overlap
	default:
		return RepeatNone, overlap
	}
}
