package domain

import (
	"slices"
	"sort"
)

// ConversationState is the per-session state owned by the session store.
type ConversationState struct {
	ChatHistory          []ChatMessage `json:"chat_history"`
	HintLevel            int           `json:"hint_level"`
	LastQuestionID       string        `json:"last_question_id"`
	LastQuestionKeywords []string      `json:"last_question_keywords"`

	// Version is bumped on every persisted write and used for optimistic
	// concurrency by the persistence backends.
	Version int64 `json:"version"`
}

// NewConversationState returns the state of a session on first contact.
func NewConversationState() ConversationState {
	return ConversationState{HintLevel: 1}
}

// Clone returns a deep copy so callers can derive a next state without
// aliasing the stored slices.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.ChatHistory = slices.Clone(s.ChatHistory)
	out.LastQuestionKeywords = slices.Clone(s.LastQuestionKeywords)
	return out
}

// Normalize repairs zero values read from storage.
func (s ConversationState) Normalize() ConversationState {
	if s.HintLevel < 1 {
		s.HintLevel = 1
	}
	return s
}

// KeywordSet builds a set from a keyword list.
func KeywordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// SortedKeywords returns the members of set in a stable order.
func SortedKeywords(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
