package usecase

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternTable is a named, data-driven list of case-insensitive expressions.
type PatternTable struct {
	name     string
	patterns []*regexp.Regexp
}

// NewPatternTable compiles exprs; every expression is matched case-insensitively.
func NewPatternTable(name string, exprs ...string) (PatternTable, error) {
	t := PatternTable{name: name}
	for _, expr := range exprs {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return PatternTable{}, fmt.Errorf("usecase: compile %s pattern %q: %w", name, expr, err)
		}
		t.patterns = append(t.patterns, re)
	}
	return t, nil
}

func mustPatternTable(name string, exprs ...string) PatternTable {
	t, err := NewPatternTable(name, exprs...)
	if err != nil {
		panic(err)
	}
	return t
}

// Extend returns a copy of t with the additional expressions appended.
func (t PatternTable) Extend(exprs ...string) (PatternTable, error) {
	extra, err := NewPatternTable(t.name, exprs...)
	if err != nil {
		return PatternTable{}, err
	}
	out := PatternTable{name: t.name}
	out.patterns = append(append(out.patterns, t.patterns...), extra.patterns...)
	return out, nil
}

// Match reports whether any expression matches text.
func (t PatternTable) Match(text string) bool {
	for _, re := range t.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (t PatternTable) Name() string { return t.name }

func (t PatternTable) Len() int { return len(t.patterns) }

// DefaultSmalltalkPatterns recognise questions about the assistant itself.
// Questions addressed to "you" only match as the whole message, since game
// questions use the same openings ("what do you do with the token").
var DefaultSmalltalkPatterns = []string{
	`^\s*what (can|do) you (help( me)? with|do)\s*[?!.]*\s*$`,
	`^\s*how (can|do|could) you help( me)?\s*[?!.]*\s*$`,
	`^\s*(who|what) are you\s*[?!.]*\s*$`,
	`^\s*what('?s| is) your (name|purpose|job)\s*[?!.]*\s*$`,
	`\bwhat (kind of|sort of )?(things|questions) can i ask\b`,
	`^\s*(hi|hello|hey|greetings|yo)( there)?[\s!.,?]*$`,
}

// DefaultEscalationPatterns recognise vague requests to go deeper on the
// previous question.
var DefaultEscalationPatterns = []string{
	`\bstill stuck\b`,
	`\b(i )?tried that\b`,
	`\bmore help\b`,
	`\b(another|a bigger|a better|a stronger|more of a|next) hint\b`,
	`\bmore (detail|details|specific|info|information)\b`,
	`\bthat (didn'?t|doesn'?t|did not|does not) (help|work)\b`,
	`\bstill (don'?t|can'?t|cannot|do not) (get|understand|figure|find|see)\b`,
	`\bwhat else\b`,
	`\b(be )?more explicit\b`,
	`\bi'?m still (lost|confused)\b`,
}

var (
	defaultSmalltalk  = mustPatternTable("smalltalk", DefaultSmalltalkPatterns...)
	defaultEscalation = mustPatternTable("escalation", DefaultEscalationPatterns...)
)
