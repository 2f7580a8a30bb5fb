package usecase

import (
	"regexp"
	"strings"
)

// DefaultDenylist holds terms that must never reach the player.
var DefaultDenylist = []string{"legend of zelda", "hyrule", "princess", "nintendo", "triforce"}

const redaction = "[redacted]"

// Guardrail is a case-insensitive denylist scan over generated text.
type Guardrail struct {
	terms []string
	re    *regexp.Regexp
}

func NewGuardrail(terms ...string) Guardrail {
	g := Guardrail{}
	seen := make(map[string]struct{}, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		g.terms = append(g.terms, t)
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	if len(quoted) > 0 {
		g.re = regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
	}
	return g
}

// Violations lists the denylisted terms found in text.
func (g Guardrail) Violations(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, t := range g.terms {
		if strings.Contains(lower, t) {
			found = append(found, t)
		}
	}
	return found
}

func (g Guardrail) Clean(text string) bool {
	return len(g.Violations(text)) == 0
}

// Redact replaces every denylisted term so template fallbacks built from
// untrusted text stay clean.
func (g Guardrail) Redact(text string) string {
	if g.re == nil {
		return text
	}
	return g.re.ReplaceAllString(text, redaction)
}
