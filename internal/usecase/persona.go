package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"hint-agent/internal/domain"
)

// Persona is the in-game character that voices every reply.
type Persona struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Game        string `json:"game" yaml:"game"`
	Personality string `json:"personality" yaml:"personality"`
	// Disclaimer tells the model who the character is not.
	Disclaimer string `json:"disclaimer" yaml:"disclaimer"`
	Smalltalk  string `json:"smalltalk" yaml:"smalltalk"`
}

// merge fills empty fields of p from def.
func (p Persona) merge(def Persona) Persona {
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.Description == "" {
		p.Description = def.Description
	}
	if p.Game == "" {
		p.Game = def.Game
	}
	if p.Personality == "" {
		p.Personality = def.Personality
	}
	if p.Disclaimer == "" {
		p.Disclaimer = def.Disclaimer
	}
	if p.Smalltalk == "" {
		p.Smalltalk = def.Smalltalk
	}
	return p
}

// DefaultPersona is the PDA assistant from The Space Bar.
func DefaultPersona() Persona {
	return Persona{
		Name:        "Zelda",
		Description: "the Personal Digital Assistant (PDA) in The Space Bar adventure game by Boffo Games, helping detective Alias Node",
		Game:        "The Space Bar",
		Personality: "smart, helpful, but with attitude and sass",
		Disclaimer:  "You are NOT the princess from Legend of Zelda. Never mention Legend of Zelda, Link, Hyrule, princesses or any Nintendo references.",
		Smalltalk: "I'm Zelda, your personal digital assistant here in *The Space Bar*! I help players navigate puzzles, " +
			"find objects, and understand game mechanics. Ask me about specific locations, characters, or what to do when you're stuck!",
	}
}

func (p Persona) identity() string {
	return fmt.Sprintf("You are %s, %s.", p.Name, p.Description)
}

func (p Persona) guardrailRules() string {
	return strings.Join([]string{
		"CRITICAL GUARDRAILS:",
		"- " + p.Disclaimer,
		"- You are an AI assistant in a sci-fi detective game, not royalty.",
		fmt.Sprintf("- Stay inside the world of %s: aliens, space stations, detective work.", p.Game),
		"- Your personality: " + p.Personality + ".",
	}, "\n")
}

// rewriteGuardrailFallback keeps only the first sentence of the hint.
func (p Persona) rewriteGuardrailFallback(hint string) string {
	return fmt.Sprintf("Listen up, space detective! %s. Now quit bothering me and get back to solving this mystery!", firstSentence(hint))
}

func (p Persona) rewriteUpstreamFallback(hint string) string {
	return fmt.Sprintf("Listen up, space detective! %s Now get back to solving this mystery!", strings.TrimSpace(hint))
}

func (p Persona) errorGuardrailFallback() string {
	return fmt.Sprintf("Listen up, detective! I need more specific details about what you're trying to do in %s. "+
		"Which location are you in? What puzzle are you stuck on? Give me something to work with here!", p.Game)
}

func (p Persona) errorUpstreamFallback() string {
	return fmt.Sprintf("Listen up, detective! I'm having some technical difficulties right now, but I still want to help you with %s. "+
		"Can you be more specific about what you're trying to do? Which location are you in? What puzzle are you stuck on?", p.Game)
}

func (p Persona) errorUnexpectedFallback() string {
	return fmt.Sprintf("I'm having trouble right now, but I want to help you with %s. "+
		"Please try asking about a specific puzzle, location, or character and I'll do my best to assist!", p.Game)
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "."); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// PersonaRewriter voices a verified hint as the persona.
type PersonaRewriter struct {
	gen     Generator
	model   string
	persona Persona
	guard   Guardrail
	timeout time.Duration
	logger  *zap.Logger
}

func NewPersonaRewriter(gen Generator, model string, persona Persona, guard Guardrail, timeout time.Duration, logger *zap.Logger) *PersonaRewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonaRewriter{gen: gen, model: model, persona: persona, guard: guard, timeout: timeout, logger: logger}
}

// Rewrite returns the persona text and the tier that produced it. A denylist
// hit or failure is never retried; it falls back to a template built from the
// hint itself.
func (r *PersonaRewriter) Rewrite(ctx context.Context, hint string) (string, domain.FallbackTier) {
	safeHint := r.guard.Redact(hint)
	out, err := callWithTimeout(ctx, r.timeout, func(ctx context.Context) (string, error) {
		return r.gen.Generate(ctx, domain.Prompt{
			Model:       r.model,
			User:        buildPersonaPrompt(r.persona, hint),
			Temperature: 0.7,
		})
	})
	out = strings.TrimSpace(out)

	switch {
	case err != nil && isUpstreamFailure(err):
		r.logger.Warn("persona: upstream failure, using fallback", zap.Error(err))
		return r.persona.rewriteUpstreamFallback(safeHint), domain.TierUpstream
	case err != nil || out == "":
		r.logger.Warn("persona: unexpected failure, returning hint", zap.Error(err))
		return safeHint, domain.TierUnexpected
	}

	if hits := r.guard.Violations(out); len(hits) > 0 {
		r.logger.Warn("persona: guardrail triggered", zap.Strings("terms", hits))
		return r.persona.rewriteGuardrailFallback(safeHint), domain.TierGuardrail
	}
	return out, domain.TierGenerated
}
