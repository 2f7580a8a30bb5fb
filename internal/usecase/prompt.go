package usecase

import (
	"fmt"
	"strings"

	"hint-agent/internal/domain"
)

const (
	// SentinelMoreSpecific is returned by the hint finder for questions too
	// vague to answer from context.
	SentinelMoreSpecific = "Please provide more specific details about which puzzle or location you're having trouble with."
	// SentinelNotEnough is returned when the context holds nothing relevant.
	SentinelNotEnough = "The provided information doesn't contain enough details to answer this question."
)

func buildClassifierPrompt(text string) string {
	return strings.Join([]string{
		"You are a classifier for a point-and-click adventure game help desk.",
		"Decide whether the player's input is:",
		"1. GAME_RELATED: about the game (puzzles, characters, locations, items, mechanics, story, walkthrough help)",
		"2. OFF_TOPIC: about anything else (weather, jokes, other games, general chat)",
		"",
		"Examples of GAME_RELATED:",
		"- \"How do I find the token?\"",
		"- \"Where is the bus?\"",
		"- \"I'm stuck on this puzzle\"",
		"- \"How do I save the game?\"",
		"",
		"Examples of OFF_TOPIC:",
		"- \"What's the weather like?\"",
		"- \"Tell me a joke\"",
		"- \"How do I play Minecraft?\"",
		"",
		fmt.Sprintf("User input: %q", text),
		"",
		"Respond with exactly: GAME_RELATED or OFF_TOPIC",
	}, "\n")
}

func buildHintPrompt(question, context string) domain.Prompt {
	system := strings.Join([]string{
		"You are a knowledge retrieval system for an adventure game.",
		"Extract and return only factual information from the provided context.",
		"",
		"Rules:",
		"1) Use ONLY the information in the context.",
		"2) Do not add creative suggestions, general advice or invented details.",
		"3) Do not add personality or character voice.",
		"4) Answer even if terminology differs slightly (\"token\" vs \"bus token\").",
		"5) For location questions, look for any mention of where the item or person is.",
		fmt.Sprintf("6) For very general questions without a specific puzzle, location or item, respond exactly: %q", SentinelMoreSpecific),
		fmt.Sprintf("7) If the context contains nothing relevant, respond exactly: %q", SentinelNotEnough),
		"8) Return the relevant fact(s) as directly as possible.",
	}, "\n")
	user := fmt.Sprintf("Player's question:\n%s\n\nContext from game data:\n%s\n\nFactual response:", question, context)
	return domain.Prompt{System: system, User: user}
}

func buildVerifierPrompt(question, hint, context string) string {
	return strings.Join([]string{
		"You are a fact-checking system for a game hint service. Decide whether the generated",
		"hint matches the specificity of the player's question and is grounded in the game data.",
		"",
		"PLAYER QUESTION: " + question,
		"",
		"RETRIEVED GAME DATA:",
		context,
		"",
		"GENERATED HINT TO VERIFY:",
		hint,
		"",
		"Checks:",
		"1. Specificity: a vague question (\"help me\", \"what should I do\") must not receive a specific puzzle solution.",
		"2. Groundedness: every factual claim in the hint must be supported by the game data.",
		"3. Coverage: the game data must be sufficient to answer the specific question asked.",
		"",
		"Respond with ONLY one word:",
		"- VERIFIED if the hint fits the question's specificity and is supported by the data",
		"- TOO_SPECIFIC if the question was vague but the hint gives a specific solution",
		"- HALLUCINATED if the hint contains details not found in the data",
		"- INSUFFICIENT_CONTEXT if the data is not enough to answer the specific question",
	}, "\n")
}

func buildPersonaPrompt(p Persona, hint string) string {
	return strings.Join([]string{
		p.identity(),
		"",
		p.guardrailRules(),
		"",
		"Original hint: " + hint,
		"",
		fmt.Sprintf("Rewrite this hint in your own voice as %s. Keep every fact, add none.", p.Name),
	}, "\n")
}

func buildErrorPrompt(p Persona, question string, verdict domain.Verdict) string {
	return strings.Join([]string{
		p.identity(),
		fmt.Sprintf("The player asked a question about %s, but the hint system could not give a reliable answer.", p.Game),
		"",
		p.guardrailRules(),
		"",
		"Player's question: " + question,
		"Issue: " + verdictIssue(verdict),
		"",
		"Write a short reply that:",
		fmt.Sprintf("1. Acknowledges the question is about %s", p.Game),
		"2. Explains what extra detail you need",
		"3. Asks them to rephrase with a location, character, item or puzzle",
		"4. Stays in character",
		"Do not guess at the answer.",
	}, "\n")
}

func verdictIssue(v domain.Verdict) string {
	switch v {
	case domain.VerdictTooSpecific:
		return "The question was too vague to answer without giving away a specific solution."
	case domain.VerdictHallucinated:
		return "The available game data does not reliably support an answer."
	case domain.VerdictInsufficientContext:
		return "The game data does not cover this specific question."
	case domain.VerdictAPIError:
		return "The hint system is having technical difficulties."
	default:
		return "The hint system couldn't find reliable game data to answer this question."
	}
}

// renderContext formats chunks as numbered documents for the hint and
// verification prompts.
func renderContext(chunks []domain.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("Document %d: %s", i+1, text))
	}
	return strings.Join(parts, "\n\n")
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
