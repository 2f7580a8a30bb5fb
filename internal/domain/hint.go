package domain

// Decision is the routing outcome for one turn.
type Decision string

const (
	DecisionSmalltalk           Decision = "SMALLTALK"
	DecisionEscalate            Decision = "ESCALATE"
	DecisionNew                 Decision = "NEW"
	DecisionPassthroughAdvisory Decision = "PASSTHROUGH_ADVISORY"
)

// Intent is the advisory classifier signal.
type Intent string

const (
	IntentGameRelated Intent = "GAME_RELATED"
	IntentOffTopic    Intent = "OFF_TOPIC"
)

// Verdict is the fixed vocabulary returned by the verification gate.
type Verdict string

const (
	VerdictVerified            Verdict = "VERIFIED"
	VerdictTooSpecific         Verdict = "TOO_SPECIFIC"
	VerdictHallucinated        Verdict = "HALLUCINATED"
	VerdictInsufficientContext Verdict = "INSUFFICIENT_CONTEXT"
	VerdictAPIError            Verdict = "API_ERROR"
	VerdictVerificationError   Verdict = "VERIFICATION_ERROR"
)

// Passed reports whether the verdict allows the hint to reach the player.
func (v Verdict) Passed() bool {
	return v == VerdictVerified
}

// ChunkMetadata describes where a fact chunk came from.
type ChunkMetadata struct {
	Source    string `json:"source" yaml:"source"`
	HintLevel int    `json:"hint_level" yaml:"hint_level"`
	ChunkID   string `json:"chunk_id" yaml:"chunk_id"`
}

// Chunk is one ranked retrieval result.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

// RetrievalQuery asks for at most K chunks. A MaxLevel of zero disables the
// hint-level filter.
type RetrievalQuery struct {
	Text     string
	MaxLevel int
	K        int
}

// Filtered reports whether the query restricts chunks by hint level.
func (q RetrievalQuery) Filtered() bool {
	return q.MaxLevel > 0
}

// TurnResult is everything a single graph run produced. Only the fields folded
// back into ConversationState outlive the call.
type TurnResult struct {
	Decision          Decision
	Intent            Intent
	EffectiveQuestion string
	HintLevel         int
	Context           string
	CandidateHint     string
	Verdict           Verdict
	FallbackTier      FallbackTier
	Text              string
	// Path lists the graph states visited, in order.
	Path []string
}

// FallbackTier records which output path produced the final text.
type FallbackTier string

const (
	TierGenerated  FallbackTier = "generated"
	TierGuardrail  FallbackTier = "guardrail"
	TierUpstream   FallbackTier = "upstream"
	TierUnexpected FallbackTier = "unexpected"
	TierCanned     FallbackTier = "canned"
)
