package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hint-agent/internal/domain"
)

type graphState int

const (
	stateStart graphState = iota
	stateRoute
	stateFindHint
	stateVerify
	stateRewrite
	stateFormat
	stateComposeError
	stateEnd
)

var graphStateNames = map[graphState]string{
	stateStart:        "START",
	stateRoute:        "ROUTE",
	stateFindHint:     "FIND_HINT",
	stateVerify:       "VERIFY",
	stateRewrite:      "REWRITE",
	stateFormat:       "FORMAT",
	stateComposeError: "COMPOSE_ERROR",
	stateEnd:          "END",
}

func (s graphState) String() string {
	if name, ok := graphStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("graphState(%d)", int(s))
}

// maxTransitions bounds one run; the graph is acyclic so a healthy run uses at most six.
const maxTransitions = 8

// Graph sequences the pipeline for one request.
type Graph struct {
	router    *Router
	finder    *HintFinder
	verifier  *Verifier
	rewriter  *PersonaRewriter
	composer  *ErrorComposer
	formatter OutputFormatter
	persona   Persona
	logger    *zap.Logger
}

// GraphDeps are the nodes wired into a Graph.
type GraphDeps struct {
	Router    *Router
	Finder    *HintFinder
	Verifier  *Verifier
	Rewriter  *PersonaRewriter
	Composer  *ErrorComposer
	Formatter OutputFormatter
	Persona   Persona
	Logger    *zap.Logger
}

func NewGraph(d GraphDeps) (*Graph, error) {
	if d.Router == nil || d.Finder == nil || d.Verifier == nil || d.Rewriter == nil || d.Composer == nil {
		return nil, fmt.Errorf("usecase: graph requires router, hint finder, verifier, rewriter and error composer")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Formatter.maxHistory == 0 {
		d.Formatter = NewOutputFormatter(0)
	}
	return &Graph{
		router:    d.Router,
		finder:    d.Finder,
		verifier:  d.Verifier,
		rewriter:  d.Rewriter,
		composer:  d.Composer,
		formatter: d.Formatter,
		persona:   d.Persona,
		logger:    d.Logger,
	}, nil
}

// Run executes one pass over the state machine. in is the state read at START;
// the returned state is what must be written at the terminal transition.
func (g *Graph) Run(ctx context.Context, text string, in domain.ConversationState) (domain.TurnResult, domain.ConversationState) {
	var (
		res     domain.TurnResult
		route   Route
		next    = in.Clone().Normalize()
		current = stateStart
		hint    HintCandidate
	)

	for steps := 0; current != stateEnd; steps++ {
		if steps >= maxTransitions {
			g.logger.Error("graph: transition budget exhausted", zap.Strings("path", res.Path))
			res.Text, res.FallbackTier = g.persona.errorUnexpectedFallback(), domain.TierUnexpected
			break
		}
		res.Path = append(res.Path, current.String())

		switch current {
		case stateStart:
			current = stateRoute

		case stateRoute:
			route, next = g.router.Route(ctx, text, next)
			res.Decision = route.Decision
			res.Intent = route.Intent
			res.EffectiveQuestion = route.EffectiveQuestion
			res.HintLevel = next.HintLevel
			if route.Decision == domain.DecisionSmalltalk {
				res.Text, res.FallbackTier = g.persona.Smalltalk, domain.TierCanned
				current = stateEnd
				continue
			}
			current = stateFindHint

		case stateFindHint:
			hint = g.finder.FindHint(ctx, res.EffectiveQuestion, res.HintLevel)
			res.CandidateHint = hint.Hint
			res.Context = hint.Context
			current = stateVerify

		case stateVerify:
			res.Verdict = g.verifier.Verify(ctx, res.EffectiveQuestion, hint.Hint, hint.Context)
			if res.Verdict.Passed() {
				current = stateRewrite
			} else {
				current = stateComposeError
			}

		case stateRewrite:
			res.Text, res.FallbackTier = g.rewriter.Rewrite(ctx, hint.Hint)
			current = stateFormat

		case stateFormat:
			res.Text, next.ChatHistory = g.formatter.Format(res.Text, res.HintLevel, res.EffectiveQuestion, next.ChatHistory)
			current = stateEnd

		case stateComposeError:
			res.Text, res.FallbackTier = g.composer.Compose(ctx, res.EffectiveQuestion, res.Verdict)
			current = stateEnd

		default:
			g.logger.Error("graph: unknown state", zap.Stringer("state", current))
			res.Text, res.FallbackTier = g.persona.errorUnexpectedFallback(), domain.TierUnexpected
			current = stateEnd
		}
	}
	res.Path = append(res.Path, stateEnd.String())

	g.logger.Info("graph: run complete",
		zap.String("decision", string(res.Decision)),
		zap.Int("hint_level", res.HintLevel),
		zap.String("verdict", string(res.Verdict)),
		zap.String("fallback_tier", string(res.FallbackTier)),
		zap.Strings("path", res.Path))
	return res, next
}
