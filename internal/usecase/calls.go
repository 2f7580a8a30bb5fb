package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hint-agent/internal/domain"
)

// Generator is the generation capability used for classification, hint
// extraction, verification and persona text.
type Generator interface {
	Generate(ctx context.Context, p domain.Prompt) (string, error)
}

// Retriever is the retrieval gateway. Implementations must return an empty
// slice, not an error, when a level filter matches nothing.
type Retriever interface {
	Retrieve(ctx context.Context, q domain.RetrievalQuery) ([]domain.Chunk, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

var errRecovered = errors.New("usecase: recovered panic")

// callWithTimeout bounds one external call. Panics inside fn surface as errors
// so a misbehaving provider lands in the unexpected fallback tier.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (out T, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out, err = zero, fmt.Errorf("%w: %v", errRecovered, r)
		}
	}()
	return fn(ctx)
}

// isUpstreamFailure reports transport, authentication and API failures,
// including timeouts.
func isUpstreamFailure(err error) bool {
	if err == nil {
		return false
	}
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
