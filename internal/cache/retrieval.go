// Package cache keeps recent retrieval results so repeated questions (the
// common escalation path) skip the retrieval backend.
package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"hint-agent/internal/domain"
)

const (
	DefaultSize = 256
	DefaultTTL  = 10 * time.Minute
)

// Retriever is the retrieval gateway being cached.
type Retriever interface {
	Retrieve(ctx context.Context, q domain.RetrievalQuery) ([]domain.Chunk, error)
}

type key struct {
	text     string
	maxLevel int
	k        int
}

// Retrieval is a bounded, expiring cache in front of a Retriever. Errors are
// never cached.
type Retrieval struct {
	next   Retriever
	lru    *expirable.LRU[key, []domain.Chunk]
	logger *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

type Option func(*Retrieval)

// WithLogger reports every lookup at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retrieval) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRetrieval wraps next. Non-positive size or ttl fall back to defaults.
func NewRetrieval(next Retriever, size int, ttl time.Duration, opts ...Option) *Retrieval {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Retrieval{
		next:   next,
		lru:    expirable.NewLRU[key, []domain.Chunk](size, nil, ttl),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrieval) Retrieve(ctx context.Context, q domain.RetrievalQuery) ([]domain.Chunk, error) {
	k := key{text: strings.ToLower(strings.TrimSpace(q.Text)), maxLevel: q.MaxLevel, k: q.K}
	if chunks, ok := r.lru.Get(k); ok {
		r.hits.Add(1)
		r.logLookup(true)
		return cloneChunks(chunks), nil
	}
	r.misses.Add(1)
	r.logLookup(false)

	chunks, err := r.next.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}
	r.lru.Add(k, cloneChunks(chunks))
	return chunks, nil
}

// Stats returns hit and miss counts.
func (r *Retrieval) Stats() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}

// LogStats writes the running totals at info level.
func (r *Retrieval) LogStats() {
	hits, misses := r.Stats()
	r.logger.Info("retrieval cache stats",
		zap.Int64("hits", hits), zap.Int64("misses", misses), zap.Int("entries", r.lru.Len()))
}

func (r *Retrieval) logLookup(hit bool) {
	if ce := r.logger.Check(zap.DebugLevel, "retrieval cache lookup"); ce != nil {
		hits, misses := r.Stats()
		ce.Write(zap.Bool("hit", hit), zap.Int64("hits", hits), zap.Int64("misses", misses))
	}
}

func cloneChunks(in []domain.Chunk) []domain.Chunk {
	if in == nil {
		return nil
	}
	return append([]domain.Chunk(nil), in...)
}
