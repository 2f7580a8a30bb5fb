// Package bleveindex serves hint chunks from an in-memory bleve full-text
// index, for running the engine without the remote retrieval service.
package bleveindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"gopkg.in/yaml.v3"

	"hint-agent/internal/domain"
)

const (
	fieldText      = "text"
	fieldSource    = "source"
	fieldHintLevel = "hint_level"
	fieldChunkID   = "chunk_id"

	defaultK = 5
)

// Entry is one chunk as written in a chunk file.
type Entry struct {
	ChunkID   string `yaml:"chunk_id"`
	Text      string `yaml:"text"`
	Source    string `yaml:"source"`
	HintLevel int    `yaml:"hint_level"`
}

type chunkFile struct {
	Chunks []Entry `yaml:"chunks"`
}

// Index is a read-only retrieval gateway over a fixed set of chunks.
type Index struct {
	index bleve.Index
}

// LoadFile reads a YAML chunk file and indexes it.
func LoadFile(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bleveindex: read %s: %w", path, err)
	}
	var f chunkFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("bleveindex: parse %s: %w", path, err)
	}
	return New(f.Chunks)
}

// New builds a memory-only index over entries. Entries without a chunk id get
// a positional one.
func New(entries []Entry) (*Index, error) {
	if len(entries) == 0 {
		return nil, errors.New("bleveindex: no chunks to index")
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("bleveindex: create index: %w", err)
	}

	batch := idx.NewBatch()
	for i, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			_ = idx.Close()
			return nil, fmt.Errorf("bleveindex: chunk %d has no text", i)
		}
		if e.HintLevel < 1 {
			e.HintLevel = 1
		}
		id := e.ChunkID
		if id == "" {
			id = "chunk-" + strconv.Itoa(i)
		}
		doc := map[string]interface{}{
			fieldText:      e.Text,
			fieldSource:    e.Source,
			fieldHintLevel: float64(e.HintLevel),
			fieldChunkID:   id,
		}
		if err := batch.Index(id, doc); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("bleveindex: index %s: %w", id, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("bleveindex: apply batch: %w", err)
	}
	return &Index{index: idx}, nil
}

// Retrieve runs a match query over chunk text, restricted to hint levels at or
// below q.MaxLevel when the query is filtered.
func (x *Index) Retrieve(ctx context.Context, q domain.RetrievalQuery) ([]domain.Chunk, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	k := q.K
	if k <= 0 {
		k = defaultK
	}
	req := bleve.NewSearchRequest(buildQuery(q))
	req.Size = k
	req.Fields = []string{"*"}

	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleveindex: search: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(res.Hits))
	for _, hit := range res.Hits {
		chunks = append(chunks, domain.Chunk{
			Text:  stringField(hit.Fields, fieldText),
			Score: hit.Score,
			Metadata: domain.ChunkMetadata{
				Source:    stringField(hit.Fields, fieldSource),
				HintLevel: levelField(hit.Fields),
				ChunkID:   hit.ID,
			},
		})
	}
	return chunks, nil
}

// Count reports how many chunks are indexed.
func (x *Index) Count() (uint64, error) {
	return x.index.DocCount()
}

func (x *Index) Close() error {
	return x.index.Close()
}

func buildQuery(q domain.RetrievalQuery) query.Query {
	var text query.Query
	if strings.TrimSpace(q.Text) == "" {
		text = bleve.NewMatchAllQuery()
	} else {
		match := bleve.NewMatchQuery(q.Text)
		match.SetField(fieldText)
		text = match
	}
	if !q.Filtered() {
		return text
	}

	upper := float64(q.MaxLevel)
	inclusive := true
	level := bleve.NewNumericRangeInclusiveQuery(nil, &upper, nil, &inclusive)
	level.SetField(fieldHintLevel)

	return bleve.NewConjunctionQuery(text, level)
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

func levelField(fields map[string]interface{}) int {
	switch v := fields[fieldHintLevel].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
