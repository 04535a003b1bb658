package retrieval

import "context"

// Chunk is an embedded text fragment with its ingestion metadata
// (document_id, chunk_index, page, source_url, document_name, journey flags).
type Chunk struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// ScoredChunk pairs a chunk with its cosine distance to the query. Lower is closer.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Filter keeps chunks where at least one of the listed boolean metadata flags is true.
type Filter struct {
	AnyOf []string
}

// JourneyFilter restricts evidence to universal chunks and chunks tagged for the journey.
// An empty slug means no filter.
func JourneyFilter(journeySlug string) *Filter {
	if journeySlug == "" {
		return nil
	}
	return &Filter{AnyOf: []string{"is_universal", "journey_" + journeySlug}}
}

// Index is the read-only evidence corpus.
type Index interface {
	ListCollections(ctx context.Context) ([]string, error)
	SimilaritySearch(ctx context.Context, collection, query string, k int, filter *Filter) ([]ScoredChunk, error)
}

// NopIndex is an empty corpus.
type NopIndex struct{}

func (NopIndex) ListCollections(context.Context) ([]string, error) { return nil, nil }

func (NopIndex) SimilaritySearch(context.Context, string, string, int, *Filter) ([]ScoredChunk, error) {
	return nil, nil
}
