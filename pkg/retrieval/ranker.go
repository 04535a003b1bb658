package retrieval

import (
	"context"
	"sort"
	"strings"

	"sdm-platform-be/internal/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const moduleName = "retrieval"

type Config struct {
	CollectionPrefix string
	MaxCollections   int
	PerCollectionK   int
	MaxResults       int
	// MaxDistance is exclusive: a chunk scoring exactly MaxDistance is dropped.
	MaxDistance float64
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		CollectionPrefix: "doc_",
		MaxCollections:   50,
		PerCollectionK:   2,
		MaxResults:       5,
		MaxDistance:      0.5,
		Concurrency:      8,
	}
}

// Ranker fans a query out over the evidence collections and merges the hits
// into a single ranked citation list.
type Ranker struct {
	index  Index
	cfg    Config
	logger logger.ILogger
}

func NewRanker(index Index, cfg Config, log logger.ILogger) *Ranker {
	def := DefaultConfig()
	if cfg.MaxCollections <= 0 {
		cfg.MaxCollections = def.MaxCollections
	}
	if cfg.PerCollectionK <= 0 {
		cfg.PerCollectionK = def.PerCollectionK
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = def.MaxDistance
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return &Ranker{index: index, cfg: cfg, logger: log}
}

// SelectCollections prefers ingested document collections and falls back to all of them.
func (r *Ranker) SelectCollections(ctx context.Context) ([]string, error) {
	names, err := r.index.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	var preferred []string
	if r.cfg.CollectionPrefix != "" {
		for _, name := range names {
			if strings.HasPrefix(name, r.cfg.CollectionPrefix) {
				preferred = append(preferred, name)
			}
		}
	}
	selected := preferred
	if len(selected) == 0 {
		selected = names
	}
	if len(selected) > r.cfg.MaxCollections {
		selected = selected[:r.cfg.MaxCollections]
	}
	return selected, nil
}

type candidate struct {
	chunk      ScoredChunk
	collection string
}

// Rank returns at most MaxResults citations sorted by ascending distance.
// Failures degrade to fewer (or zero) citations, never to an error.
func (r *Ranker) Rank(ctx context.Context, query, journeySlug string) []Citation {
	collections, err := r.SelectCollections(ctx)
	if err != nil {
		r.logger.Error(moduleName, "Failed to list evidence collections", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	if len(collections) == 0 {
		return nil
	}

	filter := JourneyFilter(journeySlug)
	perCollection := make([][]candidate, len(collections))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, col := range collections {
		g.Go(func() error {
			perCollection[i] = r.searchCollection(ctx, col, query, filter)
			return nil
		})
	}
	_ = g.Wait()

	var merged []candidate
	for _, hits := range perCollection {
		merged = append(merged, hits...)
	}
	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].chunk.Score < merged[b].chunk.Score
	})
	if len(merged) > r.cfg.MaxResults {
		merged = merged[:r.cfg.MaxResults]
	}

	citations := make([]Citation, 0, len(merged))
	for i, c := range merged {
		citations = append(citations, newCitation(i+1, c.chunk, c.collection))
	}
	return citations
}

func (r *Ranker) searchCollection(ctx context.Context, collection, query string, filter *Filter) (hits []candidate) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(moduleName, "Collection search panicked", map[string]interface{}{
				"collection": collection,
				"panic":      rec,
			})
			hits = nil
		}
	}()

	results, err := r.index.SimilaritySearch(ctx, collection, query, r.cfg.PerCollectionK, filter)
	if err != nil {
		r.logger.Warn(moduleName, "Error searching collection", map[string]interface{}{
			"collection": collection,
			"error":      err.Error(),
		})
		return nil
	}

	for _, sc := range results {
		if sc.Score < r.cfg.MaxDistance {
			hits = append(hits, candidate{chunk: sc, collection: collection})
		}
	}
	return hits
}
