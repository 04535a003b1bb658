package implementation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sdm-platform-be/internal/model"
	"sdm-platform-be/pkg/embedding"
	"sdm-platform-be/pkg/retrieval"

	"github.com/patrickmn/go-cache"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	collectionsCacheKey = "collections"
	queryEmbeddingTTL   = time.Minute
	// DefaultCollectionsTTL bounds how long a newly ingested collection stays unsearched.
	DefaultCollectionsTTL = 30 * time.Second
)

// EvidenceIndexImpl searches evidence chunks by cosine distance with pgvector.
// One turn searches many collections concurrently with the same query, so the
// query embedding is computed once and shared.
type EvidenceIndexImpl struct {
	db             *gorm.DB
	embedder       embedding.EmbeddingProvider
	cache          *cache.Cache
	embeds         singleflight.Group
	collectionsTTL time.Duration
}

var _ retrieval.Index = (*EvidenceIndexImpl)(nil)

func NewEvidenceIndex(db *gorm.DB, embedder embedding.EmbeddingProvider, collectionsTTL time.Duration) *EvidenceIndexImpl {
	if collectionsTTL <= 0 {
		collectionsTTL = DefaultCollectionsTTL
	}
	return &EvidenceIndexImpl{
		db:             db,
		embedder:       embedder,
		cache:          cache.New(collectionsTTL, 10*time.Minute),
		collectionsTTL: collectionsTTL,
	}
}

// ListCollections caches non-empty lists for the collections TTL.
func (r *EvidenceIndexImpl) ListCollections(ctx context.Context) ([]string, error) {
	if cached, found := r.cache.Get(collectionsCacheKey); found {
		return cached.([]string), nil
	}

	var names []string
	err := r.db.WithContext(ctx).
		Model(&model.EvidenceChunk{}).
		Distinct("collection").
		Order("collection").
		Pluck("collection", &names).Error
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		r.cache.Set(collectionsCacheKey, names, r.collectionsTTL)
	}
	return names, nil
}

type evidenceRow struct {
	Content  string
	Metadata datatypes.JSON
	Score    float64
}

func (r *EvidenceIndexImpl) SimilaritySearch(ctx context.Context, collection, query string, k int, filter *retrieval.Filter) ([]retrieval.ScoredChunk, error) {
	vector, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx).
		Model(&model.EvidenceChunk{}).
		Select("content, metadata, embedding <=> ? AS score", vector).
		Where("collection = ?", collection)
	if filter != nil && len(filter.AnyOf) > 0 {
		conds := make([]string, 0, len(filter.AnyOf))
		args := make([]interface{}, 0, len(filter.AnyOf))
		for _, flag := range filter.AnyOf {
			b, err := json.Marshal(map[string]bool{flag: true})
			if err != nil {
				return nil, err
			}
			conds = append(conds, "metadata @> ?::jsonb")
			args = append(args, string(b))
		}
		db = db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	var rows []evidenceRow
	if err := db.Order("score").Limit(k).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("search collection %s: %w", collection, err)
	}

	results := make([]retrieval.ScoredChunk, 0, len(rows))
	for _, row := range rows {
		md := map[string]interface{}{}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &md); err != nil {
				return nil, fmt.Errorf("decode chunk metadata: %w", err)
			}
		}
		results = append(results, retrieval.ScoredChunk{
			Chunk: retrieval.Chunk{Content: row.Content, Metadata: md},
			Score: row.Score,
		})
	}
	return results, nil
}

func (r *EvidenceIndexImpl) embedQuery(ctx context.Context, query string) (pgvector.Vector, error) {
	key := "q:" + query
	if cached, found := r.cache.Get(key); found {
		return cached.(pgvector.Vector), nil
	}
	v, err, _ := r.embeds.Do(key, func() (interface{}, error) {
		values, err := r.embedder.Embed(ctx, query, embedding.TaskRetrievalQuery)
		if err != nil {
			return nil, err
		}
		vector := pgvector.NewVector(values)
		r.cache.Set(key, vector, queryEmbeddingTTL)
		return vector, nil
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embed query: %w", err)
	}
	return v.(pgvector.Vector), nil
}
