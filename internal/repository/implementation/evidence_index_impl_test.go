package implementation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sdm-platform-be/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatedEmbedder struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (e *gatedEmbedder) Embed(ctx context.Context, _ string, _ embedding.Task) ([]float32, error) {
	e.calls.Add(1)
	select {
	case <-e.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0}, nil
}

func TestEmbedQuerySharesConcurrentCalls(t *testing.T) {
	embedder := &gatedEmbedder{release: make(chan struct{})}
	index := NewEvidenceIndex(nil, embedder, 0)

	const searches = 8
	var wg sync.WaitGroup
	errs := make([]error, searches)
	for i := 0; i < searches; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = index.embedQuery(context.Background(), "knee pain")
		}()
	}

	require.Eventually(t, func() bool { return embedder.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(embedder.release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), embedder.calls.Load())

	_, err := index.embedQuery(context.Background(), "knee pain")
	require.NoError(t, err)
	assert.Equal(t, int32(1), embedder.calls.Load(), "second lookup should hit the cache")
}

func TestEmbedQueryDoesNotCacheFailures(t *testing.T) {
	embedder := &gatedEmbedder{release: make(chan struct{}), err: errors.New("quota")}
	close(embedder.release)
	index := NewEvidenceIndex(nil, embedder, 0)

	_, err := index.embedQuery(context.Background(), "hip")
	require.Error(t, err)
	_, err = index.embedQuery(context.Background(), "hip")
	require.Error(t, err)
	assert.Equal(t, int32(2), embedder.calls.Load())
}

func TestCollectionsCache(t *testing.T) {
	t.Run("defaults to a short ttl", func(t *testing.T) {
		index := NewEvidenceIndex(nil, &gatedEmbedder{}, 0)
		assert.Equal(t, DefaultCollectionsTTL, index.collectionsTTL)
	})

	t.Run("cached list expires after the ttl", func(t *testing.T) {
		index := NewEvidenceIndex(nil, &gatedEmbedder{}, 200*time.Millisecond)
		index.cache.Set(collectionsCacheKey, []string{"knee_oa"}, index.collectionsTTL)

		names, err := index.ListCollections(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"knee_oa"}, names)

		assert.Eventually(t, func() bool {
			_, found := index.cache.Get(collectionsCacheKey)
			return !found
		}, 2*time.Second, 10*time.Millisecond)
	})
}
