package embedding

import "context"

// Task tells asymmetric embedding models which side of a search the text is on.
type Task string

const (
	TaskRetrievalQuery    Task = "RETRIEVAL_QUERY"
	TaskRetrievalDocument Task = "RETRIEVAL_DOCUMENT"
)

// EmbeddingProvider turns text into a unit-length vector suitable for cosine distance.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string, task Task) ([]float32, error)
}
