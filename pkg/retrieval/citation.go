package retrieval

import (
	"fmt"
	"math"
	"strconv"
)

type Citation struct {
	Index      int     `json:"index"`
	Score      float64 `json:"score"`
	DocumentID string  `json:"doc_id"`
	Collection string  `json:"collection"`
	ChunkIndex *int    `json:"chunk_index"`
	Page       int     `json:"page"`
	Title      *string `json:"title"`
	URL        string  `json:"url"`
	Excerpt    string  `json:"excerpt"`
}

// EvidenceBlock renders the citation the way it is presented to the model.
func (c Citation) EvidenceBlock() string {
	chunk := "None"
	if c.ChunkIndex != nil {
		chunk = strconv.Itoa(*c.ChunkIndex)
	}
	return fmt.Sprintf("[%d] (col=%s) doc=%s chunk=%s score=%.4f\n%s",
		c.Index, c.Collection, c.DocumentID, chunk, c.Score, c.Excerpt)
}

func newCitation(index int, sc ScoredChunk, collection string) Citation {
	md := sc.Chunk.Metadata

	docID := metaString(md, "document_id")
	if docID == "" {
		docID = metaString(md, "source")
	}

	url := metaString(md, "source_url")
	if url == "" {
		url = metaString(md, "chunk_url")
	}
	if url == "" && docID != "" {
		url = fmt.Sprintf("/documents/%s/download/", docID)
	}

	var title *string
	if t := metaString(md, "document_name"); t != "" {
		title = &t
	} else if t := metaString(md, "title"); t != "" {
		title = &t
	}

	var chunkIndex *int
	if n, ok := metaInt(md, "chunk_index"); ok {
		chunkIndex = &n
	}
	page, _ := metaInt(md, "page")

	return Citation{
		Index:      index,
		Score:      sc.Score,
		DocumentID: docID,
		Collection: collection,
		ChunkIndex: chunkIndex,
		Page:       page,
		Title:      title,
		URL:        url,
		Excerpt:    sc.Chunk.Content,
	}
}

func metaString(md map[string]interface{}, key string) string {
	v, ok := md[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func metaInt(md map[string]interface{}, key string) (int, bool) {
	switch v := md[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		if math.IsNaN(v) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}
