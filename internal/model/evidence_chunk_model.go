package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// EvidenceChunk is an ingested document fragment. Metadata carries document_id,
// chunk_index, page, urls and the is_universal / journey_<slug> flags.
type EvidenceChunk struct {
	Id         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Collection string          `gorm:"type:varchar(255);not null;index"`
	Content    string          `gorm:"type:text;not null"`
	Metadata   datatypes.JSON  `gorm:"type:jsonb"`
	Embedding  pgvector.Vector `gorm:"type:vector(1536)"` // text-embedding-3-small
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
}

func (EvidenceChunk) TableName() string {
	return "evidence_chunks"
}
