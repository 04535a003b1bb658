package migration

import (
	"fmt"
	"log"

	"sdm-platform-be/internal/model"

	"gorm.io/gorm"
)

var setupSQL = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
	`CREATE EXTENSION IF NOT EXISTS vector;`,
}

var postMigrationSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_evidence_chunks_embedding ON evidence_chunks USING hnsw (embedding vector_cosine_ops);`,
	`CREATE INDEX IF NOT EXISTS idx_evidence_chunks_metadata ON evidence_chunks USING gin (metadata jsonb_path_ops);`,
	`CREATE INDEX IF NOT EXISTS idx_memory_items_namespace_prefix ON memory_items (namespace text_pattern_ops);`,
}

// Models lists every table the engine owns.
func Models() []interface{} {
	return []interface{}{
		&model.Checkpoint{},
		&model.MemoryItem{},
		&model.Conversation{},
		&model.Journey{},
		&model.ConversationPoint{},
		&model.DecisionAid{},
		&model.EvidenceChunk{},
	}
}

// Tables resolves the table name of every model. Models that fail to parse are skipped.
func Tables(db *gorm.DB) []string {
	names := make([]string, 0, len(Models()))
	for _, m := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			log.Printf("Warn: cannot resolve table for %T: %v", m, err)
			continue
		}
		names = append(names, stmt.Schema.Table)
	}
	return names
}

// Run creates extensions, migrates the models and adds the indexes AutoMigrate cannot express.
func Run(db *gorm.DB) error {
	log.Println("Step 1: Setting up Extensions...")
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	log.Printf("Step 2: Running AutoMigrate for %d Tables...", len(Models()))
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	log.Println("Step 3: Creating Indexes...")
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}
	return nil
}
