package main

import (
	"flag"
	"log"

	"sdm-platform-be/internal/config"
	"sdm-platform-be/internal/migration"
	"sdm-platform-be/pkg/database"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "connect and report the schema without applying it")
	flag.Parse()

	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("DB_CONNECTION_STRING is not set")
	}

	db, err := database.Open(cfg.DatabaseOptions())
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer database.Close(db)

	if *dryRun {
		for _, name := range migration.Tables(db) {
			log.Printf("would migrate table %s (exists: %t)", name, db.Migrator().HasTable(name))
		}
		return
	}

	log.Println("Applying schema...")
	if err := migration.Run(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("Schema is up to date")
}
