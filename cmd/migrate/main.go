// Applies the sqlite schema. Safe to run repeatedly; the schema statements
// are all IF NOT EXISTS.
package main

import (
	"flag"
	"log"

	"github.com/photoreach/club-outreach/internal/config"
	"github.com/photoreach/club-outreach/internal/repository/sqlite"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Schema applied: %s", cfg.Storage.Path)
}
