package main

import (
	"flag"
	"log"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/johnquangdev/meetscribe/internal/infrastructure/database"
	"github.com/johnquangdev/meetscribe/pkg/config"
)

func main() {
	down := flag.Bool("down", false, "roll back instead of applying")
	steps := flag.Int("steps", 0, "number of migrations to apply or roll back (0 = all)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database using GORM
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	direction := migrate.Up
	if *down {
		direction = migrate.Down
		if *steps == 0 {
			*steps = 1
		}
	}

	log.Printf("🔄 Applying migrations from %s/ directory...", cfg.Database.Migrations)

	n, err := database.Migrate(db, cfg.Database.Migrations, direction, *steps)
	if err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	log.Printf("✅ Successfully applied %d migration(s)!\n", n)
}
