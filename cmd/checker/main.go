// One-shot response detection pass for cron use: scan the event feed since
// the stored watermark, record new responses, flag follow-ups due, print a
// summary, exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/photoreach/club-outreach/internal/brevo"
	"github.com/photoreach/club-outreach/internal/config"
	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/pkg/logger"
	"github.com/photoreach/club-outreach/internal/reconcile"
	"github.com/photoreach/club-outreach/internal/repository/sqlite"
	"github.com/photoreach/club-outreach/internal/roster"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	followUps := flag.Bool("follow-ups", true, "also flag clubs with no response past the follow-up window")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := sqlite.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	clubs, err := roster.Load(cfg.Roster.CSVPath)
	if err != nil {
		log.Fatalf("Failed to load roster: %v", err)
	}

	engine := reconcile.New(brevo.NewClient(cfg.Brevo),
		sqlite.NewResponseRepo(db), sqlite.NewWatermarkRepo(db),
		sqlite.NewConversationRepo(db), sqlite.NewNotificationRepo(db),
		sqlite.NewEmailRepo(db), clubs, reconcile.Policy{
			TreatOpensAsResponses: cfg.Polling.TreatOpensAsResponses,
			DefaultResponseType:   domain.ResponseType(cfg.Polling.DefaultResponseType),
			Lookback:              time.Duration(cfg.Polling.LookbackDays) * 24 * time.Hour,
		})

	ctx := context.Background()

	summary, err := engine.CheckForNewResponses(ctx)
	if err != nil {
		log.Fatalf("Detection pass failed: %v", err)
	}
	fmt.Printf("Scanned %d events: %d new, %d skipped, %d failed\n",
		summary.Scanned, summary.New, summary.Skipped, summary.Failed)

	if *followUps {
		window := time.Duration(cfg.FollowUp.Days) * 24 * time.Hour
		due, err := engine.DetectFollowUpsDue(ctx, window)
		if err != nil {
			log.Fatalf("Follow-up detection failed: %v", err)
		}
		if len(due) == 0 {
			fmt.Println("No follow-ups due")
		}
		for _, club := range due {
			fmt.Printf("Follow-up due: %s (no response in %d days)\n", club, cfg.FollowUp.Days)
		}
	}
}
