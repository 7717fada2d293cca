package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/photoreach/club-outreach/internal/api"
	"github.com/photoreach/club-outreach/internal/brevo"
	"github.com/photoreach/club-outreach/internal/config"
	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/feeds"
	"github.com/photoreach/club-outreach/internal/personalizer"
	"github.com/photoreach/club-outreach/internal/pkg/logger"
	"github.com/photoreach/club-outreach/internal/provider"
	"github.com/photoreach/club-outreach/internal/reconcile"
	"github.com/photoreach/club-outreach/internal/repository/sqlite"
	"github.com/photoreach/club-outreach/internal/research"
	"github.com/photoreach/club-outreach/internal/roster"
	"github.com/photoreach/club-outreach/internal/ses"
)

const feedScoutPosts = 5

// checkPortAvailable verifies that the target port is not already in use so a
// stale process does not silently eat the traffic.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

// sesSender adapts the SES transport to the handler's Sender interface.
type sesSender struct {
	client *ses.Client
}

func (s sesSender) Send(ctx context.Context, req brevo.SendRequest) (string, error) {
	return s.client.Send(ctx, ses.SendRequest{
		ToEmail:   req.ToEmail,
		ToName:    req.ToName,
		Subject:   req.Subject,
		HTMLBody:  req.HTMLBody,
		TextBody:  req.TextBody,
		ClubName:  req.ClubName,
		EmailType: req.EmailType,
	})
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// AI backend: OpenAI by default, Bedrock when the data must stay on AWS.
	var (
		researcher provider.ResearchProvider
		content    provider.ContentProvider
	)
	switch cfg.Provider.Backend {
	case "bedrock":
		bedrock, err := provider.NewBedrock(ctx, cfg.Bedrock, cfg.OpenAI.Pricing)
		if err != nil {
			log.Fatalf("Failed to initialize Bedrock provider: %v", err)
		}
		researcher, content = bedrock, bedrock
		log.Printf("AI provider: bedrock (region: %s)", cfg.Bedrock.Region)
	default:
		openai := provider.NewOpenAI(cfg.OpenAI)
		researcher, content = openai, openai
		log.Printf("AI provider: openai (search: %s, content: %s)", cfg.OpenAI.SearchModel, cfg.OpenAI.ContentModel)
	}

	brevoClient := brevo.NewClient(cfg.Brevo)
	if err := brevoClient.TestConnection(ctx); err != nil {
		log.Printf("Warning: Brevo connection check failed: %v", err)
	}

	// Outbound transport: Brevo unless SES is explicitly enabled. Detection
	// still polls Brevo events either way; SES has no comparable feed.
	var sender api.Sender = brevoClient
	if cfg.SES.Enabled {
		sesClient, err := ses.NewClient(ctx, cfg.SES)
		if err != nil {
			log.Fatalf("Failed to initialize SES client: %v", err)
		}
		sender = sesSender{client: sesClient}
		log.Printf("Send transport: SES (region: %s)", cfg.SES.Region)
	}

	researchRepo := sqlite.NewResearchRepo(db)
	emailRepo := sqlite.NewEmailRepo(db)
	responseRepo := sqlite.NewResponseRepo(db)
	conversationRepo := sqlite.NewConversationRepo(db)
	watermarkRepo := sqlite.NewWatermarkRepo(db)
	notificationRepo := sqlite.NewNotificationRepo(db)
	statsRepo := sqlite.NewStatsRepo(db)

	scout := feeds.NewScout(feedScoutPosts)
	researchService := research.NewService(researchRepo, researcher, scout, cfg.Research.FreshnessWindow())
	pers := personalizer.New(clubs, researchService, content, emailRepo,
		personalizer.NewTemplates(cfg.Template.Dir), cfg.Brevo.SenderName)

	engine := reconcile.New(brevoClient, responseRepo, watermarkRepo, conversationRepo,
		notificationRepo, emailRepo, clubs, reconcile.Policy{
			TreatOpensAsResponses: cfg.Polling.TreatOpensAsResponses,
			DefaultResponseType:   domain.ResponseType(cfg.Polling.DefaultResponseType),
			Lookback:              time.Duration(cfg.Polling.LookbackDays) * 24 * time.Hour,
		})

	handlers := api.NewHandlers(engine, pers, sender, clubs, responseRepo,
		conversationRepo, notificationRepo, statsRepo, researchRepo, emailRepo)
	router := api.SetupRoutes(handlers, cfg.Server.AllowedOrigins)

	// Background detection: poll the event feed on the configured interval
	// and flag unanswered clubs once a day.
	go func() {
		poll := time.NewTicker(cfg.Polling.Interval())
		followUp := time.NewTicker(24 * time.Hour)
		defer poll.Stop()
		defer followUp.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-poll.C:
				summary, err := engine.CheckForNewResponses(ctx)
				if err != nil {
					logger.Error("detection pass failed", "error", err.Error())
					continue
				}
				logger.Info("detection pass complete",
					"scanned", summary.Scanned, "new", summary.New,
					"skipped", summary.Skipped, "failed", summary.Failed)
			case <-followUp.C:
				window := time.Duration(cfg.FollowUp.Days) * 24 * time.Hour
				due, err := engine.DetectFollowUpsDue(ctx, window)
				if err != nil {
					logger.Error("follow-up detection failed", "error", err.Error())
					continue
				}
				if len(due) > 0 {
					logger.Info("follow-ups due", "clubs", len(due))
				}
			}
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s (clubs: %d)", addr, clubs.Len())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
