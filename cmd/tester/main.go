package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/actor"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/config"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/delivery"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/observer"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/queue"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/scoring"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/storage"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/usecase"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/validator"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/utils"
)

// Synthetic lead generator: drives the full intake pipeline end to end
// against a live database, with optional queue handoff and scoring.
func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	count := flag.Int("count", 10, "Number of leads to submit")
	interval := flag.Duration("interval", 200*time.Millisecond, "Delay between submissions")
	application := flag.String("application", "", "Force every lead to this application_name (default: random from allow-list)")
	propertyRate := flag.Float64("property-rate", 0.7, "Fraction of leads carrying property details")
	duplicateRate := flag.Float64("duplicate-rate", 0.2, "Fraction of leads reusing a previous customer identity")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	if err := logger.Initialize(*logLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	observer.InitMetrics(false)

	repo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}

	v, err := validator.New(validator.Config{AllowedApplications: cfg.Intake.AllowedApplications})
	if err != nil {
		logger.Log.Fatal("Failed to build validator", zap.Error(err))
	}

	dispatcher, err := delivery.NewDispatcher(repo, delivery.NewHTTPClient(), cfg.CDP, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to build dispatcher", zap.Error(err))
	}
	defer dispatcher.Close()

	var queueClient queue.ClientInterface
	if cfg.Queue.Enabled {
		client, err := queue.NewClient(cfg.Queue.URL)
		if err != nil {
			logger.Log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer client.Close()
		if err := client.SetupStream(context.Background(), queue.DeliveryStreamConfig(cfg.Queue)); err != nil {
			logger.Log.Fatal("Failed to setup delivery stream", zap.Error(err))
		}
		queueClient = client
	}

	var scorer scoring.Scorer
	if cfg.Scoring.Enabled {
		scorer = scoring.NewOpenAIScorer(cfg.Scoring)
	}

	service := usecase.NewLeadService(repo, v, dispatcher, scorer, queueClient, cfg.Queue.Subject, logger.Log)

	var created, rejected int
	var knownCustomers []model.CustomerPayload

	for i := 0; i < *count; i++ {
		sub := randomSubmission(cfg.Intake.AllowedApplications, *application, *propertyRate)
		if len(knownCustomers) > 0 && rand.Float64() < *duplicateRate {
			sub.Customer = knownCustomers[rand.Intn(len(knownCustomers))]
		}

		ctx := actor.WithRequestID(context.Background(), uuid.New().String())
		result, err := service.CreateLead(ctx, sub)
		if err != nil {
			rejected++
			logger.Log.Warn("Submission rejected",
				zap.String("lead_uuid", sub.LeadUUID),
				zap.Error(err))
		} else {
			created++
			knownCustomers = append(knownCustomers, sub.Customer)
			logger.Log.Info("Lead submitted",
				zap.Uint("lead_id", result.LeadID),
				zap.Uint("customer_id", result.CustomerID),
				zap.String("delivery_status", result.DeliveryStatus))
		}

		time.Sleep(*interval)
	}

	logger.Log.Info("Tester finished",
		zap.Int("created", created),
		zap.Int("rejected", rejected),
		zap.Int("unique_customers", len(knownCustomers)))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.Close(shutdownCtx); err != nil {
		logger.Log.Warn("Failed to close Postgres connection", zap.Error(err))
	}
}

func randomSubmission(allowed []string, forcedApp string, propertyRate float64) *model.LeadSubmission {
	app := forcedApp
	if app == "" && len(allowed) > 0 {
		app = allowed[rand.Intn(len(allowed))]
	}

	sub := model.NewLeadSubmission(&model.LeadSubmission{ApplicationName: app})
	if rand.Float64() >= propertyRate {
		sub.Property = nil
	}
	if app == "hms" && sub.Property != nil {
		sub.Property = throughHMSEdge(sub.Property)
	}
	return sub
}

// throughHMSEdge simulates the HMS source system, whose property identifiers
// arrive prefixed with hms_ and are remapped to canonical names at the intake
// edge before the submission reaches the pipeline.
func throughHMSEdge(p *model.PropertyPayload) *model.PropertyPayload {
	var raw map[string]interface{}
	if err := utils.UnmarshalJSON(utils.MustMarshalJSON(p), &raw); err != nil {
		return p
	}

	prefixed := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		switch k {
		case "property_id":
			prefixed["hms_property_id"] = v
		case "development_id":
			prefixed["hms_development_id"] = v
		case "partner_id":
			prefixed["hms_partner_id"] = v
		default:
			prefixed[k] = v
		}
	}

	var out model.PropertyPayload
	if err := utils.UnmarshalJSON(utils.MustMarshalJSON(model.RemapHMSProperty(prefixed)), &out); err != nil {
		return p
	}
	return &out
}
