package container

import (
	"context"
	"fmt"
	"log"
	"time"

	analysisServices "teammate/server/modules/analysis/application/services"
	analyzerServices "teammate/server/modules/analysis/domain/services"
	analysisProviders "teammate/server/modules/analysis/infrastructure/providers"
	analysisHandlers "teammate/server/modules/analysis/interfaces/http/handlers"
	analysisRoutes "teammate/server/modules/analysis/interfaces/http/routes"

	coordinationServices "teammate/server/modules/coordination/application/services"
	coordinationHandlers "teammate/server/modules/coordination/interfaces/http/handlers"
	coordinationRoutes "teammate/server/modules/coordination/interfaces/http/routes"

	filesessionServices "teammate/server/modules/filesession/application/services"
	filesessionHandlers "teammate/server/modules/filesession/interfaces/http/handlers"
	filesessionRoutes "teammate/server/modules/filesession/interfaces/http/routes"

	submissionAppServices "teammate/server/modules/submission/application/services"
	submissionServices "teammate/server/modules/submission/domain/services"
	submissionProviders "teammate/server/modules/submission/infrastructure/providers"
	submissionInfraRepos "teammate/server/modules/submission/infrastructure/repositories"
	submissionHandlers "teammate/server/modules/submission/interfaces/http/handlers"
	submissionRoutes "teammate/server/modules/submission/interfaces/http/routes"

	"teammate/server/seedwork/infrastructure/config"
	"teammate/server/seedwork/infrastructure/database"
	"teammate/server/seedwork/infrastructure/events"
	"teammate/server/seedwork/infrastructure/firebase"
)

// Container holds every wired dependency the HTTP Webhook Surface needs:
// the broker binding, the pipeline's application services, and the
// per-module route groups that sit on top of them.
type Container struct {
	Config *config.Config

	Publisher      events.Publisher
	FirebaseClient *firebase.Client

	FileSessions *filesessionServices.FileSessionManager
	Coordinator  *coordinationServices.AnalysisCoordinator
	Orchestrator *analysisServices.AnalysisOrchestrator
	ResultsStore *submissionAppServices.ResultsStore
	Aggregator   *submissionAppServices.SubmissionAggregator
	Ingest       *submissionAppServices.SubmissionIngestService

	AnalysisRoutes     *analysisRoutes.AnalysisRoutes
	CoordinationRoutes *coordinationRoutes.CoordinationRoutes
	FileSessionRoutes  *filesessionRoutes.DebugRoutes
	SubmissionRoutes   *submissionRoutes.SubmissionRoutes
}

// NewContainer loads configuration and wires every module's application
// services and HTTP routes, selecting the broker and analyzer bindings
// per config.
func NewContainer() (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := database.Initialize(); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.RunMigrations("migrations"); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		return nil, fmt.Errorf("event bus: %w", err)
	}

	var firebaseClient *firebase.Client
	var resolver submissionServices.AudioURLResolver = submissionProviders.PassthroughAudioURLResolver{}
	if cfg.Firebase.ProjectID != "" || cfg.Firebase.CredentialsPath != "" {
		firebaseClient, err = firebase.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("firebase: %w", err)
		}
		if cfg.Firebase.StorageBucket != "" {
			fbResolver, err := submissionProviders.NewFirebaseAudioURLResolver(context.Background(), firebaseClient, cfg.Firebase.StorageBucket)
			if err != nil {
				return nil, fmt.Errorf("firebase storage resolver: %w", err)
			}
			resolver = fbResolver
		}
	}

	fileSessions := filesessionServices.NewFileSessionManager(cfg.Orchestrator.FileSessionCleanupTimeout)
	coordinator := coordinationServices.NewAnalysisCoordinator(publisher)
	resultsStore := submissionAppServices.NewResultsStore()

	orchestrator := analysisServices.NewAnalysisOrchestrator(
		publisher,
		fileSessions,
		resultsStore,
		cfg.Orchestrator.AnalysisCallTimeout,
		analyzerSet(cfg.Analyzers),
	)

	submissionRepo := submissionInfraRepos.NewGormSubmissionRepository()
	aggregator := submissionAppServices.NewSubmissionAggregator(
		resultsStore,
		submissionRepo,
		publisher,
		cfg.Orchestrator.FinalizeRetryAttempts,
		cfg.Orchestrator.FinalizeRetryBaseDelay,
	)

	ingest := submissionAppServices.NewSubmissionIngestService(
		audioTranscoder(cfg.Analyzers.Transcoder),
		speechToText(cfg.Analyzers.SpeechToText),
		resolver,
		fileSessions,
		publisher,
		resultsStore,
	)

	aHandlers := analysisHandlers.NewAnalysisHandlers(orchestrator)
	cHandlers := coordinationHandlers.NewCoordinationHandlers(coordinator)
	dHandlers := filesessionHandlers.NewDebugHandlers(fileSessions)
	sHandlers := submissionHandlers.NewSubmissionHandlers(ingest, aggregator)
	rHandlers := submissionHandlers.NewResultsHandlers(resultsStore)

	return &Container{
		Config:             cfg,
		Publisher:          publisher,
		FirebaseClient:     firebaseClient,
		FileSessions:       fileSessions,
		Coordinator:        coordinator,
		Orchestrator:       orchestrator,
		ResultsStore:       resultsStore,
		Aggregator:         aggregator,
		Ingest:             ingest,
		AnalysisRoutes:     analysisRoutes.NewAnalysisRoutes(aHandlers),
		CoordinationRoutes: coordinationRoutes.NewCoordinationRoutes(cHandlers),
		FileSessionRoutes:  filesessionRoutes.NewDebugRoutes(dHandlers),
		SubmissionRoutes:   submissionRoutes.NewSubmissionRoutes(sHandlers, rHandlers),
	}, nil
}

// newPublisher selects the Event Bus Client binding per
// Config.Broker.Driver: "pubsub" for the production Cloud Pub/Sub
// broker, anything else (including the default "memory") for the
// in-process bus used locally and in tests.
func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.Broker.Driver == "pubsub" {
		return events.NewPubSubEventBus(context.Background(), cfg.Broker.ProjectID, cfg.Broker.TopicNames)
	}
	return events.NewMemoryPublisher(events.NewMemoryEventBus()), nil
}

// analyzerSet builds the five analysis-stage collaborators, using the
// in-process mock for any stage left at "mock" and an HTTP-backed
// client (pointed at the configured base URL) otherwise.
func analyzerSet(cfg config.AnalyzersConfig) analysisServices.AnalyzerSet {
	var pronunciation analyzerServices.PronunciationAnalyzer = analysisProviders.MockPronunciationAnalyzer{}
	if cfg.Pronunciation != "" && cfg.Pronunciation != "mock" {
		pronunciation = &analysisProviders.HTTPPronunciationAnalyzer{URL: cfg.Pronunciation}
	}

	var fluency analyzerServices.FluencyAnalyzer = analysisProviders.MockFluencyAnalyzer{}
	if cfg.Fluency != "" && cfg.Fluency != "mock" {
		fluency = &analysisProviders.HTTPFluencyAnalyzer{URL: cfg.Fluency}
	}

	return analysisServices.AnalyzerSet{
		Pronunciation: pronunciation,
		Grammar:       textAnalyzer(cfg.Grammar, "grammar"),
		Lexical:       textAnalyzer(cfg.Lexical, "lexical"),
		Vocabulary:    textAnalyzer(cfg.Vocabulary, "vocabulary"),
		Fluency:       fluency,
	}
}

func textAnalyzer(url, label string) analyzerServices.TextAnalyzer {
	if url != "" && url != "mock" {
		return &analysisProviders.HTTPTextAnalyzer{URL: url}
	}
	return analysisProviders.MockTextAnalyzer{Label: label}
}

// audioTranscoder always resolves to the in-process mock: no HTTP
// transcoding service is part of this pack, so a non-"mock" config
// value is accepted but not yet wired to a real backend.
func audioTranscoder(url string) submissionServices.AudioTranscoder {
	return submissionProviders.MockAudioTranscoder{}
}

func speechToText(apiKey string) submissionServices.SpeechToText {
	if apiKey != "" && apiKey != "mock" {
		return submissionProviders.NewAssemblyAISpeechToText(apiKey)
	}
	return submissionProviders.MockSpeechToText{}
}

// StartPeriodicCleanup launches the background sweep described for the
// File Session Manager and Analysis Coordinator: a single ticker drives
// both the session cleanup pass and the stale coordination-state purge.
func (c *Container) StartPeriodicCleanup(ctx context.Context) {
	interval := c.Config.Orchestrator.PeriodicCleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.FileSessions.PeriodicCleanup()
				c.Coordinator.PurgeOlderThan(c.Config.Orchestrator.CoordinationPurgeAfter)
			}
		}
	}()
}

// Close flushes the event bus client (waiting out any in-flight
// publishes) and closes the database connection. Called on shutdown.
func (c *Container) Close() {
	if bus, ok := c.Publisher.(*events.PubSubEventBus); ok {
		if err := bus.Close(); err != nil {
			log.Printf("event bus close: %v", err)
		}
	}
	if err := database.Close(); err != nil {
		log.Printf("database close: %v", err)
	}
}

// GetConfig returns the configuration.
func (c *Container) GetConfig() *config.Config {
	return c.Config
}
