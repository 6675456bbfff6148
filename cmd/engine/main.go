// Package main is the entry point of the BrightPath adaptive learning and
// behavioral decision engine.
//
// The architecture follows Clean Architecture and DDD:
//   - Domain: mastery tracking, content generation, planning, behavioral
//     scoring, policy rules, personas
//   - Application: use-case orchestration (Commands/Queries)
//   - Infrastructure: PostgreSQL and Redis persistence, event bus, metrics
//   - Interface: JSON HTTP endpoints
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brightpath-labs/brightpath-engine/config"
	"github.com/brightpath-labs/brightpath-engine/internal/application/command"
	"github.com/brightpath-labs/brightpath-engine/internal/application/query"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/behavior"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/content"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/mastery"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/persona"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/planner"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/policy"
	"github.com/brightpath-labs/brightpath-engine/internal/infrastructure/messaging"
	"github.com/brightpath-labs/brightpath-engine/internal/infrastructure/metrics"
	"github.com/brightpath-labs/brightpath-engine/internal/infrastructure/persistence/postgres"
	"github.com/brightpath-labs/brightpath-engine/internal/infrastructure/persistence/redis"
	httpserver "github.com/brightpath-labs/brightpath-engine/internal/interface/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	slog.SetDefault(log)
	log.Info("starting brightpath engine",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnection(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS & RULE SEEDING
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ruleRepo := postgres.NewRuleRepository(dbConn)
	if err := ruleRepo.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("failed to seed default policy rules: %w", err)
	}
	log.Info("migrations and rule seeding completed")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to redis...")
	redisClient, err := redis.NewClient(ctx, redis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		log.Info("closing redis connection...")
		_ = redisClient.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	masteryRepo := postgres.NewMasteryRepository(dbConn)
	telemetryRepo := postgres.NewTelemetryRepository(dbConn)
	templateCatalog := postgres.NewTemplateCatalog(dbConn)
	questionBank := postgres.NewQuestionBank(dbConn)
	variantRepo := postgres.NewVariantRepository(dbConn)
	skillCatalog := postgres.NewSkillCatalog(dbConn)
	stateRepo := postgres.NewBehavioralStateRepository(dbConn)
	personaRepo := postgres.NewPersonaStateRepository(dbConn)

	repeatWindow := redis.NewRepeatWindow(redisClient, cfg.Engine.RepeatWindow)
	cooldownStore := redis.NewCooldownStore(redisClient)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS & METRICS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	var metricsHandler *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		metricsHandler = metrics.New()
		if err := metricsHandler.Attach(eventBus); err != nil {
			return fmt.Errorf("failed to attach metrics: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. DOMAIN SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	trackerConfig := mastery.DefaultTrackerConfig()
	trackerConfig.CorrectDelta = cfg.Engine.CorrectDelta
	trackerConfig.WrongDelta = cfg.Engine.WrongDelta
	trackerConfig.SpacedRepetition = cfg.Features.IsEnabledGlobally(config.FeatureSpacedRepetition)
	tracker := mastery.NewTracker(trackerConfig)

	generator := content.NewGenerator()

	plannerConfig := planner.Config{
		MaxFocusSkills:       cfg.Engine.MaxFocusSkills,
		ReviewPriorityBoost:  cfg.Engine.ReviewPriorityBoost,
		MaxGenerateAttempts:  cfg.Engine.MaxGenerateAttempts,
		ProceduralGeneration: cfg.Features.IsEnabledGlobally(config.FeatureProceduralGeneration),
	}
	questionPlanner := planner.New(
		skillCatalog, masteryRepo, templateCatalog, questionBank,
		generator, repeatWindow, plannerConfig,
	)

	scorer := behavior.NewScorer(telemetryRepo, stateRepo)

	resolver := persona.NewResolver(persona.DefaultCatalog(), personaRepo)
	resolver.SetAutoSwitch(cfg.Features.IsEnabledGlobally(config.FeatureAutoPersonaSwitch))

	cooldownTable := policy.CooldownTable{
		Default:      cfg.Engine.CooldownDefault,
		HighBias:     cfg.Engine.CooldownHighBias,
		VeryHighBias: cfg.Engine.CooldownVeryHighBias,
		BypassBias:   cfg.Engine.CooldownBypassBias,
	}
	ruleEngine := policy.NewEngine(ruleRepo, cooldownStore, cooldownTable)
	ruleEngine.SetProtectiveBundle(cfg.Features.IsEnabledGlobally(config.FeatureAtRiskProtection))

	log.Info("feature flags",
		"spaced_repetition", trackerConfig.SpacedRepetition,
		"procedural_generation", plannerConfig.ProceduralGeneration,
		"at_risk_protection", cfg.Features.IsEnabledGlobally(config.FeatureAtRiskProtection),
		"auto_persona_switch", cfg.Features.IsEnabledGlobally(config.FeatureAutoPersonaSwitch),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	submitAnswer := command.NewSubmitAnswerHandler(
		masteryRepo, variantRepo, tracker, telemetryRepo, eventBus, log,
	)
	recordActivity := command.NewRecordActivityHandler(telemetryRepo, log)
	planQuestions := query.NewPlanQuestionsHandler(
		questionPlanner, repeatWindow, variantRepo, eventBus, log,
	)
	decideActions := query.NewDecideActionsHandler(
		scorer, resolver, ruleEngine, cooldownStore, eventBus, log,
	)
	dueReviews := query.NewDueReviewsHandler(masteryRepo, eventBus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverConfig := httpserver.DefaultConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = cfg.Server.ReadTimeout
	serverConfig.WriteTimeout = cfg.Server.WriteTimeout
	serverConfig.IdleTimeout = cfg.Server.IdleTimeout

	deps := httpserver.Dependencies{
		SubmitAnswer:   submitAnswer,
		RecordActivity: recordActivity,
		PlanQuestions:  planQuestions,
		DecideActions:  decideActions,
		DueReviews:     dueReviews,
		Database:       dbConn,
		Logger:         log,
	}
	if metricsHandler != nil {
		deps.Metrics = metricsHandler.Handler()
	}

	server := httpserver.NewServer(serverConfig, deps)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()
	log.Info("engine ready", "addr", serverConfig.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 11. SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	log.Info("engine stopped")
	return nil
}

// setupLogger builds the slog logger from the observability settings.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
