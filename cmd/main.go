package main

import (
  "context"
  "fmt"
  "os"
  "time"
  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/utils"
  "github.com/stridelab/adherence-backend/internal/db"
  "github.com/stridelab/adherence-backend/internal/observability"
  "github.com/stridelab/adherence-backend/internal/repos"
  "github.com/stridelab/adherence-backend/internal/services"
  "github.com/stridelab/adherence-backend/internal/handlers"
  "github.com/stridelab/adherence-backend/internal/middleware"
  "github.com/stridelab/adherence-backend/internal/server"
  "github.com/stridelab/adherence-backend/internal/sse"
  redisclient "github.com/stridelab/adherence-backend/internal/clients/redis"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Tracing
  otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
    ServiceName: utils.GetEnv("OTEL_SERVICE_NAME", "adherence-backend", log),
    Environment: utils.GetEnv("APP_ENV", "development", log),
    Version:     utils.GetEnv("APP_VERSION", "dev", log),
  })
  if otelShutdown != nil {
    defer func() {
      ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
      defer cancel()
      _ = otelShutdown(ctx)
    }()
  }

  // Env
  log.Info("Loading environment variables from main...")
  stageTimeoutS := utils.GetEnvAsInt("STAGE_TIMEOUT_SECONDS", 300, log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  activityRepo := repos.NewActivityRepo(thePG, log)
  planRepo := repos.NewTrainingPlanRepo(thePG, log)
  lockRepo := repos.NewAdvisoryLockRepo(log)

  // SSE
  log.Info("Setting up SSE hub now...")
  sseHub := sse.NewSSEHub(log)

  // Redis status fan-out (optional; single-instance works without it)
  var statusBus redisclient.StatusBus
  if os.Getenv("REDIS_ADDR") != "" {
    statusBus, err = redisclient.NewStatusBus(log)
    if err != nil {
      log.Warn("Could not init redis status bus; falling back to in-process hub", "error", err)
      statusBus = nil
    } else {
      if err := statusBus.StartForwarder(context.Background(), sseHub.Broadcast); err != nil {
        log.Warn("Could not start redis forwarder; falling back to in-process hub", "error", err)
        _ = statusBus.Close()
        statusBus = nil
      }
    }
  }

  // Services
  log.Info("Setting up Services from main...")
  var publisher services.StatusPublisher
  if statusBus != nil {
    publisher = statusBus
  }
  notifier := services.NewStageNotifier(log, sseHub, publisher)
  activityService := services.NewActivityService(thePG, log, activityRepo, planRepo)
  planService := services.NewPlanService(thePG, log, planRepo)
  linkerService := services.NewLinkerService(thePG, log, activityRepo, planRepo, notifier)
  slicerService := services.NewIntervalSlicerService(thePG, log, activityRepo, planRepo, lockRepo, notifier)
  enricherService := services.NewAnalysisEnricherService(thePG, log, activityRepo, lockRepo, notifier)
  scoreService := services.NewScoreEngineService(thePG, log, activityRepo, lockRepo, notifier)
  stages := []services.StageProcessor{slicerService, enricherService, scoreService}
  orchestratorService := services.NewOrchestratorService(log, activityRepo, linkerService, stages, notifier, time.Duration(stageTimeoutS)*time.Second)

  // Handlers
  log.Info("Setting up handlers from main...")
  activityHandler := handlers.NewActivityHandler(log, activityService, linkerService)
  planHandler := handlers.NewPlanHandler(log, planService)
  ingestHandler := handlers.NewIngestHandler(log, orchestratorService)
  stageHandler := handlers.NewStageHandler(log, stages)
  sseHandler := handlers.NewSSEHandler(log, sseHub)

  // Middleware
  log.Info("Setting up middleware from main...")
  webhookMiddleware := middleware.NewWebhookMiddleware(log)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    ActivityHandler:   activityHandler,
    PlanHandler:       planHandler,
    IngestHandler:     ingestHandler,
    StageHandler:      stageHandler,
    SSEHandler:        sseHandler,
    WebhookMiddleware: webhookMiddleware,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
