package server

import (
  "os"
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/gin-contrib/cors"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
  "github.com/stridelab/adherence-backend/internal/handlers"
  "github.com/stridelab/adherence-backend/internal/middleware"
)

type RouterConfig struct {
  ActivityHandler   *handlers.ActivityHandler
  PlanHandler       *handlers.PlanHandler
  IngestHandler     *handlers.IngestHandler
  StageHandler      *handlers.StageHandler
  SSEHandler        *handlers.SSEHandler
  WebhookMiddleware *middleware.WebhookMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()
  router.Use(otelgin.Middleware(serviceName()))

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Webhook-Token"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  router.GET("/sse/stream", cfg.SSEHandler.Stream)

  api := router.Group("/api")
  {
    // Plans
    api.POST("/plans", cfg.PlanHandler.Create)
    api.GET("/plans/:id", cfg.PlanHandler.Get)
    // Activities
    api.POST("/activities", cfg.ActivityHandler.Create)
    api.GET("/activities/:id", cfg.ActivityHandler.Get)
    api.GET("/activities/:id/report", cfg.ActivityHandler.Report)
    api.POST("/activities/:id/link", cfg.ActivityHandler.Link)
  }

// ===============
// || Webhook   ||
// ===============
  ingest := router.Group("/api")
  ingest.Use(cfg.WebhookMiddleware.RequireToken())
  ingest.POST("/ingest", cfg.IngestHandler.Ingest)
  ingest.POST("/stages/:stage/process", cfg.StageHandler.Process)

  return router
}

func serviceName() string {
  if v := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")); v != "" {
    return v
  }
  return "adherence-backend"
}
