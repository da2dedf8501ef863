package middleware

import (
  "crypto/subtle"
  "net/http"
  "os"
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/stridelab/adherence-backend/internal/logger"
)

type WebhookMiddleware struct {
  log   *logger.Logger
  token string
}

func NewWebhookMiddleware(log *logger.Logger) *WebhookMiddleware {
  middlewareLogger := log.With("Middleware", "WebhookMiddleware")
  token := strings.TrimSpace(os.Getenv("WEBHOOK_TOKEN"))
  if token == "" {
    middlewareLogger.Warn("WEBHOOK_TOKEN not set; webhook endpoints are unauthenticated")
  }
  return &WebhookMiddleware{log: middlewareLogger, token: token}
}

// RequireToken guards ingest-style endpoints called by external systems.
// When WEBHOOK_TOKEN is unset the check is skipped.
func (wm *WebhookMiddleware) RequireToken() gin.HandlerFunc {
  return func(c *gin.Context) {
    if wm.token == "" {
      c.Next()
      return
    }
    provided := strings.TrimSpace(c.GetHeader("X-Webhook-Token"))
    if provided == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing webhook token"})
      return
    }
    if subtle.ConstantTimeCompare([]byte(provided), []byte(wm.token)) != 1 {
      c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid webhook token"})
      return
    }
    c.Next()
  }
}
