package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/services"
)

type IngestHandler struct {
  log          *logger.Logger
  orchestrator services.OrchestratorService
}

func NewIngestHandler(log *logger.Logger, orchestrator services.OrchestratorService) *IngestHandler {
  return &IngestHandler{
    log:          log.With("handler", "IngestHandler"),
    orchestrator: orchestrator,
  }
}

type ingestRequest struct {
  ActivityID uuid.UUID  `json:"activity_id" binding:"required"`
  PlanID     *uuid.UUID `json:"plan_id"`
}

// Ingest kicks off the full pipeline for an activity. Linking (when a
// plan id is given) happens before the response; stage processing runs
// in the background.
func (h *IngestHandler) Ingest(c *gin.Context) {
  var req ingestRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  if err := h.orchestrator.Ingest(c.Request.Context(), req.ActivityID, req.PlanID); err != nil {
    h.log.Error("Ingest failed", "error", err, "activity_id", req.ActivityID)
    RespondError(c, http.StatusInternalServerError, "ingest_failed", err)
    return
  }
  RespondOK(c, gin.H{"ok": true, "activity_id": req.ActivityID})
}
