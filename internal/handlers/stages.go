package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/services"
)

type StageHandler struct {
  log    *logger.Logger
  stages map[string]services.StageProcessor
}

func NewStageHandler(log *logger.Logger, stages []services.StageProcessor) *StageHandler {
  byName := make(map[string]services.StageProcessor, len(stages))
  for _, st := range stages {
    byName[st.StageName()] = st
  }
  return &StageHandler{
    log:    log.With("handler", "StageHandler"),
    stages: byName,
  }
}

type processStageRequest struct {
  ActivityID uuid.UUID `json:"activity_id" binding:"required"`
}

// Process runs one named stage synchronously. A duplicate run that loses
// the advisory lock reports skipped instead of failing.
func (h *StageHandler) Process(c *gin.Context) {
  stageName := c.Param("stage")
  stage, ok := h.stages[stageName]
  if !ok {
    RespondError(c, http.StatusNotFound, "unknown_stage", nil)
    return
  }
  var req processStageRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  skipped, err := stage.Process(c.Request.Context(), req.ActivityID)
  if err != nil {
    h.log.Error("Stage processing failed", "error", err, "stage", stageName, "activity_id", req.ActivityID)
    RespondError(c, http.StatusInternalServerError, "stage_failed", err)
    return
  }
  if skipped {
    RespondOK(c, gin.H{"ok": true, "skipped": true})
    return
  }
  RespondOK(c, gin.H{"ok": true})
}
