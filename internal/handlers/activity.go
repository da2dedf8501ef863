package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/services"
  "github.com/stridelab/adherence-backend/internal/types"
)

type ActivityHandler struct {
  log             *logger.Logger
  activityService services.ActivityService
  linkerService   services.LinkerService
}

func NewActivityHandler(log *logger.Logger, activityService services.ActivityService, linkerService services.LinkerService) *ActivityHandler {
  return &ActivityHandler{
    log:             log.With("handler", "ActivityHandler"),
    activityService: activityService,
    linkerService:   linkerService,
  }
}

type createActivityRequest struct {
  ExternalRef string         `json:"external_ref"`
  Samples     []types.Sample `json:"samples"`
  PlanID      *uuid.UUID     `json:"plan_id"`
}

func (h *ActivityHandler) Create(c *gin.Context) {
  var req createActivityRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  activity, err := h.activityService.Create(c.Request.Context(), req.ExternalRef, req.Samples, req.PlanID)
  if err != nil {
    h.log.Error("Create activity failed", "error", err)
    RespondError(c, http.StatusInternalServerError, "create_activity_failed", err)
    return
  }
  RespondCreated(c, gin.H{"activity": activity})
}

func (h *ActivityHandler) Get(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_activity_id", err)
    return
  }
  activity, err := h.activityService.Get(c.Request.Context(), id)
  if err != nil {
    RespondError(c, http.StatusNotFound, "activity_not_found", err)
    return
  }
  RespondOK(c, gin.H{"activity": activity})
}

func (h *ActivityHandler) Report(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_activity_id", err)
    return
  }
  doc, err := h.activityService.Report(c.Request.Context(), id)
  if err != nil {
    RespondError(c, http.StatusNotFound, "activity_not_found", err)
    return
  }
  RespondOK(c, doc)
}

type linkRequest struct {
  PlanID uuid.UUID `json:"plan_id" binding:"required"`
}

func (h *ActivityHandler) Link(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_activity_id", err)
    return
  }
  var req linkRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  if err := h.linkerService.Link(c.Request.Context(), id, req.PlanID); err != nil {
    h.log.Error("Link failed", "error", err, "activity_id", id, "plan_id", req.PlanID)
    RespondError(c, http.StatusInternalServerError, "link_failed", err)
    return
  }
  RespondOK(c, gin.H{"ok": true})
}
