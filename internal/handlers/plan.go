package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/services"
)

type PlanHandler struct {
  log         *logger.Logger
  planService services.PlanService
}

func NewPlanHandler(log *logger.Logger, planService services.PlanService) *PlanHandler {
  return &PlanHandler{
    log:         log.With("handler", "PlanHandler"),
    planService: planService,
  }
}

type createPlanRequest struct {
  Name  string                   `json:"name" binding:"required"`
  Steps []services.PlanStepInput `json:"steps" binding:"required"`
}

func (h *PlanHandler) Create(c *gin.Context) {
  var req createPlanRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  plan, err := h.planService.Create(c.Request.Context(), req.Name, req.Steps)
  if err != nil {
    h.log.Error("Create plan failed", "error", err)
    RespondError(c, http.StatusBadRequest, "create_plan_failed", err)
    return
  }
  RespondCreated(c, gin.H{"plan": plan})
}

func (h *PlanHandler) Get(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_plan_id", err)
    return
  }
  plan, err := h.planService.Get(c.Request.Context(), id)
  if err != nil {
    RespondError(c, http.StatusNotFound, "plan_not_found", err)
    return
  }
  RespondOK(c, gin.H{"plan": plan})
}
