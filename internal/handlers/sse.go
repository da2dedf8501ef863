package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/sse"
)

type SSEHandler struct {
  log *logger.Logger
  hub *sse.SSEHub
}

func NewSSEHandler(log *logger.Logger, hub *sse.SSEHub) *SSEHandler {
  return &SSEHandler{
    log: log.With("handler", "SSEHandler"),
    hub: hub,
  }
}

// Stream subscribes the caller to status events for one activity.
func (h *SSEHandler) Stream(c *gin.Context) {
  activityID, err := uuid.Parse(c.Query("activity_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_activity_id", err)
    return
  }
  client := h.hub.NewSSEClient()
  h.hub.AddChannel(client, activityID.String())
  defer h.hub.CloseClient(client)
  h.hub.ServeHTTP(c.Writer, c.Request, client)
}
