package services

import (
  "context"
  "time"

  "github.com/google/uuid"

  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/sse"
)

// StatusPublisher pushes a stage-status event to every running instance; the
// redis bus satisfies this. A nil publisher means single-instance mode and
// events go straight to the local hub.
type StatusPublisher interface {
  Publish(ctx context.Context, msg sse.SSEMessage) error
}

type StageNotifier interface {
  ActivityIngested(activityID uuid.UUID)
  StageUpdated(activityID uuid.UUID, stage string, status string, errMsg string)
}

type stageNotifier struct {
  log *logger.Logger
  hub *sse.SSEHub
  bus StatusPublisher
}

func NewStageNotifier(baseLog *logger.Logger, hub *sse.SSEHub, bus StatusPublisher) StageNotifier {
  return &stageNotifier{
    log: baseLog.With("service", "StageNotifier"),
    hub: hub,
    bus: bus,
  }
}

func (n *stageNotifier) ActivityIngested(activityID uuid.UUID) {
  n.emit(sse.SSEMessage{
    Channel: activityID.String(),
    Event:   sse.SSEEventActivityIngested,
    Data: map[string]any{
      "activity_id": activityID,
    },
  })
}

func (n *stageNotifier) StageUpdated(activityID uuid.UUID, stage string, status string, errMsg string) {
  n.emit(sse.SSEMessage{
    Channel: activityID.String(),
    Event:   sse.SSEEventActivityStageUpdated,
    Data: map[string]any{
      "activity_id": activityID,
      "stage":       stage,
      "status":      status,
      "error":       errMsg,
    },
  })
}

func (n *stageNotifier) emit(msg sse.SSEMessage) {
  if n.bus != nil {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := n.bus.Publish(ctx, msg); err != nil {
      n.log.Warn("Failed to publish status event; falling back to local hub", "error", err, "event", msg.Event)
      if n.hub != nil {
        n.hub.Broadcast(msg)
      }
    }
    return
  }
  if n.hub != nil {
    n.hub.Broadcast(msg)
  }
}
