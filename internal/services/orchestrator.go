package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"

  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/repos"
)

// OrchestratorService is the single ingestion entry point. It sets every
// stage status to pending, awaits the linker (the one hard ordering
// dependency: plan linkage must be durably committed before slicing or
// scoring runs), then fires the stages concurrently and returns without
// waiting on them. Stage failures are recorded per stage and never surface
// to the ingest caller.
type OrchestratorService interface {
  Ingest(ctx context.Context, activityID uuid.UUID, planID *uuid.UUID) error
}

type orchestratorService struct {
  log          *logger.Logger
  activityRepo repos.ActivityRepo
  linker       LinkerService
  stages       []StageProcessor
  notifier     StageNotifier
  stageTimeout time.Duration
}

func NewOrchestratorService(baseLog *logger.Logger, activityRepo repos.ActivityRepo, linker LinkerService, stages []StageProcessor, notifier StageNotifier, stageTimeout time.Duration) OrchestratorService {
  if stageTimeout <= 0 {
    stageTimeout = 5 * time.Minute
  }
  return &orchestratorService{
    log:          baseLog.With("service", "OrchestratorService"),
    activityRepo: activityRepo,
    linker:       linker,
    stages:       stages,
    notifier:     notifier,
    stageTimeout: stageTimeout,
  }
}

func (o *orchestratorService) Ingest(ctx context.Context, activityID uuid.UUID, planID *uuid.UUID) error {
  if activityID == uuid.Nil {
    return fmt.Errorf("missing activity id")
  }

  activities, err := o.activityRepo.GetByIDs(ctx, nil, []uuid.UUID{activityID})
  if err != nil {
    return fmt.Errorf("load activity: %w", err)
  }
  if len(activities) == 0 || activities[0] == nil {
    return fmt.Errorf("activity not found")
  }

  if err := o.activityRepo.ResetAllStageStatuses(ctx, nil, activityID); err != nil {
    return fmt.Errorf("reset stage statuses: %w", err)
  }

  if planID != nil {
    // Awaited, not merely scheduled first: the stages below must observe
    // the committed plan link.
    if err := o.linker.Link(ctx, activityID, *planID); err != nil {
      return fmt.Errorf("link plan: %w", err)
    }
  }

  if o.notifier != nil {
    o.notifier.ActivityIngested(activityID)
  }
  go o.dispatchStages(activityID)
  return nil
}

// dispatchStages fires every stage concurrently on a detached context; the
// ingest HTTP call has already returned by the time these run. Each stage is
// independently lock-guarded and status-tracked, so any interleaving is safe.
func (o *orchestratorService) dispatchStages(activityID uuid.UUID) {
  ctx, cancel := context.WithTimeout(context.Background(), o.stageTimeout)
  defer cancel()

  g, gctx := errgroup.WithContext(ctx)
  for _, stage := range o.stages {
    stage := stage
    g.Go(func() error {
      skipped, err := stage.Process(gctx, activityID)
      if err != nil {
        // Recorded on the activity row by the stage runner; isolated here
        // so one stage's failure never cancels its siblings.
        o.log.Warn("Stage failed during ingest dispatch", "stage", stage.StageName(), "activity_id", activityID, "error", err)
        return nil
      }
      if skipped {
        o.log.Debug("Stage already running elsewhere", "stage", stage.StageName(), "activity_id", activityID)
      }
      return nil
    })
  }
  _ = g.Wait()
}
