package services

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/repos"
  "github.com/stridelab/adherence-backend/internal/types"
)

// StageProcessor is one stateless, idempotent computation stage. Process
// returns skipped=true when another instance of the same stage already holds
// the advisory lock for the activity; that is a clean no-op, not an error.
type StageProcessor interface {
  StageName() string
  Process(ctx context.Context, activityID uuid.UUID) (skipped bool, err error)
}

// stageCompute produces the partial document (owned keys only) for one stage.
// It runs inside the row-locked merge transaction, so `current` is guaranteed
// to be the value the merge applies against.
type stageCompute func(ctx context.Context, tx *gorm.DB, activity *types.Activity, current map[string]any) (map[string]any, error)

// stageRunner is the lifecycle shared by all three stages: take the advisory
// lock, mark processing, compute and merge, then mark complete. Failures are
// recorded per stage and never propagated past the HTTP boundary as anything
// but a 5xx.
type stageRunner struct {
  db           *gorm.DB
  log          *logger.Logger
  activityRepo repos.ActivityRepo
  locks        repos.AdvisoryLockRepo
  notifier     StageNotifier
}

func newStageRunner(db *gorm.DB, baseLog *logger.Logger, activityRepo repos.ActivityRepo, locks repos.AdvisoryLockRepo, notifier StageNotifier) *stageRunner {
  return &stageRunner{
    db:           db,
    log:          baseLog,
    activityRepo: activityRepo,
    locks:        locks,
    notifier:     notifier,
  }
}

func (sr *stageRunner) run(ctx context.Context, stage string, activityID uuid.UUID, compute stageCompute) (bool, error) {
  var skipped bool

  err := sr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    acquired, lerr := sr.locks.TryAcquire(ctx, tx, stage, activityID)
    if lerr != nil {
      return lerr
    }
    if !acquired {
      skipped = true
      return nil
    }

    // Status writes go through the base connection so the transition is
    // observable while the stage transaction is still open.
    if serr := sr.setStatus(ctx, activityID, stage, types.StageStatusProcessing, ""); serr != nil {
      return serr
    }

    return sr.activityRepo.MergeDocument(ctx, tx, activityID, func(activity *types.Activity, current map[string]any) (map[string]any, error) {
      return compute(ctx, tx, activity, current)
    })
  })

  if err != nil {
    sr.log.Error("Stage failed", "stage", stage, "activity_id", activityID, "error", err)
    if serr := sr.setStatus(ctx, activityID, stage, types.StageStatusFailed, err.Error()); serr != nil {
      sr.log.Error("Failed to record stage failure", "stage", stage, "activity_id", activityID, "error", serr)
    }
    return false, err
  }
  if skipped {
    sr.log.Info("Stage skipped; another instance holds the lock", "stage", stage, "activity_id", activityID)
    return true, nil
  }
  return false, sr.setStatus(ctx, activityID, stage, types.StageStatusComplete, "")
}

func (sr *stageRunner) setStatus(ctx context.Context, activityID uuid.UUID, stage string, status string, errMsg string) error {
  if err := sr.activityRepo.SetStageStatus(ctx, nil, activityID, stage, status, errMsg); err != nil {
    return err
  }
  if sr.notifier != nil {
    sr.notifier.StageUpdated(activityID, stage, status, errMsg)
  }
  return nil
}
