package services

import (
  "context"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/repos"
  "github.com/stridelab/adherence-backend/internal/types"
)

// LinkerService binds an activity to its training plan. Linking is
// idempotent; re-linking to a different plan is the documented re-attach
// path: it clears the computed document keys and resets every stage status
// to pending so the whole report is recomputed against the new plan. The
// orchestrator awaits Link before firing any stage, which is the one hard
// ordering guarantee in the system, so Link only returns after its
// transaction has committed.
type LinkerService interface {
  Link(ctx context.Context, activityID uuid.UUID, planID uuid.UUID) error
}

type linkerService struct {
  log          *logger.Logger
  activityRepo repos.ActivityRepo
  planRepo     repos.TrainingPlanRepo
  notifier     StageNotifier
  runTx        func(ctx context.Context, fn func(tx *gorm.DB) error) error
}

func NewLinkerService(db *gorm.DB, baseLog *logger.Logger, activityRepo repos.ActivityRepo, planRepo repos.TrainingPlanRepo, notifier StageNotifier) LinkerService {
  return &linkerService{
    log:          baseLog.With("service", "LinkerService"),
    activityRepo: activityRepo,
    planRepo:     planRepo,
    notifier:     notifier,
    runTx: func(ctx context.Context, fn func(tx *gorm.DB) error) error {
      return db.WithContext(ctx).Transaction(fn)
    },
  }
}

func (s *linkerService) Link(ctx context.Context, activityID uuid.UUID, planID uuid.UUID) error {
  if activityID == uuid.Nil {
    return fmt.Errorf("missing activity id")
  }
  if planID == uuid.Nil {
    return fmt.Errorf("missing plan id")
  }

  var relinked bool

  err := s.runTx(ctx, func(tx *gorm.DB) error {
    activities, err := s.activityRepo.GetByIDs(ctx, tx, []uuid.UUID{activityID})
    if err != nil {
      return fmt.Errorf("load activity: %w", err)
    }
    if len(activities) == 0 || activities[0] == nil {
      return fmt.Errorf("activity not found")
    }
    activity := activities[0]

    plans, err := s.planRepo.GetByIDs(ctx, tx, []uuid.UUID{planID})
    if err != nil {
      return fmt.Errorf("load plan: %w", err)
    }
    if len(plans) == 0 || plans[0] == nil {
      return fmt.Errorf("plan not found")
    }

    if activity.PlanID != nil && *activity.PlanID == planID {
      // Already linked to this plan; nothing to do.
      return nil
    }
    relinked = activity.PlanID != nil

    if err := s.activityRepo.SetPlanID(ctx, tx, activityID, planID); err != nil {
      return fmt.Errorf("set plan link: %w", err)
    }

    if relinked {
      // Computed results derive from the old plan; drop them and force
      // full recomputation.
      if err := s.activityRepo.MergeDocument(ctx, tx, activityID, func(_ *types.Activity, _ map[string]any) (map[string]any, error) {
        return map[string]any{
          types.DocKeyIntervals: nil,
          types.DocKeyOverall:   nil,
          types.DocKeyAnalysis:  nil,
        }, nil
      }); err != nil {
        return fmt.Errorf("clear computed document: %w", err)
      }
      if err := s.activityRepo.ResetAllStageStatuses(ctx, tx, activityID); err != nil {
        return fmt.Errorf("reset stage statuses: %w", err)
      }
    }

    return nil
  })
  if err != nil {
    return err
  }

  if relinked {
    s.log.Info("Activity re-linked; computed results cleared", "activity_id", activityID, "plan_id", planID)
    if s.notifier != nil {
      for _, stage := range []string{types.StageSummary, types.StageAnalysis, types.StageMetrics} {
        s.notifier.StageUpdated(activityID, stage, types.StageStatusPending, "")
      }
    }
  }
  return nil
}
