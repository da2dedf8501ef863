package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/repos"
  "github.com/stridelab/adherence-backend/internal/types"
)

// ActivityService covers the normalized-webhook boundary: the ingestion
// layer has already turned provider payloads into a uniform sample stream by
// the time it lands here. The sample stream is append-only once stored.
type ActivityService interface {
  Create(ctx context.Context, externalRef string, samples []types.Sample, planID *uuid.UUID) (*types.Activity, error)
  Get(ctx context.Context, id uuid.UUID) (*types.Activity, error)
  Report(ctx context.Context, id uuid.UUID) (map[string]any, error)
}

type activityService struct {
  db           *gorm.DB
  log          *logger.Logger
  activityRepo repos.ActivityRepo
  planRepo     repos.TrainingPlanRepo
}

func NewActivityService(db *gorm.DB, baseLog *logger.Logger, activityRepo repos.ActivityRepo, planRepo repos.TrainingPlanRepo) ActivityService {
  return &activityService{
    db:           db,
    log:          baseLog.With("service", "ActivityService"),
    activityRepo: activityRepo,
    planRepo:     planRepo,
  }
}

func (s *activityService) Create(ctx context.Context, externalRef string, samples []types.Sample, planID *uuid.UUID) (*types.Activity, error) {
  if len(samples) == 0 {
    return nil, fmt.Errorf("activity requires at least one sample")
  }
  encoded, err := types.EncodeSamples(samples)
  if err != nil {
    return nil, err
  }

  var activity *types.Activity
  err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if planID != nil {
      plans, err := s.planRepo.GetByIDs(ctx, tx, []uuid.UUID{*planID})
      if err != nil {
        return fmt.Errorf("load plan: %w", err)
      }
      if len(plans) == 0 || plans[0] == nil {
        return fmt.Errorf("plan not found")
      }
    }

    now := time.Now()
    activity = &types.Activity{
      ID:             uuid.New(),
      ExternalRef:    externalRef,
      PlanID:         planID,
      Samples:        encoded,
      Document:       datatypes.JSON([]byte(`{}`)),
      SummaryStatus:  types.StageStatusPending,
      AnalysisStatus: types.StageStatusPending,
      MetricsStatus:  types.StageStatusPending,
      CreatedAt:      now,
      UpdatedAt:      now,
    }
    if _, err := s.activityRepo.Create(ctx, tx, []*types.Activity{activity}); err != nil {
      return fmt.Errorf("create activity: %w", err)
    }
    return nil
  })
  if err != nil {
    return nil, err
  }

  s.log.Info("Activity created", "activity_id", activity.ID, "external_ref", externalRef, "samples", len(samples))
  return activity, nil
}

func (s *activityService) Get(ctx context.Context, id uuid.UUID) (*types.Activity, error) {
  if id == uuid.Nil {
    return nil, fmt.Errorf("missing activity id")
  }
  activities, err := s.activityRepo.GetByIDs(ctx, nil, []uuid.UUID{id})
  if err != nil {
    return nil, err
  }
  if len(activities) == 0 || activities[0] == nil {
    return nil, fmt.Errorf("activity not found")
  }
  return activities[0], nil
}

func (s *activityService) Report(ctx context.Context, id uuid.UUID) (map[string]any, error) {
  activity, err := s.Get(ctx, id)
  if err != nil {
    return nil, err
  }
  return repos.NormalizeDocument(activity.Document), nil
}
