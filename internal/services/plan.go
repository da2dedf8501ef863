package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/repos"
  "github.com/stridelab/adherence-backend/internal/types"
)

// PlanStepInput is one compiled step as handed over by the external plan
// compiler; exactly one of DurationS/DistanceM must be set.
type PlanStepInput struct {
  Kind        string   `json:"kind" binding:"required"`
  SegmentType string   `json:"segment_type"`
  DurationS   *float64 `json:"duration_s"`
  DistanceM   *float64 `json:"distance_m"`
  TargetLow   float64  `json:"target_low"`
  TargetHigh  float64  `json:"target_high"`
  TargetKind  string   `json:"target_kind"`
}

type PlanService interface {
  Create(ctx context.Context, name string, steps []PlanStepInput) (*types.TrainingPlan, error)
  Get(ctx context.Context, id uuid.UUID) (*types.TrainingPlan, error)
}

type planService struct {
  db       *gorm.DB
  log      *logger.Logger
  planRepo repos.TrainingPlanRepo
}

func NewPlanService(db *gorm.DB, baseLog *logger.Logger, planRepo repos.TrainingPlanRepo) PlanService {
  return &planService{
    db:       db,
    log:      baseLog.With("service", "PlanService"),
    planRepo: planRepo,
  }
}

func (s *planService) Create(ctx context.Context, name string, steps []PlanStepInput) (*types.TrainingPlan, error) {
  if name == "" {
    return nil, fmt.Errorf("missing plan name")
  }
  if len(steps) == 0 {
    return nil, fmt.Errorf("plan requires at least one step")
  }
  for i, st := range steps {
    if (st.DurationS == nil) == (st.DistanceM == nil) {
      return nil, fmt.Errorf("step %d must set exactly one of duration_s or distance_m", i)
    }
    switch st.Kind {
    case types.StepKindWarmup, types.StepKindWork, types.StepKindRecovery, types.StepKindCooldown:
    default:
      return nil, fmt.Errorf("step %d has unknown kind %q", i, st.Kind)
    }
  }

  var plan *types.TrainingPlan
  err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    now := time.Now()
    plan = &types.TrainingPlan{
      ID:        uuid.New(),
      Name:      name,
      CreatedAt: now,
      UpdatedAt: now,
    }
    if _, err := s.planRepo.Create(ctx, tx, []*types.TrainingPlan{plan}); err != nil {
      return fmt.Errorf("create plan: %w", err)
    }

    planSteps := make([]*types.PlanStep, 0, len(steps))
    for i, st := range steps {
      targetKind := st.TargetKind
      if targetKind == "" {
        targetKind = types.TargetKindPace
      }
      planSteps = append(planSteps, &types.PlanStep{
        ID:          uuid.New(),
        PlanID:      plan.ID,
        Position:    i,
        Kind:        st.Kind,
        SegmentType: st.SegmentType,
        DurationS:   st.DurationS,
        DistanceM:   st.DistanceM,
        TargetLow:   st.TargetLow,
        TargetHigh:  st.TargetHigh,
        TargetKind:  targetKind,
        CreatedAt:   now,
        UpdatedAt:   now,
      })
    }
    if _, err := s.planRepo.CreateSteps(ctx, tx, planSteps); err != nil {
      return fmt.Errorf("create plan steps: %w", err)
    }
    plan.Steps = planSteps
    return nil
  })
  if err != nil {
    return nil, err
  }

  s.log.Info("Training plan created", "plan_id", plan.ID, "steps", len(plan.Steps))
  return plan, nil
}

func (s *planService) Get(ctx context.Context, id uuid.UUID) (*types.TrainingPlan, error) {
  if id == uuid.Nil {
    return nil, fmt.Errorf("missing plan id")
  }
  plans, err := s.planRepo.GetByIDs(ctx, nil, []uuid.UUID{id})
  if err != nil {
    return nil, err
  }
  if len(plans) == 0 || plans[0] == nil {
    return nil, fmt.Errorf("plan not found")
  }
  plan := plans[0]
  steps, err := s.planRepo.GetStepsByPlanID(ctx, nil, id)
  if err != nil {
    return nil, err
  }
  plan.Steps = steps
  return plan, nil
}
