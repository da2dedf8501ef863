package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/types"
)

type TrainingPlanRepo interface {
  Create(ctx context.Context, tx *gorm.DB, plans []*types.TrainingPlan) ([]*types.TrainingPlan, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.TrainingPlan, error)
  CreateSteps(ctx context.Context, tx *gorm.DB, steps []*types.PlanStep) ([]*types.PlanStep, error)
  GetStepsByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanStep, error)
}

type trainingPlanRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewTrainingPlanRepo(db *gorm.DB, baseLog *logger.Logger) TrainingPlanRepo {
  repoLog := baseLog.With("repo", "TrainingPlanRepo")
  return &trainingPlanRepo{db: db, log: repoLog}
}

func (r *trainingPlanRepo) Create(ctx context.Context, tx *gorm.DB, plans []*types.TrainingPlan) ([]*types.TrainingPlan, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(plans) == 0 {
    return []*types.TrainingPlan{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&plans).Error; err != nil {
    return nil, err
  }
  return plans, nil
}

func (r *trainingPlanRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.TrainingPlan, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.TrainingPlan
  if len(ids) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *trainingPlanRepo) CreateSteps(ctx context.Context, tx *gorm.DB, steps []*types.PlanStep) ([]*types.PlanStep, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(steps) == 0 {
    return []*types.PlanStep{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&steps).Error; err != nil {
    return nil, err
  }
  return steps, nil
}

func (r *trainingPlanRepo) GetStepsByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanStep, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.PlanStep
  if planID == uuid.Nil {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("plan_id = ?", planID).
    Order("position ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
