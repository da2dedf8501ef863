package repos

import (
  "context"
  "encoding/json"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/types"
)

// DocumentMutator receives the freshly loaded activity row and the current
// document value (already normalized to an object) and returns the partial
// document of keys the calling stage owns. Returning a nil partial leaves the
// document untouched. The row stays locked until the surrounding transaction
// commits, so the current value cannot go stale between read and write.
type DocumentMutator func(activity *types.Activity, current map[string]any) (map[string]any, error)

type ActivityRepo interface {
  Create(ctx context.Context, tx *gorm.DB, activities []*types.Activity) ([]*types.Activity, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Activity, error)
  SetPlanID(ctx context.Context, tx *gorm.DB, id uuid.UUID, planID uuid.UUID) error
  SetStageStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, stage string, status string, errMsg string) error
  ResetAllStageStatuses(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
  MergeDocument(ctx context.Context, tx *gorm.DB, id uuid.UUID, mutate DocumentMutator) error
}

type activityRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewActivityRepo(db *gorm.DB, baseLog *logger.Logger) ActivityRepo {
  repoLog := baseLog.With("repo", "ActivityRepo")
  return &activityRepo{db: db, log: repoLog}
}

func (r *activityRepo) Create(ctx context.Context, tx *gorm.DB, activities []*types.Activity) ([]*types.Activity, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(activities) == 0 {
    return []*types.Activity{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&activities).Error; err != nil {
    return nil, err
  }
  return activities, nil
}

func (r *activityRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Activity, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Activity
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

func (r *activityRepo) SetPlanID(ctx context.Context, tx *gorm.DB, id uuid.UUID, planID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return fmt.Errorf("missing activity id")
  }
  return transaction.WithContext(ctx).
    Model(&types.Activity{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "plan_id":    planID,
      "updated_at": time.Now(),
    }).Error
}

func (r *activityRepo) SetStageStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, stage string, status string, errMsg string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return fmt.Errorf("missing activity id")
  }

  now := time.Now()
  updates := map[string]interface{}{"updated_at": now}
  switch stage {
  case types.StageSummary:
    updates["summary_status"] = status
    updates["summary_error"] = errMsg
    updates["summary_updated_at"] = now
  case types.StageAnalysis:
    updates["analysis_status"] = status
    updates["analysis_error"] = errMsg
    updates["analysis_updated_at"] = now
  case types.StageMetrics:
    updates["metrics_status"] = status
    updates["metrics_error"] = errMsg
    updates["metrics_updated_at"] = now
  default:
    return fmt.Errorf("unknown stage %q", stage)
  }

  return transaction.WithContext(ctx).
    Model(&types.Activity{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *activityRepo) ResetAllStageStatuses(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return fmt.Errorf("missing activity id")
  }
  now := time.Now()
  return transaction.WithContext(ctx).
    Model(&types.Activity{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "summary_status":      types.StageStatusPending,
      "analysis_status":     types.StageStatusPending,
      "metrics_status":      types.StageStatusPending,
      "summary_error":       "",
      "analysis_error":      "",
      "metrics_error":       "",
      "summary_updated_at":  now,
      "analysis_updated_at": now,
      "metrics_updated_at":  now,
      "updated_at":          now,
    }).Error
}

// MergeDocument is the single write path for the activity document. It holds
// a row-level write lock across read-mutate-write so two stages merging
// concurrently cannot erase each other's keys.
func (r *activityRepo) MergeDocument(ctx context.Context, tx *gorm.DB, id uuid.UUID, mutate DocumentMutator) error {
  if id == uuid.Nil {
    return fmt.Errorf("missing activity id")
  }
  if mutate == nil {
    return fmt.Errorf("missing document mutator")
  }

  run := func(txx *gorm.DB) error {
    var activity types.Activity
    if err := txx.WithContext(ctx).
      Clauses(clause.Locking{Strength: "UPDATE"}).
      Where("id = ?", id).
      First(&activity).Error; err != nil {
      return fmt.Errorf("lock activity row: %w", err)
    }

    current := NormalizeDocument(activity.Document)

    partial, err := mutate(&activity, current)
    if err != nil {
      return err
    }
    if partial == nil {
      return nil
    }

    merged := ShallowMergeDocument(current, partial)
    raw, err := json.Marshal(merged)
    if err != nil {
      return fmt.Errorf("encode merged document: %w", err)
    }

    return txx.WithContext(ctx).
      Model(&types.Activity{}).
      Where("id = ?", id).
      Updates(map[string]interface{}{
        "document":   datatypes.JSON(raw),
        "updated_at": time.Now(),
      }).Error
  }

  if tx != nil {
    return run(tx)
  }
  return r.db.WithContext(ctx).Transaction(run)
}

// NormalizeDocument decodes a stored document value, coercing anything that
// is not a well-formed JSON object (historically corrupted rows held arrays
// or strings) back to an empty object.
func NormalizeDocument(raw datatypes.JSON) map[string]any {
  if len(raw) == 0 {
    return map[string]any{}
  }
  var doc map[string]any
  if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
    return map[string]any{}
  }
  return doc
}

// ShallowMergeDocument merges partial over existing at the top level only.
// Keys the partial does not mention carry over unchanged; an explicit nil in
// the partial deletes the key (the re-link path uses this to clear results).
func ShallowMergeDocument(existing map[string]any, partial map[string]any) map[string]any {
  out := make(map[string]any, len(existing)+len(partial))
  for k, v := range existing {
    out[k] = v
  }
  for k, v := range partial {
    if v == nil {
      delete(out, k)
      continue
    }
    out[k] = v
  }
  return out
}
