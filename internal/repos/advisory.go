package repos

import (
  "context"
  "fmt"
  "hash/fnv"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/stridelab/adherence-backend/internal/logger"
)

// AdvisoryLockRepo grants named, transaction-scoped exclusion via Postgres
// advisory locks. There is no release call; the lock drops when the
// transaction commits or rolls back. Keys are namespaced "{stage}:{activity}"
// so different stages on one activity never contend, and one stage on two
// activities never contends.
type AdvisoryLockRepo interface {
  TryAcquire(ctx context.Context, tx *gorm.DB, stage string, activityID uuid.UUID) (bool, error)
}

type advisoryLockRepo struct {
  log *logger.Logger
}

func NewAdvisoryLockRepo(baseLog *logger.Logger) AdvisoryLockRepo {
  repoLog := baseLog.With("repo", "AdvisoryLockRepo")
  return &advisoryLockRepo{log: repoLog}
}

func (r *advisoryLockRepo) TryAcquire(ctx context.Context, tx *gorm.DB, stage string, activityID uuid.UUID) (bool, error) {
  if tx == nil {
    return false, fmt.Errorf("advisory lock requires an open transaction")
  }
  if stage == "" || activityID == uuid.Nil {
    return false, fmt.Errorf("missing stage name or activity id")
  }

  key := AdvisoryKey64(stage, activityID)
  var acquired bool
  if err := tx.WithContext(ctx).
    Raw("SELECT pg_try_advisory_xact_lock(?)", key).
    Scan(&acquired).Error; err != nil {
    return false, fmt.Errorf("try advisory lock: %w", err)
  }
  if !acquired {
    r.log.Debug("Advisory lock contended", "stage", stage, "activity_id", activityID)
  }
  return acquired, nil
}

// AdvisoryKey64 folds "{stage}:{activity-id}" into the bigint keyspace
// pg_try_advisory_xact_lock expects.
func AdvisoryKey64(stage string, activityID uuid.UUID) int64 {
  h := fnv.New64a()
  _, _ = h.Write([]byte(stage))
  _, _ = h.Write([]byte{':'})
  _, _ = h.Write([]byte(activityID.String()))
  return int64(h.Sum64())
}
