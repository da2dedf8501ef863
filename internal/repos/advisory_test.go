package repos

import (
	"testing"

	"github.com/google/uuid"

	"github.com/stridelab/adherence-backend/internal/types"
)

func TestAdvisoryKey64_Deterministic(t *testing.T) {
	id := uuid.New()
	a := AdvisoryKey64(types.StageSummary, id)
	b := AdvisoryKey64(types.StageSummary, id)
	if a != b {
		t.Fatalf("same stage and activity must hash identically: %d vs %d", a, b)
	}
}

func TestAdvisoryKey64_StagesDoNotContend(t *testing.T) {
	id := uuid.New()
	keys := map[int64]string{}
	for _, stage := range []string{types.StageSummary, types.StageAnalysis, types.StageMetrics} {
		k := AdvisoryKey64(stage, id)
		if prev, dup := keys[k]; dup {
			t.Fatalf("stage %q collides with %q on key %d", stage, prev, k)
		}
		keys[k] = stage
	}
}

func TestAdvisoryKey64_ActivitiesDoNotContend(t *testing.T) {
	a := AdvisoryKey64(types.StageSummary, uuid.New())
	b := AdvisoryKey64(types.StageSummary, uuid.New())
	if a == b {
		t.Fatalf("distinct activities must not share a lock key")
	}
}
