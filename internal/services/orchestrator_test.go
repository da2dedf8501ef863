package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stridelab/adherence-backend/internal/logger"
	"github.com/stridelab/adherence-backend/internal/repos"
	"github.com/stridelab/adherence-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

type stubActivityRepo struct {
	mu         sync.Mutex
	activity   *types.Activity
	resetCalls int
}

func (s *stubActivityRepo) Create(_ context.Context, _ *gorm.DB, activities []*types.Activity) ([]*types.Activity, error) {
	return activities, nil
}

func (s *stubActivityRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activity == nil {
		return nil, nil
	}
	for _, id := range ids {
		if id == s.activity.ID {
			return []*types.Activity{s.activity}, nil
		}
	}
	return nil, nil
}

func (s *stubActivityRepo) SetPlanID(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ uuid.UUID) error {
	return nil
}

func (s *stubActivityRepo) SetStageStatus(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ string, _ string, _ string) error {
	return nil
}

func (s *stubActivityRepo) ResetAllStageStatuses(_ context.Context, _ *gorm.DB, _ uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetCalls++
	return nil
}

func (s *stubActivityRepo) MergeDocument(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ repos.DocumentMutator) error {
	return nil
}

type stubLinker struct {
	linked atomic.Bool
	calls  atomic.Int32
	err    error
}

func (s *stubLinker) Link(_ context.Context, _ uuid.UUID, _ uuid.UUID) error {
	s.calls.Add(1)
	if s.err != nil {
		return s.err
	}
	s.linked.Store(true)
	return nil
}

type stubStage struct {
	name          string
	err           error
	skipped       bool
	sawLinkedPlan atomic.Bool
	done          chan struct{}
	closeOnce     sync.Once
	linker        *stubLinker
}

func (s *stubStage) StageName() string { return s.name }

func (s *stubStage) Process(_ context.Context, _ uuid.UUID) (bool, error) {
	if s.linker != nil {
		s.sawLinkedPlan.Store(s.linker.linked.Load())
	}
	s.closeOnce.Do(func() { close(s.done) })
	return s.skipped, s.err
}

func newStubStage(name string, linker *stubLinker) *stubStage {
	return &stubStage{name: name, done: make(chan struct{}), linker: linker}
}

func awaitStage(t *testing.T, st *stubStage) {
	t.Helper()
	select {
	case <-st.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stage %q never ran", st.name)
	}
}

func TestIngest_LinkCommitsBeforeStagesRun(t *testing.T) {
	activityID := uuid.New()
	planID := uuid.New()
	repo := &stubActivityRepo{activity: &types.Activity{ID: activityID}}
	linker := &stubLinker{}
	stages := []*stubStage{
		newStubStage(types.StageSummary, linker),
		newStubStage(types.StageAnalysis, linker),
		newStubStage(types.StageMetrics, linker),
	}
	procs := make([]StageProcessor, 0, len(stages))
	for _, st := range stages {
		procs = append(procs, st)
	}

	orch := NewOrchestratorService(newTestLogger(t), repo, linker, procs, nil, time.Minute)
	if err := orch.Ingest(context.Background(), activityID, &planID); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	for _, st := range stages {
		awaitStage(t, st)
		if !st.sawLinkedPlan.Load() {
			t.Fatalf("stage %q dispatched before plan link committed", st.name)
		}
	}
	if linker.calls.Load() != 1 {
		t.Fatalf("expected exactly one link call, got %d", linker.calls.Load())
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.resetCalls != 1 {
		t.Fatalf("expected one status reset, got %d", repo.resetCalls)
	}
}

func TestIngest_UnknownActivityFails(t *testing.T) {
	repo := &stubActivityRepo{}
	linker := &stubLinker{}
	orch := NewOrchestratorService(newTestLogger(t), repo, linker, nil, nil, time.Minute)

	if err := orch.Ingest(context.Background(), uuid.New(), nil); err == nil {
		t.Fatalf("expected error for unknown activity")
	}
	if linker.calls.Load() != 0 {
		t.Fatalf("linker must not run for unknown activity")
	}
}

func TestIngest_LinkFailureSurfacesToCaller(t *testing.T) {
	activityID := uuid.New()
	planID := uuid.New()
	repo := &stubActivityRepo{activity: &types.Activity{ID: activityID}}
	linker := &stubLinker{err: fmt.Errorf("plan not found")}
	stage := newStubStage(types.StageSummary, nil)

	orch := NewOrchestratorService(newTestLogger(t), repo, linker, []StageProcessor{stage}, nil, time.Minute)
	if err := orch.Ingest(context.Background(), activityID, &planID); err == nil {
		t.Fatalf("expected link failure to surface")
	}
	select {
	case <-stage.done:
		t.Fatalf("stages must not dispatch after a failed link")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIngest_StageFailureIsIsolated(t *testing.T) {
	activityID := uuid.New()
	repo := &stubActivityRepo{activity: &types.Activity{ID: activityID}}
	linker := &stubLinker{}
	failing := newStubStage(types.StageSummary, nil)
	failing.err = fmt.Errorf("no plan link")
	healthy := newStubStage(types.StageAnalysis, nil)

	orch := NewOrchestratorService(newTestLogger(t), repo, linker, []StageProcessor{failing, healthy}, nil, time.Minute)
	if err := orch.Ingest(context.Background(), activityID, nil); err != nil {
		t.Fatalf("stage failures must not fail ingest: %v", err)
	}
	awaitStage(t, failing)
	awaitStage(t, healthy)
}

func TestIngest_DuplicateDispatchSkipsCleanly(t *testing.T) {
	activityID := uuid.New()
	repo := &stubActivityRepo{activity: &types.Activity{ID: activityID}}
	linker := &stubLinker{}
	stage := newStubStage(types.StageSummary, nil)
	stage.skipped = true // another instance already holds the stage lock

	orch := NewOrchestratorService(newTestLogger(t), repo, linker, []StageProcessor{stage}, nil, time.Minute)
	if err := orch.Ingest(context.Background(), activityID, nil); err != nil {
		t.Fatalf("a skipped stage is a clean no-op, not a failure: %v", err)
	}
	awaitStage(t, stage)
}

func TestIngest_NoPlanSkipsLinker(t *testing.T) {
	activityID := uuid.New()
	repo := &stubActivityRepo{activity: &types.Activity{ID: activityID}}
	linker := &stubLinker{}
	stage := newStubStage(types.StageSummary, nil)

	orch := NewOrchestratorService(newTestLogger(t), repo, linker, []StageProcessor{stage}, nil, time.Minute)
	if err := orch.Ingest(context.Background(), activityID, nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	awaitStage(t, stage)
	if linker.calls.Load() != 0 {
		t.Fatalf("linker must not run without a plan id")
	}
}
