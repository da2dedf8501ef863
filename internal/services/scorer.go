package services

import (
  "context"
  "fmt"
  "math"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/stridelab/adherence-backend/internal/logger"
  "github.com/stridelab/adherence-backend/internal/repos"
  "github.com/stridelab/adherence-backend/internal/types"
)

// workIntervalMaxDurationS: unhinted work steps at or under this planned
// duration classify as work_interval, above it as tempo.
const workIntervalMaxDurationS = 480.0

// segmentRule holds the percentage-point deviation allowed before penalty
// accrues and the segment's weight in the whole-activity score.
type segmentRule struct {
  Tolerance float64
  Weight    float64
}

var segmentRules = map[string]segmentRule{
  types.SegmentWarmup:         {Tolerance: 10, Weight: 0.5},
  types.SegmentCooldown:       {Tolerance: 10, Weight: 0.3},
  types.SegmentWorkInterval:   {Tolerance: 5, Weight: 1.0},
  types.SegmentTempo:          {Tolerance: 4, Weight: 1.0},
  types.SegmentCruiseInterval: {Tolerance: 5, Weight: 0.9},
  types.SegmentRecoveryJog:    {Tolerance: 15, Weight: 0.7},
  types.SegmentEasyRun:        {Tolerance: 8, Weight: 0.6},
}

// ScoreEngineService is the metrics stage: it classifies each interval by
// segment type, applies the tolerance/weight/direction rules, and produces
// per-interval penalties and the whole-activity execution score. Penalties
// only ever subtract; a session that is too fast in one segment and too
// slow in another cannot average its way back to a perfect score.
type ScoreEngineService interface {
  StageProcessor
}

type scoreEngineService struct {
  runner *stageRunner
  log    *logger.Logger
}

func NewScoreEngineService(db *gorm.DB, baseLog *logger.Logger, activityRepo repos.ActivityRepo, locks repos.AdvisoryLockRepo, notifier StageNotifier) ScoreEngineService {
  log := baseLog.With("service", "ScoreEngineService")
  return &scoreEngineService{
    runner: newStageRunner(db, log, activityRepo, locks, notifier),
    log:    log,
  }
}

func (s *scoreEngineService) StageName() string { return types.StageMetrics }

func (s *scoreEngineService) Process(ctx context.Context, activityID uuid.UUID) (bool, error) {
  return s.runner.run(ctx, types.StageMetrics, activityID, s.compute)
}

func (s *scoreEngineService) compute(_ context.Context, _ *gorm.DB, activity *types.Activity, current map[string]any) (map[string]any, error) {
  if activity.PlanID == nil {
    return nil, fmt.Errorf("activity has no plan link")
  }
  intervals, err := types.IntervalsFromDocument(current)
  if err != nil {
    return nil, err
  }
  if len(intervals) == 0 {
    return nil, fmt.Errorf("no intervals to score; summary stage has not produced them yet")
  }

  overall := ScoreIntervals(intervals)

  encodedIntervals, err := types.JSONValue(intervals)
  if err != nil {
    return nil, fmt.Errorf("encode intervals: %w", err)
  }
  encodedOverall, err := types.JSONValue(overall)
  if err != nil {
    return nil, fmt.Errorf("encode overall: %w", err)
  }
  s.log.Info("Scored activity execution", "activity_id", activity.ID, "execution_score", overall.ExecutionScore, "total_penalty", overall.TotalPenalty)
  return map[string]any{
    types.DocKeyIntervals: encodedIntervals,
    types.DocKeyOverall:   encodedOverall,
  }, nil
}

// ScoreIntervals classifies and scores every interval in place and returns
// the whole-activity aggregate. Intervals without an adherence percentage
// are counted but never scored; missing data must not read as a penalty or
// as perfection.
func ScoreIntervals(intervals []types.Interval) types.Overall {
  overall := types.Overall{IntervalsTotal: len(intervals)}

  var totalPenalty float64
  var plannedTotal, actualTotal float64
  var durationStepActual float64

  for i := range intervals {
    iv := &intervals[i]
    iv.SegmentType = ClassifySegment(*iv)

    if iv.Planned.DurationS != nil {
      plannedTotal += *iv.Planned.DurationS
      if iv.Executed != nil {
        // Only duration steps feed the adherence ratio; time spent on
        // distance steps has no planned-duration counterpart and would
        // inflate the numerator.
        durationStepActual += iv.Executed.DurationS
      }
    }
    if iv.Executed != nil {
      actualTotal += iv.Executed.DurationS
    }

    if iv.Executed == nil || iv.Executed.AdherencePercentage == nil {
      iv.Score = nil
      continue
    }

    score := scoreInterval(iv.SegmentType, *iv.Executed.AdherencePercentage)
    iv.Score = &score
    totalPenalty += score.Penalty
    overall.IntervalsScored++
  }

  overall.TotalPenalty = totalPenalty
  overall.PlannedDurationS = plannedTotal
  overall.ActualDurationS = actualTotal
  overall.ExecutionScore = executionScore(totalPenalty)
  overall.DurationAdherencePct = durationAdherencePct(durationStepActual, plannedTotal)
  return overall
}

// ClassifySegment is deterministic; the first rule that matches wins. An
// explicit hint from the plan step always takes precedence.
func ClassifySegment(iv types.Interval) string {
  if hint := iv.Planned.SegmentHint; hint != "" {
    if _, ok := segmentRules[hint]; ok {
      return hint
    }
  }
  switch iv.Planned.StepKind {
  case types.StepKindWarmup:
    return types.SegmentWarmup
  case types.StepKindCooldown:
    return types.SegmentCooldown
  case types.StepKindRecovery:
    return types.SegmentRecoveryJog
  }

  duration := iv.Planned.DurationS
  if duration == nil && iv.Executed != nil {
    duration = &iv.Executed.DurationS
  }
  if duration != nil && *duration <= workIntervalMaxDurationS {
    return types.SegmentWorkInterval
  }
  return types.SegmentTempo
}

func scoreInterval(segmentType string, adherence float64) types.IntervalScore {
  rule, ok := segmentRules[segmentType]
  if !ok {
    rule = segmentRules[types.SegmentTempo]
  }

  deviation := math.Abs(adherence - 100)
  var base float64
  if deviation > rule.Tolerance {
    base = (deviation - rule.Tolerance) * rule.Weight
  }

  var directional float64
  switch segmentType {
  case types.SegmentWorkInterval, types.SegmentTempo:
    if adherence < 95 {
      // Too slow: the training stimulus was missed.
      directional += 5
    } else if adherence > 110 {
      // Too fast: overreaching risk.
      directional += 3
    }
  case types.SegmentRecoveryJog:
    if adherence < 85 {
      // Walked instead of jogged; poor recovery execution.
      directional += 3
    }
  }

  return types.IntervalScore{
    BasePenalty:        base,
    DirectionalPenalty: directional,
    Penalty:            base + directional,
  }
}

func executionScore(totalPenalty float64) int {
  score := int(math.Round(100 - totalPenalty))
  if score < 0 {
    return 0
  }
  if score > 100 {
    return 100
  }
  return score
}

// durationAdherencePct caps at 100: a longer-than-planned activity is never
// scored as better.
func durationAdherencePct(actual, planned float64) *float64 {
  if planned <= 0 {
    return nil
  }
  pct := actual / planned * 100
  if pct > 100 {
    pct = 100
  }
  return &pct
}
