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

// IntervalSlicerService is the summary stage: it cuts the sample stream into
// one slice per plan step and computes the executed averages and adherence
// percentage for each. It owns the `intervals` document key; enrichment and
// scoring fields already present on an interval (matched by planned_step_id)
// are carried over so a re-run never destroys sibling stages' work.
type IntervalSlicerService interface {
  StageProcessor
}

type intervalSlicerService struct {
  runner   *stageRunner
  log      *logger.Logger
  planRepo repos.TrainingPlanRepo
}

func NewIntervalSlicerService(db *gorm.DB, baseLog *logger.Logger, activityRepo repos.ActivityRepo, planRepo repos.TrainingPlanRepo, locks repos.AdvisoryLockRepo, notifier StageNotifier) IntervalSlicerService {
  log := baseLog.With("service", "IntervalSlicerService")
  return &intervalSlicerService{
    runner:   newStageRunner(db, log, activityRepo, locks, notifier),
    log:      log,
    planRepo: planRepo,
  }
}

func (s *intervalSlicerService) StageName() string { return types.StageSummary }

func (s *intervalSlicerService) Process(ctx context.Context, activityID uuid.UUID) (bool, error) {
  return s.runner.run(ctx, types.StageSummary, activityID, s.compute)
}

func (s *intervalSlicerService) compute(ctx context.Context, tx *gorm.DB, activity *types.Activity, current map[string]any) (map[string]any, error) {
  if activity.PlanID == nil {
    return nil, fmt.Errorf("activity has no plan link")
  }
  steps, err := s.planRepo.GetStepsByPlanID(ctx, tx, *activity.PlanID)
  if err != nil {
    return nil, fmt.Errorf("load plan steps: %w", err)
  }
  if len(steps) == 0 {
    return nil, fmt.Errorf("linked plan has no steps")
  }
  samples, err := types.DecodeSamples(activity.Samples)
  if err != nil {
    return nil, err
  }

  prior, err := types.IntervalsFromDocument(current)
  if err != nil {
    return nil, err
  }
  priorByStep := make(map[uuid.UUID]types.Interval, len(prior))
  for _, iv := range prior {
    if iv.PlannedStepID != nil {
      priorByStep[*iv.PlannedStepID] = iv
    }
  }

  intervals := SliceIntervals(steps, samples)
  for i := range intervals {
    if intervals[i].PlannedStepID == nil {
      continue
    }
    if old, ok := priorByStep[*intervals[i].PlannedStepID]; ok {
      intervals[i].GranularMetrics = old.GranularMetrics
      intervals[i].Score = old.Score
      intervals[i].SegmentType = old.SegmentType
    }
  }

  encoded, err := types.JSONValue(intervals)
  if err != nil {
    return nil, fmt.Errorf("encode intervals: %w", err)
  }
  s.log.Info("Sliced activity into intervals", "activity_id", activity.ID, "steps", len(steps), "intervals", len(intervals))
  return map[string]any{types.DocKeyIntervals: encoded}, nil
}

// SliceIntervals cuts the sample stream into one non-overlapping slice per
// plan step, in plan order. Duration steps accumulate planned durations into
// elapsed-time ranges; distance steps bracket cumulative distance. A slice
// with zero samples yields a nil Executed and nil adherence, never zero,
// which would be indistinguishable from hitting the target exactly.
func SliceIntervals(steps []*types.PlanStep, samples []types.Sample) []types.Interval {
  intervals := make([]types.Interval, 0, len(steps))

  timeOffset := 0.0
  distOffset := 0.0
  cursor := 0

  for _, step := range steps {
    if step == nil {
      continue
    }

    var start, end int
    switch {
    case step.DurationS != nil:
      endT := timeOffset + *step.DurationS
      start = firstIndexFrom(samples, cursor, func(sm types.Sample) bool { return sm.ElapsedS >= timeOffset })
      end = firstIndexFrom(samples, start, func(sm types.Sample) bool { return sm.ElapsedS >= endT })
      timeOffset = endT
      if d := lastDistanceIn(samples, start, end); d != nil {
        distOffset = *d
      }
    case step.DistanceM != nil:
      endD := distOffset + *step.DistanceM
      start = firstIndexFrom(samples, cursor, func(sm types.Sample) bool {
        return sm.DistanceM != nil && *sm.DistanceM >= distOffset
      })
      end = firstIndexFrom(samples, start, func(sm types.Sample) bool {
        return sm.DistanceM != nil && *sm.DistanceM >= endD
      })
      distOffset = endD
      if end < len(samples) {
        timeOffset = samples[end].ElapsedS
      } else if len(samples) > 0 {
        timeOffset = samples[len(samples)-1].ElapsedS
      }
    default:
      // A step with neither duration nor distance consumes nothing.
      start, end = cursor, cursor
    }
    if end < start {
      end = start
    }
    cursor = end

    planned := types.PlannedTarget{
      StepKind:    step.Kind,
      SegmentHint: step.SegmentType,
      DurationS:   step.DurationS,
      DistanceM:   step.DistanceM,
      TargetLow:   step.TargetLow,
      TargetHigh:  step.TargetHigh,
      TargetKind:  step.TargetKind,
    }

    interval := types.Interval{
      Planned:     planned,
      SampleStart: start,
      SampleEnd:   end,
    }
    if step.ID != uuid.Nil {
      id := step.ID
      interval.PlannedStepID = &id
    }
    if ex := executedFromSlice(samples, start, end); ex != nil {
      ex.AdherencePercentage = adherencePct(planned, ex)
      interval.Executed = ex
    }
    intervals = append(intervals, interval)
  }

  return intervals
}

func executedFromSlice(samples []types.Sample, start, end int) *types.Executed {
  if start >= end || start < 0 || end > len(samples) {
    return nil
  }
  slice := samples[start:end]

  var duration float64
  if end < len(samples) {
    duration = samples[end].ElapsedS - slice[0].ElapsedS
  } else {
    duration = slice[len(slice)-1].ElapsedS - slice[0].ElapsedS
  }

  ex := &types.Executed{DurationS: duration}
  ex.AvgPace = meanOf(slice, func(sm types.Sample) *float64 { return sm.Pace })
  ex.AvgPower = meanOf(slice, func(sm types.Sample) *float64 { return sm.Power })
  ex.AvgHeartRate = meanOf(slice, func(sm types.Sample) *float64 { return sm.HeartRate })
  return ex
}

// adherencePct compares the executed average against the midpoint of the
// planned range. Pace targets are time-per-distance, so the ratio inverts:
// running slower than target (higher seconds) must read below 100%.
func adherencePct(planned types.PlannedTarget, ex *types.Executed) *float64 {
  mid := (planned.TargetLow + planned.TargetHigh) / 2
  if mid <= 0 || ex == nil {
    return nil
  }
  switch planned.TargetKind {
  case types.TargetKindPace:
    if ex.AvgPace == nil || *ex.AvgPace <= 0 {
      return nil
    }
    v := mid / *ex.AvgPace * 100
    return &v
  case types.TargetKindPower:
    if ex.AvgPower == nil {
      return nil
    }
    v := *ex.AvgPower / mid * 100
    return &v
  }
  return nil
}

func firstIndexFrom(samples []types.Sample, from int, match func(types.Sample) bool) int {
  if from < 0 {
    from = 0
  }
  for i := from; i < len(samples); i++ {
    if match(samples[i]) {
      return i
    }
  }
  return len(samples)
}

func lastDistanceIn(samples []types.Sample, start, end int) *float64 {
  for i := end - 1; i >= start && i < len(samples); i-- {
    if i >= 0 && samples[i].DistanceM != nil {
      return samples[i].DistanceM
    }
  }
  return nil
}

func meanOf(samples []types.Sample, pick func(types.Sample) *float64) *float64 {
  var sum float64
  var n int
  for _, sm := range samples {
    if v := pick(sm); v != nil {
      sum += *v
      n++
    }
  }
  if n == 0 {
    return nil
  }
  mean := sum / float64(n)
  return &mean
}
