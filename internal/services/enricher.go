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

// seriesMaxPoints bounds the charting arrays; the UI renders at most this
// many points per channel.
const seriesMaxPoints = 600

// AnalysisEnricherService is the analysis stage: it re-slices each interval
// by the stored sample-index bounds (never re-deriving the ranges) and adds
// granular in-zone metrics, plus whole-activity downsampled series for
// charting. It writes only intervals[*].granular_metrics and the analysis
// key; everything else on the document is read under the row lock and
// carried through untouched.
type AnalysisEnricherService interface {
  StageProcessor
}

type analysisEnricherService struct {
  runner *stageRunner
  log    *logger.Logger
}

func NewAnalysisEnricherService(db *gorm.DB, baseLog *logger.Logger, activityRepo repos.ActivityRepo, locks repos.AdvisoryLockRepo, notifier StageNotifier) AnalysisEnricherService {
  log := baseLog.With("service", "AnalysisEnricherService")
  return &analysisEnricherService{
    runner: newStageRunner(db, log, activityRepo, locks, notifier),
    log:    log,
  }
}

func (s *analysisEnricherService) StageName() string { return types.StageAnalysis }

func (s *analysisEnricherService) Process(ctx context.Context, activityID uuid.UUID) (bool, error) {
  return s.runner.run(ctx, types.StageAnalysis, activityID, s.compute)
}

func (s *analysisEnricherService) compute(_ context.Context, _ *gorm.DB, activity *types.Activity, current map[string]any) (map[string]any, error) {
  samples, err := types.DecodeSamples(activity.Samples)
  if err != nil {
    return nil, err
  }
  if len(samples) == 0 {
    return nil, fmt.Errorf("activity has no samples")
  }

  intervals, err := types.IntervalsFromDocument(current)
  if err != nil {
    return nil, err
  }
  for i := range intervals {
    intervals[i].GranularMetrics = EnrichInterval(intervals[i], samples)
  }

  analysis := types.Analysis{Series: BuildSeries(samples, seriesMaxPoints)}

  partial := map[string]any{}
  if intervals != nil {
    encoded, err := types.JSONValue(intervals)
    if err != nil {
      return nil, fmt.Errorf("encode intervals: %w", err)
    }
    partial[types.DocKeyIntervals] = encoded
  }
  encodedAnalysis, err := types.JSONValue(analysis)
  if err != nil {
    return nil, fmt.Errorf("encode analysis: %w", err)
  }
  partial[types.DocKeyAnalysis] = encodedAnalysis

  s.log.Info("Enriched activity analysis", "activity_id", activity.ID, "intervals", len(intervals), "samples", len(samples))
  return partial, nil
}

// EnrichInterval computes the granular in-zone metrics for one interval from
// its stored sample bounds. An interval whose slice holds no samples keeps a
// nil metrics value.
func EnrichInterval(interval types.Interval, samples []types.Sample) *types.GranularMetrics {
  start, end := interval.SampleStart, interval.SampleEnd
  if start < 0 || end > len(samples) || start >= end {
    return nil
  }
  slice := samples[start:end]

  gm := &types.GranularMetrics{}
  gm.TimeInTargetPct = timeInTargetPct(slice, interval.Planned)
  gm.PaceVariationPct = paceVariationPct(slice)
  gm.HRDriftBPM = hrDriftBPM(slice)
  if gm.TimeInTargetPct == nil && gm.PaceVariationPct == nil && gm.HRDriftBPM == nil {
    return nil
  }
  return gm
}

// timeInTargetPct is the fraction of samples whose instantaneous pace or
// power (per the planned target kind) falls inside [target_low, target_high].
func timeInTargetPct(slice []types.Sample, planned types.PlannedTarget) *float64 {
  pick := func(sm types.Sample) *float64 { return sm.Pace }
  if planned.TargetKind == types.TargetKindPower {
    pick = func(sm types.Sample) *float64 { return sm.Power }
  }
  if planned.TargetHigh <= 0 {
    return nil
  }

  var present, inZone int
  for _, sm := range slice {
    v := pick(sm)
    if v == nil {
      continue
    }
    present++
    if *v >= planned.TargetLow && *v <= planned.TargetHigh {
      inZone++
    }
  }
  if present == 0 {
    return nil
  }
  pct := float64(inZone) / float64(present) * 100
  return &pct
}

// paceVariationPct is the coefficient of variation of pace within the slice,
// as a percentage.
func paceVariationPct(slice []types.Sample) *float64 {
  var paces []float64
  for _, sm := range slice {
    if sm.Pace != nil {
      paces = append(paces, *sm.Pace)
    }
  }
  if len(paces) < 2 {
    return nil
  }
  var sum float64
  for _, p := range paces {
    sum += p
  }
  mean := sum / float64(len(paces))
  if mean == 0 {
    return nil
  }
  var sq float64
  for _, p := range paces {
    sq += (p - mean) * (p - mean)
  }
  cv := math.Sqrt(sq/float64(len(paces))) / mean * 100
  return &cv
}

// hrDriftBPM is the mean heart rate of the slice's second half minus its
// first half; positive drift usually means rising cardiovascular cost at
// constant output.
func hrDriftBPM(slice []types.Sample) *float64 {
  if len(slice) < 2 {
    return nil
  }
  mid := len(slice) / 2
  first := meanOf(slice[:mid], func(sm types.Sample) *float64 { return sm.HeartRate })
  second := meanOf(slice[mid:], func(sm types.Sample) *float64 { return sm.HeartRate })
  if first == nil || second == nil {
    return nil
  }
  drift := *second - *first
  return &drift
}

// BuildSeries produces the time-aligned charting arrays, stride-downsampled
// to at most maxPoints entries. Channels absent from the whole stream are
// omitted; gaps within a present channel carry the last seen value forward.
func BuildSeries(samples []types.Sample, maxPoints int) *types.Series {
  if len(samples) == 0 {
    return nil
  }
  if maxPoints <= 0 {
    maxPoints = seriesMaxPoints
  }
  stride := (len(samples) + maxPoints - 1) / maxPoints
  if stride < 1 {
    stride = 1
  }

  hasPace, hasHR, hasElev := false, false, false
  for _, sm := range samples {
    hasPace = hasPace || sm.Pace != nil
    hasHR = hasHR || sm.HeartRate != nil
    hasElev = hasElev || sm.Elevation != nil
  }

  series := &types.Series{}
  var lastPace, lastHR, lastElev float64
  for i := 0; i < len(samples); i += stride {
    sm := samples[i]
    series.ElapsedS = append(series.ElapsedS, sm.ElapsedS)
    if hasPace {
      if sm.Pace != nil {
        lastPace = *sm.Pace
      }
      series.Pace = append(series.Pace, lastPace)
    }
    if hasHR {
      if sm.HeartRate != nil {
        lastHR = *sm.HeartRate
      }
      series.HeartRate = append(series.HeartRate, lastHR)
    }
    if hasElev {
      if sm.Elevation != nil {
        lastElev = *sm.Elevation
      }
      series.Elevation = append(series.Elevation, lastElev)
    }
  }
  return series
}
