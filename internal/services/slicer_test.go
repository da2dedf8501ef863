package services

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/stridelab/adherence-backend/internal/types"
)

func fptr(v float64) *float64 { return &v }

func pacedSamples(n int, stepS float64, pace float64) []types.Sample {
	samples := make([]types.Sample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, types.Sample{
			ElapsedS: float64(i) * stepS,
			Pace:     fptr(pace),
		})
	}
	return samples
}

func durationStep(kind string, durationS, low, high float64) *types.PlanStep {
	return &types.PlanStep{
		ID:         uuid.New(),
		Kind:       kind,
		DurationS:  fptr(durationS),
		TargetLow:  low,
		TargetHigh: high,
		TargetKind: types.TargetKindPace,
	}
}

func TestSliceIntervals_DurationStepsPartitionByElapsedTime(t *testing.T) {
	steps := []*types.PlanStep{
		durationStep(types.StepKindWarmup, 60, 520, 560),
		durationStep(types.StepKindWork, 120, 520, 560),
	}
	samples := pacedSamples(31, 10, 540) // 0..300s

	intervals := SliceIntervals(steps, samples)
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
	if intervals[0].SampleStart != 0 || intervals[0].SampleEnd != 6 {
		t.Fatalf("warmup slice bounds: got [%d,%d) want [0,6)", intervals[0].SampleStart, intervals[0].SampleEnd)
	}
	if intervals[1].SampleStart != 6 || intervals[1].SampleEnd != 18 {
		t.Fatalf("work slice bounds: got [%d,%d) want [6,18)", intervals[1].SampleStart, intervals[1].SampleEnd)
	}
	if intervals[0].Executed == nil || intervals[0].Executed.DurationS != 60 {
		t.Fatalf("warmup executed duration: got %+v want 60s", intervals[0].Executed)
	}
	if intervals[1].Executed == nil || intervals[1].Executed.DurationS != 120 {
		t.Fatalf("work executed duration: got %+v want 120s", intervals[1].Executed)
	}
}

func TestSliceIntervals_DistanceStepBracketsCumulativeDistance(t *testing.T) {
	step := &types.PlanStep{
		ID:         uuid.New(),
		Kind:       types.StepKindWork,
		DistanceM:  fptr(1000),
		TargetLow:  520,
		TargetHigh: 560,
		TargetKind: types.TargetKindPace,
	}
	samples := make([]types.Sample, 30)
	for i := range samples {
		samples[i] = types.Sample{
			ElapsedS:  float64(i) * 10,
			Pace:      fptr(540),
			DistanceM: fptr(float64(i) * 50), // 5 m/s
		}
	}

	intervals := SliceIntervals([]*types.PlanStep{step}, samples)
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
	if intervals[0].SampleStart != 0 || intervals[0].SampleEnd != 20 {
		t.Fatalf("slice bounds: got [%d,%d) want [0,20)", intervals[0].SampleStart, intervals[0].SampleEnd)
	}
}

func TestSliceIntervals_SlowPaceReadsBelowHundred(t *testing.T) {
	// Planned 9:00/km (540 s/km), executed 12:00/km (720 s/km): the runner
	// went slower, so adherence must land around 75%, never 133%.
	step := durationStep(types.StepKindWork, 120, 520, 560)
	samples := pacedSamples(25, 10, 720)

	intervals := SliceIntervals([]*types.PlanStep{step}, samples)
	if intervals[0].Executed == nil || intervals[0].Executed.AdherencePercentage == nil {
		t.Fatalf("expected adherence percentage, got %+v", intervals[0].Executed)
	}
	got := *intervals[0].Executed.AdherencePercentage
	if math.Abs(got-75) > 0.01 {
		t.Fatalf("pace adherence: got %.2f want 75", got)
	}
}

func TestSliceIntervals_PowerAdherenceIsDirectRatio(t *testing.T) {
	step := &types.PlanStep{
		ID:         uuid.New(),
		Kind:       types.StepKindWork,
		DurationS:  fptr(120),
		TargetLow:  180,
		TargetHigh: 220,
		TargetKind: types.TargetKindPower,
	}
	samples := make([]types.Sample, 25)
	for i := range samples {
		samples[i] = types.Sample{ElapsedS: float64(i) * 10, Power: fptr(210)}
	}

	intervals := SliceIntervals([]*types.PlanStep{step}, samples)
	if intervals[0].Executed == nil || intervals[0].Executed.AdherencePercentage == nil {
		t.Fatalf("expected adherence percentage, got %+v", intervals[0].Executed)
	}
	got := *intervals[0].Executed.AdherencePercentage
	if math.Abs(got-105) > 0.01 {
		t.Fatalf("power adherence: got %.2f want 105", got)
	}
}

func TestSliceIntervals_StepBeyondSamplesHasNoExecuted(t *testing.T) {
	steps := []*types.PlanStep{
		durationStep(types.StepKindWork, 60, 520, 560),
		durationStep(types.StepKindCooldown, 60, 600, 660),
	}
	samples := pacedSamples(4, 10, 540) // recording stops at 30s

	intervals := SliceIntervals(steps, samples)
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
	if intervals[1].Executed != nil {
		t.Fatalf("expected nil executed for uncovered step, got %+v", intervals[1].Executed)
	}
	if intervals[1].Executed != nil && intervals[1].Executed.AdherencePercentage != nil {
		t.Fatalf("uncovered step must not have an adherence percentage")
	}
}

func TestSliceIntervals_MissingPaceChannelYieldsNilAdherence(t *testing.T) {
	step := durationStep(types.StepKindWork, 60, 520, 560)
	samples := make([]types.Sample, 10)
	for i := range samples {
		samples[i] = types.Sample{ElapsedS: float64(i) * 10, HeartRate: fptr(150)}
	}

	intervals := SliceIntervals([]*types.PlanStep{step}, samples)
	if intervals[0].Executed == nil {
		t.Fatalf("expected executed block (duration is known)")
	}
	if intervals[0].Executed.AdherencePercentage != nil {
		t.Fatalf("expected nil adherence without pace data, got %.2f", *intervals[0].Executed.AdherencePercentage)
	}
}
