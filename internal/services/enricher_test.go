package services

import (
	"math"
	"testing"

	"github.com/stridelab/adherence-backend/internal/types"
)

func TestEnrichInterval_TimeInTargetFraction(t *testing.T) {
	samples := make([]types.Sample, 10)
	for i := range samples {
		pace := 540.0
		if i >= 7 {
			pace = 700 // drifts out of zone for the last 3 samples
		}
		samples[i] = types.Sample{ElapsedS: float64(i) * 10, Pace: fptr(pace)}
	}
	iv := types.Interval{
		Planned:     types.PlannedTarget{TargetLow: 520, TargetHigh: 560, TargetKind: types.TargetKindPace},
		SampleStart: 0,
		SampleEnd:   10,
	}

	gm := EnrichInterval(iv, samples)
	if gm == nil || gm.TimeInTargetPct == nil {
		t.Fatalf("expected time-in-target metric, got %+v", gm)
	}
	if math.Abs(*gm.TimeInTargetPct-70) > 0.01 {
		t.Fatalf("time in target: got %.2f want 70", *gm.TimeInTargetPct)
	}
}

func TestEnrichInterval_HeartRateDrift(t *testing.T) {
	samples := make([]types.Sample, 10)
	for i := range samples {
		hr := 140.0
		if i >= 5 {
			hr = 150
		}
		samples[i] = types.Sample{ElapsedS: float64(i) * 10, HeartRate: fptr(hr)}
	}
	iv := types.Interval{SampleStart: 0, SampleEnd: 10}

	gm := EnrichInterval(iv, samples)
	if gm == nil || gm.HRDriftBPM == nil {
		t.Fatalf("expected hr drift metric, got %+v", gm)
	}
	if math.Abs(*gm.HRDriftBPM-10) > 0.01 {
		t.Fatalf("hr drift: got %.2f want +10", *gm.HRDriftBPM)
	}
}

func TestEnrichInterval_ConstantPaceHasZeroVariation(t *testing.T) {
	samples := pacedSamples(10, 10, 540)
	iv := types.Interval{
		Planned:     types.PlannedTarget{TargetLow: 520, TargetHigh: 560, TargetKind: types.TargetKindPace},
		SampleStart: 0,
		SampleEnd:   10,
	}

	gm := EnrichInterval(iv, samples)
	if gm == nil || gm.PaceVariationPct == nil {
		t.Fatalf("expected pace variation metric, got %+v", gm)
	}
	if *gm.PaceVariationPct != 0 {
		t.Fatalf("pace variation: got %.4f want 0", *gm.PaceVariationPct)
	}
}

func TestEnrichInterval_OutOfBoundsSliceIsNil(t *testing.T) {
	samples := pacedSamples(5, 10, 540)
	iv := types.Interval{SampleStart: 5, SampleEnd: 5}
	if gm := EnrichInterval(iv, samples); gm != nil {
		t.Fatalf("expected nil metrics for empty slice, got %+v", gm)
	}
	iv = types.Interval{SampleStart: 0, SampleEnd: 99}
	if gm := EnrichInterval(iv, samples); gm != nil {
		t.Fatalf("expected nil metrics for out-of-range slice, got %+v", gm)
	}
}

func TestBuildSeries_DownsamplesAndForwardFills(t *testing.T) {
	samples := make([]types.Sample, 10)
	for i := range samples {
		samples[i] = types.Sample{ElapsedS: float64(i), Pace: fptr(540 + float64(i)), HeartRate: fptr(150)}
	}
	samples[2].Pace = nil // gap carries the previous value forward

	series := BuildSeries(samples, 5)
	if series == nil {
		t.Fatalf("expected series")
	}
	if len(series.ElapsedS) != 5 {
		t.Fatalf("expected 5 points, got %d", len(series.ElapsedS))
	}
	if len(series.Pace) != 5 || len(series.HeartRate) != 5 {
		t.Fatalf("present channels must align with elapsed: pace %d hr %d", len(series.Pace), len(series.HeartRate))
	}
	if series.Pace[1] != 540 {
		t.Fatalf("expected forward-filled pace 540 at gap, got %.1f", series.Pace[1])
	}
	if series.Elevation != nil {
		t.Fatalf("absent channel must be omitted, got %v", series.Elevation)
	}
}

func TestBuildSeries_EmptyInput(t *testing.T) {
	if series := BuildSeries(nil, 5); series != nil {
		t.Fatalf("expected nil series for empty input, got %+v", series)
	}
}
