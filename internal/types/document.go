package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Top-level keys of the per-activity document. Each computation stage owns a
// fixed set of keys and must preserve everything else on merge.
const (
	DocKeyIntervals = "intervals"
	DocKeyOverall   = "overall"
	DocKeyAnalysis  = "analysis"
)

// Segment classifications assigned by the score engine.
const (
	SegmentWarmup         = "warmup"
	SegmentCooldown       = "cooldown"
	SegmentWorkInterval   = "work_interval"
	SegmentTempo          = "tempo"
	SegmentCruiseInterval = "cruise_interval"
	SegmentRecoveryJog    = "recovery_jog"
	SegmentEasyRun        = "easy_run"
)

// Interval is the executed-data counterpart of one plan step. The slicer
// creates the entry; the enricher and score engine later update the same
// entry in place (GranularMetrics, SegmentType, Score).
type Interval struct {
	PlannedStepID   *uuid.UUID       `json:"planned_step_id,omitempty"`
	SegmentType     string           `json:"segment_type,omitempty"`
	Planned         PlannedTarget    `json:"planned"`
	Executed        *Executed        `json:"executed,omitempty"`
	GranularMetrics *GranularMetrics `json:"granular_metrics,omitempty"`
	Score           *IntervalScore   `json:"score,omitempty"`
	SampleStart     int              `json:"sample_start"`
	SampleEnd       int              `json:"sample_end"`
}

type PlannedTarget struct {
	StepKind    string   `json:"step_kind"`
	SegmentHint string   `json:"segment_hint,omitempty"`
	DurationS   *float64 `json:"duration_s,omitempty"`
	DistanceM   *float64 `json:"distance_m,omitempty"`
	TargetLow   float64  `json:"target_low"`
	TargetHigh  float64  `json:"target_high"`
	TargetKind  string   `json:"target_kind"`
}

// Executed is nil for a slice with zero samples; a missing value must never
// be coerced to a numeric default.
type Executed struct {
	DurationS           float64  `json:"duration_s"`
	AvgPace             *float64 `json:"avg_pace,omitempty"`
	AvgPower            *float64 `json:"avg_power,omitempty"`
	AvgHeartRate        *float64 `json:"avg_heart_rate,omitempty"`
	AdherencePercentage *float64 `json:"adherence_percentage,omitempty"`
}

type GranularMetrics struct {
	TimeInTargetPct  *float64 `json:"time_in_target_pct,omitempty"`
	PaceVariationPct *float64 `json:"pace_variation_pct,omitempty"`
	HRDriftBPM       *float64 `json:"hr_drift_bpm,omitempty"`
}

type IntervalScore struct {
	BasePenalty        float64 `json:"base_penalty"`
	DirectionalPenalty float64 `json:"directional_penalty"`
	Penalty            float64 `json:"penalty"`
}

type Overall struct {
	ExecutionScore       int      `json:"execution_score"`
	TotalPenalty         float64  `json:"total_penalty"`
	DurationAdherencePct *float64 `json:"duration_adherence_pct,omitempty"`
	PlannedDurationS     float64  `json:"planned_duration_s"`
	ActualDurationS      float64  `json:"actual_duration_s"`
	IntervalsTotal       int      `json:"intervals_total"`
	IntervalsScored      int      `json:"intervals_scored"`
}

type Analysis struct {
	Series *Series `json:"series,omitempty"`
}

// Series holds time-aligned arrays downsampled for charting. All slices have
// equal length; missing channel values are NaN-free zeros only when the
// source sample carried the channel, otherwise the channel slice is nil.
type Series struct {
	ElapsedS  []float64 `json:"elapsed_s"`
	Pace      []float64 `json:"pace,omitempty"`
	HeartRate []float64 `json:"heart_rate,omitempty"`
	Elevation []float64 `json:"elevation,omitempty"`
}

// IntervalsFromDocument decodes the intervals key of a raw document value.
// Absent or null intervals decode to nil.
func IntervalsFromDocument(doc map[string]any) ([]Interval, error) {
	if doc == nil {
		return nil, nil
	}
	raw, ok := doc[DocKeyIntervals]
	if !ok || raw == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode intervals: %w", err)
	}
	var intervals []Interval
	if err := json.Unmarshal(encoded, &intervals); err != nil {
		return nil, fmt.Errorf("decode intervals: %w", err)
	}
	return intervals, nil
}

// JSONValue round-trips a typed value through encoding/json so it can be
// placed into the raw document map without leaking struct types into storage.
func JSONValue(v any) (any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}
