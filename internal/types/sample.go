package types

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Sample is one point of the normalized sample stream produced by the webhook
// ingestion layer. ElapsedS is seconds since activity start; DistanceM is
// cumulative. Pace is seconds per kilometer.
type Sample struct {
	ElapsedS  float64  `json:"elapsed_s"`
	Pace      *float64 `json:"pace,omitempty"`
	Power     *float64 `json:"power,omitempty"`
	HeartRate *float64 `json:"heart_rate,omitempty"`
	Elevation *float64 `json:"elevation,omitempty"`
	DistanceM *float64 `json:"distance_m,omitempty"`
}

func DecodeSamples(raw datatypes.JSON) ([]Sample, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var samples []Sample
	if err := json.Unmarshal(raw, &samples); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	return samples, nil
}

func EncodeSamples(samples []Sample) (datatypes.JSON, error) {
	if samples == nil {
		samples = []Sample{}
	}
	raw, err := json.Marshal(samples)
	if err != nil {
		return nil, fmt.Errorf("encode samples: %w", err)
	}
	return datatypes.JSON(raw), nil
}
