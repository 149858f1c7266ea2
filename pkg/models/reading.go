package models

// SourcePresageSDK marks readings emitted by the SmartSpectra sensing engine.
const SourcePresageSDK = "presage_sdk"

// Reading is one timestamped physiological measurement emitted by the sensing engine.
// A nil rate means the engine could not compute that metric for this instant.
type Reading struct {
	TimestampMs      int64    `json:"timestamp_ms"`
	HeartRateBPM     *float64 `json:"heart_rate_bpm,omitempty"`
	BreathingRateBPM *float64 `json:"breathing_rate_bpm,omitempty"`
	Source           string   `json:"source,omitempty"`
}

// NewReading builds a Reading from optional rates
func NewReading(timestampMs int64, heartRate, breathingRate *float64) Reading {
	r := Reading{TimestampMs: timestampMs, Source: SourcePresageSDK}
	if heartRate != nil {
		v := *heartRate
		r.HeartRateBPM = &v
	}
	if breathingRate != nil {
		v := *breathingRate
		r.BreathingRateBPM = &v
	}
	return r
}

// Rate returns a pointer to v, for building readings inline
func Rate(v float64) *float64 {
	return &v
}

// HasSignal reports whether at least one metric is present
func (r Reading) HasSignal() bool {
	return r.HeartRateBPM != nil || r.BreathingRateBPM != nil
}
