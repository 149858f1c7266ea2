package models

// MetricStats holds running statistics for one metric.
type MetricStats struct {
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// Summary is derived on demand from a readings snapshot, never stored.
type Summary struct {
	HeartRate     *MetricStats `json:"heart_rate,omitempty"`
	BreathingRate *MetricStats `json:"breathing_rate,omitempty"`
	ReadingsCount int          `json:"readings_count"`
	AllReadings   []Reading    `json:"all_readings"`
}

// HasSignal reports whether any metric contributed at least one value
func (s *Summary) HasSignal() bool {
	return s != nil && (s.HeartRate != nil || s.BreathingRate != nil)
}

type accumulator struct {
	sum, min, max float64
	count         int
}

func (a *accumulator) add(v float64) {
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.count++
}

func (a *accumulator) stats() *MetricStats {
	if a.count == 0 {
		return nil
	}
	avg := a.sum / float64(a.count)
	// clamp against float drift so min <= avg <= max always holds
	if avg < a.min {
		avg = a.min
	}
	if avg > a.max {
		avg = a.max
	}
	return &MetricStats{Avg: avg, Min: a.min, Max: a.max, Count: a.count}
}

// Summarize computes per-metric statistics in a single pass over readings.
// Returns nil for an empty snapshot; a metric with no values is left nil.
func Summarize(readings []Reading) *Summary {
	if len(readings) == 0 {
		return nil
	}

	var heart, breathing accumulator
	for _, r := range readings {
		if r.HeartRateBPM != nil {
			heart.add(*r.HeartRateBPM)
		}
		if r.BreathingRateBPM != nil {
			breathing.add(*r.BreathingRateBPM)
		}
	}

	return &Summary{
		HeartRate:     heart.stats(),
		BreathingRate: breathing.stats(),
		ReadingsCount: len(readings),
		AllReadings:   readings,
	}
}
