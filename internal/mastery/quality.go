package mastery

import "math"

// Tier grades how much evidence stands behind a mastery estimate.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
	TierNoData Tier = "no_data"
)

// Quality summarizes the observations behind one concept's estimate.
type Quality struct {
	Total         int            `json:"total_observations"`
	AvgConfidence float64        `json:"avg_confidence"`
	Sources       map[string]int `json:"sources"`
	Tier          Tier           `json:"quality"`
}

func qualityOf(obs []Observation) Quality {
	q := Quality{Total: len(obs), Sources: map[string]int{}, Tier: TierNoData}
	if q.Total == 0 {
		return q
	}
	var sum float64
	for _, o := range obs {
		sum += o.Confidence
		q.Sources[o.Source]++
	}
	avg := sum / float64(q.Total)
	q.AvgConfidence = math.Round(avg*1000) / 1000
	switch {
	case q.Total >= 5 && avg >= 0.7:
		q.Tier = TierHigh
	case q.Total >= 3 && avg >= 0.4:
		q.Tier = TierMedium
	default:
		q.Tier = TierLow
	}
	return q
}
