package mastery

// Band is a coarse mastery bucket used to calibrate prompt difficulty.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// ResolveBand maps a mastery probability to its calibration band:
// below 0.3 is low, below 0.7 is medium, anything else is high.
func ResolveBand(pKnow float64) Band {
	switch {
	case pKnow < 0.3:
		return BandLow
	case pKnow < 0.7:
		return BandMedium
	default:
		return BandHigh
	}
}

// Guidance returns the question style suited to the band.
func (b Band) Guidance() string {
	switch b {
	case BandLow:
		return `"what is" / definition / basic recall`
	case BandMedium:
		return `"why does" / "how does this relate to" / reasoning`
	default:
		return `"what would happen if" / "can you explain why NOT" / edge cases`
	}
}

// Percent renders a probability as a whole percentage.
func Percent(p float64) int {
	return int(p*100 + 0.5)
}
