package mastery

import "math"

const (
	minPKnow = 0.001
	maxPKnow = 0.999

	adaptiveWindow   = 3
	learnBoost       = 1.2
	learnDamp        = 0.8
	maxLearn         = 0.4
	minLearn         = 0.05
	streakConfidence = 0.5
)

// posterior is the unweighted BKT posterior P(know | outcome). A zero
// denominator leaves the prior unchanged.
func posterior(pKnow float64, correct bool, pGuess, pSlip float64) float64 {
	var num, den float64
	if correct {
		num = (1 - pSlip) * pKnow
		den = num + pGuess*(1-pKnow)
	} else {
		num = pSlip * pKnow
		den = num + (1-pGuess)*(1-pKnow)
	}
	if den <= 0 {
		return pKnow
	}
	return num / den
}

// step applies one confidence-weighted BKT update and returns the new
// mastery probability, clamped to [0.001, 0.999].
func step(pKnow float64, correct bool, confidence, pLearn, pGuess, pSlip float64) float64 {
	raw := posterior(pKnow, correct, pGuess, pSlip)
	weighted := pKnow + confidence*(raw-pKnow)
	next := weighted + (1-weighted)*pLearn
	return clampRange(next, minPKnow, maxPKnow)
}

// adaptLearn adjusts the learn rate from the most recent observations.
func adaptLearn(pLearn float64, obs []Observation) float64 {
	if len(obs) < adaptiveWindow {
		return pLearn
	}
	recent := obs[len(obs)-adaptiveWindow:]
	allCorrect, allIncorrect := true, true
	var conf float64
	for _, o := range recent {
		if o.Correct {
			allIncorrect = false
		} else {
			allCorrect = false
		}
		conf += o.Confidence
	}
	avg := conf / float64(len(recent))
	switch {
	case allCorrect && avg > streakConfidence:
		return math.Min(maxLearn, pLearn*learnBoost)
	case allIncorrect:
		return math.Max(minLearn, pLearn*learnDamp)
	default:
		return pLearn
	}
}

// clampConfidence maps any confidence into [0,1]; NaN counts as no evidence.
func clampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return clampRange(c, 0, 1)
}

func clampRange(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
