package mastery

import (
	"errors"
	"fmt"
	"time"
)

// Params are the BKT defaults applied to a concept on first reference.
type Params struct {
	Prior float64 `yaml:"prior" json:"prior"`
	Learn float64 `yaml:"learn" json:"learn"`
	Guess float64 `yaml:"guess" json:"guess"`
	Slip  float64 `yaml:"slip" json:"slip"`

	// MasteryThreshold is the probability at or above which a concept
	// counts as mastered.
	MasteryThreshold float64 `yaml:"mastery_threshold" json:"mastery_threshold"`

	// IdleTTL evicts concept records not touched for this long.
	// Zero keeps records for the process lifetime.
	IdleTTL time.Duration `yaml:"idle_ttl" json:"idle_ttl"`
}

// DefaultParams returns the standard BKT parameters.
func DefaultParams() Params {
	return Params{
		Prior:            0.3,
		Learn:            0.1,
		Guess:            0.25,
		Slip:             0.1,
		MasteryThreshold: 0.85,
		IdleTTL:          24 * time.Hour,
	}
}

// Validate checks that every probability is usable by the update math.
func (p Params) Validate() error {
	var errs []error
	check := func(name string, v, lo, hi float64) {
		if !(v > lo && v < hi) {
			errs = append(errs, fmt.Errorf("bkt %s must be in (%g,%g), got %v", name, lo, hi, v))
		}
	}
	check("prior", p.Prior, 0, 1)
	check("learn", p.Learn, 0, 1)
	check("guess", p.Guess, 0, 1)
	check("slip", p.Slip, 0, 1)
	check("mastery_threshold", p.MasteryThreshold, 0, 1)
	if p.Guess+p.Slip >= 1 {
		errs = append(errs, fmt.Errorf("bkt guess+slip must be below 1, got %v", p.Guess+p.Slip))
	}
	if p.IdleTTL < 0 {
		errs = append(errs, errors.New("bkt idle_ttl must not be negative"))
	}
	return errors.Join(errs...)
}
