package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the timing thresholds of the decision chain.
type Config struct {
	// Cooldown is the minimum gap between two interventions.
	Cooldown time.Duration `yaml:"cooldown" json:"cooldown"`

	// NaturalPauseMin is how long the learner must have been on a topic
	// before a natural pause is used.
	NaturalPauseMin time.Duration `yaml:"natural_pause_min" json:"natural_pause_min"`

	StuckAfter time.Duration `yaml:"stuck_after" json:"stuck_after"`
	StuckCount int           `yaml:"stuck_count" json:"stuck_count"`

	// Fallback fires after this long on one topic with no other trigger.
	Fallback time.Duration `yaml:"fallback" json:"fallback"`

	BufferSize  int `yaml:"buffer_size" json:"buffer_size"`
	RecentCount int `yaml:"recent_count" json:"recent_count"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		Cooldown:        30 * time.Second,
		NaturalPauseMin: 15 * time.Second,
		StuckAfter:      45 * time.Second,
		StuckCount:      3,
		Fallback:        180 * time.Second,
		BufferSize:      20,
		RecentCount:     5,
	}
}

func (c Config) Validate() error {
	var errs []error
	for name, d := range map[string]time.Duration{
		"cooldown":          c.Cooldown,
		"natural_pause_min": c.NaturalPauseMin,
		"stuck_after":       c.StuckAfter,
		"fallback":          c.Fallback,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("scheduler %s must not be negative, got %s", name, d))
		}
	}
	if c.StuckCount < 1 {
		errs = append(errs, fmt.Errorf("scheduler stuck_count must be at least 1, got %d", c.StuckCount))
	}
	if c.BufferSize < 1 {
		errs = append(errs, fmt.Errorf("scheduler buffer_size must be at least 1, got %d", c.BufferSize))
	}
	if c.RecentCount < 0 || c.RecentCount > c.BufferSize {
		errs = append(errs, fmt.Errorf("scheduler recent_count must be in [0,buffer_size], got %d", c.RecentCount))
	}
	if c.Fallback > 0 && c.Fallback < c.StuckAfter {
		errs = append(errs, errors.New("scheduler fallback must not be shorter than stuck_after"))
	}
	return errors.Join(errs...)
}
