package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/attune/internal/fusion"
)

// scenario is a scripted learner session replayed by "attune simulate".
type scenario struct {
	UserID string
	Start  time.Time
	Steps  []step
}

// step is one scripted event. Exactly one of Snapshot, Reply or Close is
// set. At is the offset from the scenario start.
type step struct {
	At       time.Duration
	Snapshot *fusion.Snapshot
	Reply    string
	Close    bool
}

type scenarioFile struct {
	UserID string     `yaml:"user_id"`
	Start  time.Time  `yaml:"start"`
	Steps  []stepFile `yaml:"steps"`
}

type stepFile struct {
	At       time.Duration `yaml:"at"`
	Snapshot yaml.Node     `yaml:"snapshot"`
	Reply    string        `yaml:"reply"`
	Close    bool          `yaml:"close"`
}

func (s step) kind() string {
	switch {
	case s.Snapshot != nil:
		return "snapshot"
	case s.Reply != "":
		return "reply"
	default:
		return "close"
	}
}

func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return parseScenario(data)
}

func parseScenario(data []byte) (*scenario, error) {
	var f scenarioFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	sc := &scenario{UserID: f.UserID, Start: f.Start}
	if sc.UserID == "" {
		sc.UserID = "learner"
	}
	if sc.Start.IsZero() {
		sc.Start = time.Now().UTC().Truncate(time.Second)
	}
	if len(f.Steps) == 0 {
		return nil, errors.New("scenario has no steps")
	}

	var last time.Duration
	for i, raw := range f.Steps {
		hasSnap := !raw.Snapshot.IsZero()
		set := 0
		for _, ok := range []bool{hasSnap, strings.TrimSpace(raw.Reply) != "", raw.Close} {
			if ok {
				set++
			}
		}
		if set != 1 {
			return nil, fmt.Errorf("step %d: exactly one of snapshot, reply or close is required", i+1)
		}
		if raw.At < last {
			return nil, fmt.Errorf("step %d: at %s is before the previous step", i+1, raw.At)
		}
		last = raw.At

		st := step{At: raw.At, Reply: raw.Reply, Close: raw.Close}
		if hasSnap {
			// Decoded over the neutral baseline so omitted behavioral
			// fields keep their defaults.
			snap := fusion.NewSnapshot()
			if err := raw.Snapshot.Decode(&snap); err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			if snap.UserID == "" {
				snap.UserID = sc.UserID
			}
			snap.Timestamp = sc.Start.Add(raw.At)
			st.Snapshot = &snap
		}
		sc.Steps = append(sc.Steps, st)
	}
	return sc, nil
}
