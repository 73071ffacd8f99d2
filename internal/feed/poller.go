// Package feed pulls learner snapshots from an upstream capture service
// and hands them to the engine.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/engine"
	"github.com/abhisek/attune/internal/fusion"
)

// maxBody caps a single snapshot payload.
const maxBody = 1 << 20

// Config points the poller at the capture service. An empty URL
// disables polling.
type Config struct {
	URL      string        `yaml:"url" json:"url"`
	Interval time.Duration `yaml:"interval" json:"interval"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

func DefaultConfig() Config {
	return Config{Interval: 8 * time.Second, Timeout: 5 * time.Second}
}

func (c Config) Enabled() bool { return c.URL != "" }

func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("feed interval must be positive, got %s", c.Interval))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("feed timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// Submitter accepts snapshots. *engine.Engine satisfies it.
type Submitter interface {
	Submit(ctx context.Context, snap fusion.Snapshot) (*engine.Outcome, error)
}

// Poller fetches the latest snapshot on a fixed interval.
type Poller struct {
	cfg    Config
	client *http.Client
	sink   Submitter
	log    *zap.Logger
}

func NewPoller(cfg Config, sink Submitter, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sink:   sink,
		log:    log.Named("feed"),
	}
}

// Run polls until ctx is done. Fetch failures are logged and the next
// tick retries.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("polling snapshot feed", zap.String("url", p.cfg.URL), zap.Duration("interval", p.cfg.Interval))
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil {
				if errors.Is(err, engine.ErrStopped) || ctx.Err() != nil {
					return nil
				}
				p.log.Warn("poll snapshot feed", zap.Error(err))
			}
		}
	}
}

// Poll fetches once. It returns a nil outcome when there was nothing
// to process.
func (p *Poller) Poll(ctx context.Context) (*engine.Outcome, error) {
	snap, ok, err := p.fetch(ctx)
	if err != nil || !ok {
		return nil, err
	}
	out, err := p.sink.Submit(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("submit snapshot: %w", err)
	}
	p.log.Debug("snapshot processed",
		zap.String("user_id", out.UserID),
		zap.String("topic", out.Topic),
		zap.String("reason", string(out.Decision.Reason)))
	return out, nil
}

func (p *Poller) fetch(ctx context.Context) (fusion.Snapshot, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return fusion.Snapshot{}, false, fmt.Errorf("build feed request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fusion.Snapshot{}, false, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return fusion.Snapshot{}, false, nil
	case resp.StatusCode != http.StatusOK:
		return fusion.Snapshot{}, false, fmt.Errorf("fetch feed: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fusion.Snapshot{}, false, fmt.Errorf("read feed body: %w", err)
	}
	return Decode(body)
}

// Decode parses a snapshot payload. Empty bodies, empty objects and
// snapshots carrying neither a topic nor screen content decode as
// nothing to process.
func Decode(body []byte) (fusion.Snapshot, bool, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("{}")) || bytes.Equal(body, []byte("null")) {
		return fusion.Snapshot{}, false, nil
	}
	snap := fusion.NewSnapshot()
	if err := json.Unmarshal(body, &snap); err != nil {
		return fusion.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	if strings.TrimSpace(snap.Topic) == "" && strings.TrimSpace(snap.ScreenContent) == "" {
		return fusion.Snapshot{}, false, nil
	}
	return snap, true, nil
}
