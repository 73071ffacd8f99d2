package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/llm"
)

// TutorConfig holds the settings for tutor turns.
type TutorConfig struct {
	Limits      Limits        `yaml:"limits" json:"limits"`
	SessionTTL  time.Duration `yaml:"session_ttl" json:"session_ttl"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
}

func DefaultTutorConfig() TutorConfig {
	return TutorConfig{
		Limits:      DefaultLimits(),
		SessionTTL:  30 * time.Minute,
		MaxTokens:   300,
		Temperature: 0.7,
	}
}

// Tutor runs dialogue sessions: it opens them, answers learner replies
// and closes them with a report. Session bookkeeping is safe for
// concurrent use, but a single session should only be driven by one
// caller at a time.
type Tutor struct {
	provider llm.Provider
	analyzer Analyzer
	table    *Table
	cfg      TutorConfig
	log      *zap.Logger
	now      func() time.Time
}

// TutorOption customizes a Tutor.
type TutorOption func(*Tutor)

// WithClock sets the time source used by new sessions.
func WithClock(now func() time.Time) TutorOption {
	return func(t *Tutor) { t.now = now }
}

// WithAnalyzer replaces the LLM reply analyzer.
func WithAnalyzer(a Analyzer) TutorOption {
	return func(t *Tutor) { t.analyzer = a }
}

// WithTable shares an existing session table.
func WithTable(tbl *Table) TutorOption {
	return func(t *Tutor) { t.table = tbl }
}

// NewTutor creates a tutor generating turns with provider. log may be nil.
func NewTutor(provider llm.Provider, cfg TutorConfig, log *zap.Logger, opts ...TutorOption) *Tutor {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tutor{
		provider: provider,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	if t.analyzer == nil {
		t.analyzer = NewLLMAnalyzer(provider, DefaultAnalyzerConfig())
	}
	if t.table == nil {
		t.table = NewTable(cfg.SessionTTL)
	}
	return t
}

// Table exposes the live sessions for readers.
func (t *Tutor) Table() *Table { return t.table }

// SetLimits changes the limits applied to sessions started afterwards.
func (t *Tutor) SetLimits(l Limits) { t.cfg.Limits = l }

// StartRequest opens a session.
type StartRequest struct {
	// SessionID is generated when empty.
	SessionID  string
	UserID     string
	Concept    string
	Hypothesis string
	Trigger    Trigger
}

// Message is one tutor turn as delivered to the learner.
type Message struct {
	SessionID     string  `json:"session_id"`
	Content       string  `json:"content"`
	State         State   `json:"dialogue_state"`
	TurnNumber    int     `json:"turn_number"`
	Concept       string  `json:"concept"`
	Comprehension float64 `json:"comprehension,omitempty"`
	Closing       bool    `json:"should_close"`
	Fallback      bool    `json:"fallback,omitempty"`
}

// ReplyResult is the tutor's answer to a learner reply. Report is set
// when the reply closed the session.
type ReplyResult struct {
	Message  Message  `json:"message"`
	Analysis Analysis `json:"analysis"`
	Report   *Report  `json:"report,omitempty"`
}

// Start creates a session, generates the opening turn and moves the
// session to exploring.
func (t *Tutor) Start(ctx context.Context, req StartRequest) (*Message, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, errors.New("start dialogue: user id is required")
	}
	if strings.TrimSpace(req.Concept) == "" {
		return nil, errors.New("start dialogue: concept is required")
	}
	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	s := NewSession(id, req.UserID, req.Concept, req.Hypothesis, req.Trigger, t.cfg.Limits, t.now)
	if err := t.table.Put(s); err != nil {
		return nil, fmt.Errorf("start dialogue: %w", err)
	}

	text, fallback := t.generate(ctx, s, "")
	s.AddAgentTurn(text)
	state := s.Advance()

	t.log.Info("dialogue started",
		zap.String("session_id", id),
		zap.String("user_id", req.UserID),
		zap.String("concept", req.Concept))

	return &Message{
		SessionID:  id,
		Content:    text,
		State:      state,
		TurnNumber: 1,
		Concept:    req.Concept,
		Fallback:   fallback,
	}, nil
}

// Reply feeds a learner message into the session and returns the next
// tutor turn. The session is removed when the turn closes it.
func (t *Tutor) Reply(ctx context.Context, sessionID, message string) (*ReplyResult, error) {
	s, err := t.table.Get(sessionID)
	if err != nil {
		t.log.Warn("reply to unknown dialogue", zap.String("session_id", sessionID))
		return nil, err
	}

	analysis, err := t.analyzer.Analyze(ctx, AnalysisRequest{
		Concept: s.Concept(),
		History: s.History(),
		Reply:   message,
	})
	if err != nil {
		t.log.Warn("dialogue analysis failed, using neutral analysis",
			zap.String("session_id", sessionID), zap.Error(err))
		analysis = NeutralAnalysis()
	}

	s.AddUserTurn(message, &analysis)
	s.Advance()

	text, fallback := t.generate(ctx, s, message)
	s.AddAgentTurn(text)
	state := s.State()
	s.NoteApproach(fmt.Sprintf("Turn %d: %s", s.TurnCount(), state))

	res := &ReplyResult{
		Message: Message{
			SessionID:     s.ID(),
			Content:       text,
			State:         state,
			TurnNumber:    s.TurnCount(),
			Concept:       s.Concept(),
			Comprehension: clampUnit(analysis.Comprehension),
			Fallback:      fallback,
		},
		Analysis: analysis,
	}
	if state == StateClosing || s.ShouldClose() {
		reason, _ := s.CloseReason()
		report := t.finish(s, reason)
		res.Report = &report
		res.Message.Closing = true
	}
	return res, nil
}

// Close ends a session at the caller's request. The reason is the first
// closing condition that holds, or user_closed.
func (t *Tutor) Close(ctx context.Context, sessionID string) (*Report, error) {
	s, err := t.table.Get(sessionID)
	if err != nil {
		return nil, err
	}
	reason, _ := s.CloseReason()
	report := t.finish(s, reason)
	return &report, nil
}

// OnExpire sets the function receiving the closing report of each
// session evicted for idleness. It runs on the table's janitor goroutine.
func (t *Tutor) OnExpire(fn func(Report)) {
	t.table.OnExpire(func(s *Session) {
		reason, ok := s.CloseReason()
		if !ok {
			reason = CloseTimeout
		}
		report := s.Report(reason)
		t.log.Info("dialogue expired",
			zap.String("session_id", s.ID()),
			zap.String("reason", string(reason)),
			zap.Int("turns", report.TurnCount))
		fn(report)
	})
}

// Get returns a live session.
func (t *Tutor) Get(sessionID string) (*Session, error) {
	return t.table.Get(sessionID)
}

// Active returns the user's live session, if any.
func (t *Tutor) Active(userID string) (*Session, bool) {
	return t.table.Active(userID)
}

func (t *Tutor) finish(s *Session, reason CloseReason) Report {
	report := s.Report(reason)
	t.table.Delete(s.ID())
	t.log.Info("dialogue closed",
		zap.String("session_id", s.ID()),
		zap.String("reason", string(reason)),
		zap.Int("turns", report.TurnCount),
		zap.Float64("final_comprehension", report.FinalComprehension))
	return report
}

// generate produces the tutor turn for the session's current state. On
// failure it returns a canned turn and reports fallback.
func (t *Tutor) generate(ctx context.Context, s *Session, reply string) (string, bool) {
	state := s.State()
	prompt, err := renderTurnPrompt(state, newTurnData(s.Concept(), reply, s.Model()))
	if err != nil {
		t.log.Error("render turn prompt", zap.String("state", string(state)), zap.Error(err))
		return fallbackTurn(state), true
	}

	resp, err := t.provider.Generate(llm.WithPurpose(ctx, llm.PurposeDialogueTurn), llm.Request{
		System:      tutorSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   t.cfg.MaxTokens,
		Temperature: t.cfg.Temperature,
	})
	if err != nil {
		t.log.Warn("dialogue turn failed, using fallback",
			zap.String("session_id", s.ID()),
			zap.String("state", string(state)),
			zap.Error(err))
		return fallbackTurn(state), true
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return fallbackTurn(state), true
	}
	return text, false
}
