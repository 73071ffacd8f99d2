package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
	UserID string    // exact match when set; ignored by LLM queries
}

// LLMRequestEventData captures a single model call.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a journaled model call.
type LLMRequestEvent struct {
	ID        int64
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// ObservationEventData captures one observation applied to the tracker.
type ObservationEventData struct {
	UserID      string
	ConceptID   string
	Correct     bool
	Confidence  float64
	Source      string
	PKnowBefore float64
	PKnowAfter  float64
}

// MasteryTransitionEventData captures a concept changing lifecycle state.
type MasteryTransitionEventData struct {
	UserID    string
	ConceptID string
	From      string
	To        string
	Mastery   float64
	Source    string
	Trigger   string
}

// InterventionEventData captures one dispatched intervention.
type InterventionEventData struct {
	UserID            string
	Topic             string
	Target            string
	Reason            string
	ConfusionType     string
	Score             float64
	Mastery           float64
	DialogueSessionID string
	Content           string
	Fallback          bool
}

// InterventionEvent is a journaled intervention.
type InterventionEvent struct {
	ID        int64
	Sequence  int64
	Timestamp time.Time
	InterventionEventData
}

// SessionReportEventData captures a closed dialogue session.
type SessionReportEventData struct {
	SessionID          string
	UserID             string
	Concept            string
	TurnCount          int
	FinalComprehension float64
	CloseReason        string
	DurationSeconds    float64
	ObservationCount   int
}

// SessionReportEvent is a journaled session report.
type SessionReportEvent struct {
	ID        int64
	Sequence  int64
	Timestamp time.Time
	SessionReportEventData
}

// LLMUsage aggregates model calls for one purpose and model.
type LLMUsage struct {
	Purpose      string
	Model        string
	Calls        int
	Failures     int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs float64
}

// EventRepo provides append and read access to the journal.
type EventRepo interface {
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	AppendObservation(ctx context.Context, data ObservationEventData) error
	AppendMasteryTransition(ctx context.Context, data MasteryTransitionEventData) error
	AppendIntervention(ctx context.Context, data InterventionEventData) error
	AppendSessionReport(ctx context.Context, data SessionReportEventData) error

	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)
	GetLLMEvent(ctx context.Context, id int64) (*LLMRequestEvent, error)
	LLMUsageStats(ctx context.Context) ([]LLMUsage, error)
	QueryInterventions(ctx context.Context, opts QueryOpts) ([]InterventionEvent, error)
	QuerySessionReports(ctx context.Context, opts QueryOpts) ([]SessionReportEvent, error)
}

type eventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

// insert appends one row to table, stamping it with the next sequence
// number and the current time.
func (r *eventRepo) insert(ctx context.Context, table string, cols []string, vals ...any) error {
	seq, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	cols = append([]string{"sequence", "timestamp"}, cols...)
	vals = append([]any{seq, time.Now().UnixNano()}, vals...)
	q := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	_, err = r.db.ExecContext(ctx, q, vals...)
	return err
}

// where renders the filter clauses of opts. withUser adds the user_id
// filter for tables that carry one.
func where(opts QueryOpts, withUser bool) (string, []any) {
	var conds []string
	var args []any
	if opts.After > 0 {
		conds = append(conds, "sequence > ?")
		args = append(args, opts.After)
	}
	if opts.Before > 0 {
		conds = append(conds, "sequence < ?")
		args = append(args, opts.Before)
	}
	if !opts.From.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, opts.From.UnixNano())
	}
	if !opts.To.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, opts.To.UnixNano())
	}
	if withUser && opts.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, opts.UserID)
	}
	q := ""
	if len(conds) > 0 {
		q = " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY sequence DESC"
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	return q, args
}
