package dialogue

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/abhisek/attune/internal/llm"
)

// Analyzer judges a learner reply.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error)
}

// AnalysisRequest is the input to an Analyzer.
type AnalysisRequest struct {
	Concept string
	History string
	Reply   string
}

// AnalyzerConfig holds the model settings for reply analysis.
type AnalyzerConfig struct {
	MaxTokens   int
	Temperature float64
}

func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{MaxTokens: 200, Temperature: 0}
}

// LLMAnalyzer asks the model for a schema-constrained judgement.
type LLMAnalyzer struct {
	provider llm.Provider
	cfg      AnalyzerConfig
}

func NewLLMAnalyzer(provider llm.Provider, cfg AnalyzerConfig) *LLMAnalyzer {
	return &LLMAnalyzer{provider: provider, cfg: cfg}
}

// analysisOutput mirrors AnalysisSchema; nullable fields decode as nil.
type analysisOutput struct {
	Comprehension         float64 `json:"comprehension"`
	RestatedInOwnWords    bool    `json:"restated_in_own_words"`
	RemainingConfusion    *string `json:"remaining_confusion"`
	MisconceptionDetected *string `json:"misconception_detected"`
	EngagementLevel       string  `json:"engagement_level"`
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeDialogueAnalysis)

	var buf bytes.Buffer
	if err := analysisTemplate.Execute(&buf, req); err != nil {
		return Analysis{}, fmt.Errorf("build analysis prompt: %w", err)
	}
	resp, err := a.provider.Generate(ctx, llm.Request{
		System:      analysisSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buf.String()}},
		Schema:      AnalysisSchema,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze reply: %w", err)
	}

	var raw analysisOutput
	if err := resp.Decode(&raw); err != nil {
		return Analysis{}, err
	}
	return Analysis{
		Comprehension:         clampUnit(raw.Comprehension),
		RestatedInOwnWords:    raw.RestatedInOwnWords,
		RemainingConfusion:    deref(raw.RemainingConfusion),
		MisconceptionDetected: deref(raw.MisconceptionDetected),
		EngagementLevel:       raw.EngagementLevel,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if strings.EqualFold(v, "null") || strings.EqualFold(v, "none") {
		return ""
	}
	return v
}

const analysisSystemPrompt = `You analyze student responses during a tutoring session. Judge only what the latest response shows.`

var analysisTemplate = template.Must(template.New("analysis").Parse(`Context: confused about {{.Concept}}.
Dialogue so far:
{{.History}}

Latest student response: '{{.Reply}}'

Score comprehension from 0.0 to 1.0. Set restated_in_own_words when the student explained the idea themselves. Use null for remaining_confusion and misconception_detected when there is none.`))

// AnalysisSchema constrains reply analysis output.
var AnalysisSchema = &llm.Schema{
	Name:        "dialogue-analysis",
	Description: "Judgement of a student's reply during a tutoring dialogue",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"comprehension": map[string]any{
				"type":        "number",
				"minimum":     0.0,
				"maximum":     1.0,
				"description": "How well the student understands the concept right now",
			},
			"restated_in_own_words": map[string]any{
				"type":        "boolean",
				"description": "Whether the student restated the idea in their own words",
			},
			"remaining_confusion": map[string]any{
				"type":        []any{"string", "null"},
				"description": "What the student is still confused about, or null",
			},
			"misconception_detected": map[string]any{
				"type":        []any{"string", "null"},
				"description": "A specific misconception the response shows, or null",
			},
			"engagement_level": map[string]any{
				"type": "string",
				"enum": []any{"high", "medium", "low"},
			},
		},
		"required": []any{
			"comprehension", "restated_in_own_words", "remaining_confusion",
			"misconception_detected", "engagement_level",
		},
		"additionalProperties": false,
	},
}
