package dispatch

import (
	"fmt"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/llm"
	"github.com/abhisek/attune/internal/scheduler"
)

// NewAppliedHandler builds the handler for learners working a problem.
// It gives a short procedural hint without solving the problem.
func NewAppliedHandler(provider llm.Provider, cfg HandlerConfig, log *zap.Logger) Handler {
	return &toolHandler{
		target:      scheduler.TargetApplied,
		provider:    provider,
		cfg:         cfg,
		log:         named(log, "applied"),
		purpose:     llm.PurposeAppliedHint,
		selectSys:   appliedSelectSystem,
		selectUser:  selectUserTemplate,
		tools:       []Tool{ToolHint, ToolVisualization},
		defaultTool: ToolHint,
		prompts: map[Tool]toolPrompt{
			ToolHint:          {system: appliedHintSystem, user: appliedHintUser},
			ToolVisualization: {system: appliedVisualSystem, user: appliedVisualUser},
		},
		fallback: appliedFallback,
		now:      time.Now,
	}
}

func appliedFallback(d promptData) string {
	return fmt.Sprintf("Try breaking the %s problem into smaller steps. What's the first thing you need to figure out?", d.Topic)
}

const appliedSelectSystem = `You are a learning assistant deciding HOW to help a student who is actively solving a problem.

Pick ONE tool:
- "hint": a short nudge toward their next step. Prefer this when they are mid-step or their work has an error.
- "visualization": a way to picture or diagram the problem. Use when they seem stuck on the structure of the problem itself.

Default to "hint" if unsure.`

const appliedHintSystem = `You're a helpful tutor giving a quick hint to a student in the middle of a problem.

Rules:
- Reference EXACTLY what's on their screen
- Don't solve it, just point them in the right direction
- Be concise, 1-2 sentences
- Do NOT give incorrect information; that is worse than giving none`

var appliedHintUser = template.Must(template.New("hint").Parse(`Student is working on {{.Topic}}. Their current work:
{{.ScreenDetails}}

Mastery: {{.MasteryPct}}% | Trigger: {{.Trigger}}
{{if .Hypothesis}}What seems to be going wrong: {{.Hypothesis}}
{{end}}
Low mastery: help them find the first step. Medium: ask about their strategy. High: push on efficiency or an alternative approach.
{{.Speech}}`))

const appliedVisualSystem = `You are a learning companion. Suggest a visualization of the problem the student is working on.

Rules:
- Visualize the problem at hand, not an arbitrary simplification
- Let the parts that can vary in the problem vary in the picture
- Make it concrete: "Imagine..." or "Picture this..."
- 2-3 sentences
- Do NOT give incorrect information`

var appliedVisualUser = template.Must(template.New("applied-visualization").Parse(`What's on their screen right now:
{{.ScreenDetails}}

Their mastery of "{{.Topic}}" is {{.MasteryPct}}%.
{{.Speech}}`))
