package dispatch

import (
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/llm"
	"github.com/abhisek/attune/internal/scheduler"
)

const conceptualFallback = "Hmm, I wanted to ask you something about what you're reading, but I ran into an issue. Keep going!"

// NewConceptualHandler builds the handler for learners building
// understanding. It asks a question or suggests a visualization.
func NewConceptualHandler(provider llm.Provider, cfg HandlerConfig, log *zap.Logger) Handler {
	return &toolHandler{
		target:      scheduler.TargetConceptual,
		provider:    provider,
		cfg:         cfg,
		log:         named(log, "conceptual"),
		purpose:     llm.PurposeConceptual,
		selectSys:   conceptualSelectSystem,
		selectUser:  selectUserTemplate,
		tools:       []Tool{ToolQuestion, ToolVisualization},
		defaultTool: ToolQuestion,
		prompts: map[Tool]toolPrompt{
			ToolQuestion:      {system: conceptualQuestionSystem, user: conceptualQuestionUser},
			ToolVisualization: {system: conceptualVisualSystem, user: conceptualVisualUser},
		},
		fallback: func(promptData) string { return conceptualFallback },
		now:      time.Now,
	}
}

const conceptualSelectSystem = `You are a learning assistant deciding HOW to help a student who is building conceptual understanding.

You have 2 tools. Pick ONE based on the trigger reason, mastery, and what's on screen:

"question": ask a Socratic or comprehension question. Use when:
  - natural_pause: check understanding of what they just saw
  - stuck: ask a simpler guiding question to unstick them
  - mode_change: connect what they were doing to what they're doing now
  - topic_transition: ask about the connection between the old and new topic
  - low mastery: basic "what is" questions; medium: "why" questions; high: "what if" questions

"visualization": suggest a diagram or mental model. Use when the content is abstract
(equations, theory, complex relationships) and a visual would help more than a question.

Default to "question" if unsure.`

var selectUserTemplate = template.Must(template.New("select").Parse(`Screen details:
{{.ScreenDetails}}

Topic: {{.Topic}} | Mastery: {{.MasteryPct}}% ({{.MasteryQuality}}) | Trigger: {{.Trigger}}

Recent activity:
{{.Recent}}
{{.Speech}}`))

const conceptualQuestionSystem = `You are a Socratic learning companion. Based on EXACTLY what's on the student's screen, ask ONE targeted question.

Adapt to the trigger reason:
- natural_pause: "Before you move on..." and check they understood what they just saw
- topic_transition: "You just went from X to Y..." and connect the two
- stuck: ask something SIMPLER to guide them without adding pressure
- mode_change: bridge theory and practice
- explicit_request or confusion: go straight at what they are confused about
- fallback: general comprehension check

Rules:
- Reference SPECIFIC things on screen (exact equations, code, question text)
- Ask ONE clear question
- Don't give the answer
- Be concise and conversational, 2-3 sentences max`

var conceptualQuestionUser = template.Must(template.New("question").Parse(`Screen details:
{{.ScreenDetails}}

Topic: {{.Topic}} | Mastery: {{.MasteryPct}}% | Trigger: {{.Trigger}}
{{if .Hypothesis}}Likely confusion: {{.Hypothesis}}
{{end}}
Calibrate difficulty to the mastery level; at this level ask {{.Guidance}} questions.
{{.Speech}}`))

const conceptualVisualSystem = `You are a learning companion. Suggest a specific mental visualization or diagram for what the student is looking at.

Rules:
- Tie it to what's on their screen
- Make it concrete: "Imagine..." or "Picture this..."
- Math: a geometric interpretation or concrete example. Code: a flow diagram or state trace. Theory: an everyday analogy
- 2-4 sentences
- It should help them understand, not decorate`

var conceptualVisualUser = template.Must(template.New("visualization").Parse(`Screen details:
{{.ScreenDetails}}

Topic: {{.Topic}} | Mastery: {{.MasteryPct}}% | Trigger: {{.Trigger}}
{{.Speech}}`))

func named(log *zap.Logger, name string) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log.Named(name)
}
