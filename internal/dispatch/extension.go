package dispatch

import (
	"fmt"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/llm"
	"github.com/abhisek/attune/internal/scheduler"
)

// NewExtensionHandler builds the handler for learners consolidating
// material they already know. It offers a stretch challenge one step
// beyond the current concept.
func NewExtensionHandler(provider llm.Provider, cfg HandlerConfig, log *zap.Logger) Handler {
	return &toolHandler{
		target:      scheduler.TargetExtension,
		provider:    provider,
		cfg:         cfg,
		log:         named(log, "extension"),
		purpose:     llm.PurposeExtension,
		selectSys:   extensionSelectSystem,
		selectUser:  selectUserTemplate,
		tools:       []Tool{ToolVisualization, ToolVoiceCall},
		defaultTool: ToolVisualization,
		prompts: map[Tool]toolPrompt{
			ToolVisualization: {system: extensionVisualSystem, user: extensionUser},
			ToolVoiceCall:     {system: extensionVoiceSystem, user: extensionUser},
		},
		fallback: extensionFallback,
		now:      time.Now,
	}
}

func extensionFallback(d promptData) string {
	return fmt.Sprintf("You've got a good handle on %s. What do you think changes if you push one of its assumptions to the extreme?", d.Topic)
}

const extensionSelectSystem = `You are a learning assistant deciding HOW to stretch a student who has demonstrated solid understanding.

Pick ONE tool:
- "visualization": show how the current concept extends or generalizes. STRONGLY PREFERRED whenever the extension has a spatial, structural or mathematical shape.
- "voice_call": open a short spoken dialogue. Use only when the extension is purely about big-picture connections or the screen is too vague to picture.

Default to "visualization" if unsure.`

const extensionVisualSystem = `You are a learning companion. Suggest a visualization that takes what's on screen one step further.

Rules:
- Start from the specific content they're looking at
- Change one feature so it points to a new case or a new abstraction of the concept
- The jump should be intuitive and logical
- Make it concrete: "Imagine..." or "Picture this..."
- 2-3 sentences
- Do NOT give incorrect information`

const extensionVoiceSystem = `You are a friendly spoken-word tutor about to start a live conversation with a student who is ready to go beyond the current material, one or two levels of abstraction away.

Rules:
- Reference what's on their screen
- Make the jump in reasoning follow from the original content
- Sound natural and spoken; this will be read aloud
- Open with ONE clear thought or question
- Don't make it trivial, don't make it arbitrarily hard
- 2-3 sentences`

var extensionUser = template.Must(template.New("extension").Parse(`What's on their screen right now:
{{.ScreenDetails}}

Their mastery of "{{.Topic}}" is {{.MasteryPct}}% ({{.MasteryQuality}} confidence). Trigger: {{.Trigger}}
Recent activity:
{{.Recent}}
{{.Speech}}`))
