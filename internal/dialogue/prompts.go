package dialogue

import (
	"bytes"
	"strings"
	"text/template"
)

const tutorSystemPrompt = `You are a friendly, knowledgeable tutor. You're helping a student who is working and got stuck. Be conversational, warm, and concise. Never be condescending. Use simple language and concrete examples.`

var turnTemplates = map[State]*template.Template{
	StateInitiating: template.Must(template.New("initiating").Parse(
		`You noticed the student is working on {{.Concept}} and seems stuck on {{.Confusion}}. Open casually: mention what you noticed and ask a brief open question. ONE short paragraph. Sound like a smart friend, not a professor.`)),
	StateExploring: template.Must(template.New("exploring").Parse(
		`The student said: '{{.Reply}}'. You're still diagnosing their specific confusion about {{.Concept}}. Ask ONE targeted follow-up question. Don't explain yet; understand first. 1-2 sentences.`)),
	StateExplaining: template.Must(template.New("explaining").Parse(
		`Now explain. The student understands: {{.Confirmed}}. They're confused about: {{.Hypothesis}}. DO NOT use these approaches (already tried): {{.Tried}}. Bridge from what they know. Use ONE concrete analogy or example. Max 2 paragraphs. End with something that invites response.`)),
	StateChecking: template.Must(template.New("checking").Parse(
		`The student seems to understand {{.Concept}}. Ask them to restate the key idea in their own words, OR give a quick check question. Make it conversational, not a quiz. 1-2 sentences.`)),
	StateClosing: template.Must(template.New("closing").Parse(
		`They've got it: {{.Concept}}. Summarize the key insight in ONE sentence. Say you'll let them get back to work. Warm and brief.`)),
}

type turnData struct {
	Concept    string
	Confusion  string
	Reply      string
	Confirmed  string
	Hypothesis string
	Tried      string
}

func newTurnData(concept, reply string, m ConfusionModel) turnData {
	d := turnData{
		Concept:    concept,
		Confusion:  or(m.InitialHypothesis, "something"),
		Reply:      reply,
		Confirmed:  or(strings.Join(m.ConfirmedUnderstanding, ", "), "nothing confirmed yet"),
		Hypothesis: or(m.RefinedHypothesis, or(m.InitialHypothesis, "the concept")),
		Tried:      or(strings.Join(m.ApproachesTried, ", "), "none yet"),
	}
	return d
}

// renderTurnPrompt builds the instruction for the next tutor turn. An
// unknown state uses the exploring prompt.
func renderTurnPrompt(state State, d turnData) (string, error) {
	tmpl, ok := turnTemplates[state]
	if !ok {
		tmpl = turnTemplates[StateExploring]
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTurns stand in for a tutor turn the model failed to produce.
var fallbackTurns = map[State]string{
	StateInitiating: "Looks like something here is giving you trouble. What part feels the least clear right now?",
	StateExploring:  "Can you tell me a bit more about where it stops making sense?",
	StateExplaining: "Let's try it from a different angle. Start from the part you're sure about and walk me through the next step.",
	StateChecking:   "How would you put the main idea in your own words?",
	StateClosing:    "Nice work sticking with this. I'll let you get back to it.",
}

func fallbackTurn(state State) string {
	if t, ok := fallbackTurns[state]; ok {
		return t
	}
	return fallbackTurns[StateExploring]
}

func or(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
