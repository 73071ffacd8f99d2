package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/abhisek/attune/internal/dialogue"
	"github.com/abhisek/attune/internal/engine"
	"github.com/abhisek/attune/internal/fusion"
	"github.com/abhisek/attune/internal/mastery"
	"github.com/abhisek/attune/internal/ui/theme"
)

const barWidth = 20

func renderAssessment(w io.Writer, topic string, a fusion.Assessment) {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Assessment") + "\n")
	if topic != "" {
		b.WriteString(theme.Field("Topic", topic) + "\n")
	}
	b.WriteString(theme.Label.Render("Score") + theme.Bar(a.Score, barWidth) + "\n")
	b.WriteString(theme.Field("Type", a.Type) + "\n")
	b.WriteString(theme.Field("Rule", a.Rule) + "\n")
	if a.Override != fusion.OverrideNone {
		b.WriteString(theme.Field("Override", a.Override) + "\n")
	}
	verdict := theme.Hold.Render("no")
	if a.ShouldIntervene {
		verdict = theme.Fire.Render("yes")
	}
	b.WriteString(theme.Label.Render("Intervene") + verdict + "\n")
	b.WriteString(theme.Hint.Render(a.Rationale) + "\n")
	b.WriteString(theme.Separator(barWidth+20) + "\n")
	for _, s := range a.Signals.Ranked() {
		b.WriteString(theme.Label.Render(s.Name) + theme.Bar(s.Value, barWidth) + "\n")
	}
	fmt.Fprint(w, theme.Card.Render(strings.TrimRight(b.String(), "\n"))+"\n")
}

func renderOutcome(w io.Writer, label string, out *engine.Outcome) {
	head := theme.Title.Render(label) + "  " + theme.Decision(out.Decision.Fire, string(out.Decision.Reason))
	fmt.Fprintln(w, head)
	if out.Topic != "" {
		fmt.Fprintln(w, "  "+theme.Field("Topic", out.Topic))
		fmt.Fprintln(w, "  "+theme.Label.Render("Mastery")+theme.Bar(out.Mastery, barWidth))
	}
	if a := out.Assessment; a != nil {
		fmt.Fprintln(w, "  "+theme.Field("Confusion", fmt.Sprintf("%s (%.2f)", a.Type, a.Score)))
	}
	for _, tr := range out.Transitions {
		fmt.Fprintln(w, "  "+theme.Field("Transition", fmt.Sprintf("%s %s → %s", tr.ConceptID, tr.From, tr.To)))
	}
	if iv := out.Intervention; iv != nil {
		fmt.Fprintln(w, "  "+theme.Field("Target", iv.Target))
		fmt.Fprintln(w, "  "+theme.Field("Tool", iv.Tool))
		if iv.Fallback {
			fmt.Fprintln(w, "  "+theme.Hint.Render("fallback content"))
		}
		fmt.Fprintln(w, "  "+theme.Body.Render(iv.Content))
	}
	if d := out.Dialogue; d != nil {
		renderMessage(w, d)
	}
}

func renderMessage(w io.Writer, m *dialogue.Message) {
	fmt.Fprintln(w, "  "+theme.Field("Dialogue", fmt.Sprintf("%s turn %d (%s)", m.SessionID, m.TurnNumber, m.State)))
	fmt.Fprintln(w, "  "+theme.Body.Render(m.Content))
}

func renderReport(w io.Writer, r *dialogue.Report) {
	status := theme.Good
	if r.CloseReason != dialogue.CloseMastered {
		status = theme.Hold
	}
	fmt.Fprintln(w, "  "+theme.Label.Render("Closed")+status.Render(string(r.CloseReason)))
	fmt.Fprintln(w, "  "+theme.Field("Turns", r.TurnCount))
	fmt.Fprintln(w, "  "+theme.Label.Render("Grasp")+theme.Bar(r.FinalComprehension, barWidth))
}

func renderMastery(w io.Writer, concepts map[string]float64, order []string) {
	if len(order) == 0 {
		return
	}
	fmt.Fprintln(w, theme.Title.Render("Mastery"))
	for _, id := range order {
		p := concepts[id]
		band := mastery.ResolveBand(p)
		fmt.Fprintln(w, "  "+theme.Label.Render(id)+theme.Bar(p, barWidth)+"  "+theme.Hint.Render(string(band)))
	}
}
