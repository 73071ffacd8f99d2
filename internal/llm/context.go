package llm

import "context"

type purposeKey struct{}

// Purposes used to label journaled calls.
const (
	PurposeDialogueTurn     = "dialogue-turn"
	PurposeDialogueAnalysis = "dialogue-analysis"
	PurposeToolChoice       = "tool-choice"
	PurposeConceptual       = "conceptual-prompt"
	PurposeAppliedHint      = "applied-hint"
	PurposeExtension        = "extension-challenge"
)

// WithPurpose labels the calls made with ctx.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the label set by WithPurpose, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey{}).(string); ok {
		return v
	}
	return "unknown"
}
