package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/llm"
	"github.com/abhisek/attune/internal/mastery"
	"github.com/abhisek/attune/internal/scheduler"
)

// Handler produces the content for one routed request.
type Handler interface {
	Target() scheduler.Target
	Handle(ctx context.Context, req RoutedRequest) (Intervention, error)
}

// HandlerConfig holds the model settings shared by the built-in
// handlers.
type HandlerConfig struct {
	SelectTokens  int     `yaml:"select_tokens" json:"select_tokens"`
	ContentTokens int     `yaml:"content_tokens" json:"content_tokens"`
	Temperature   float64 `yaml:"temperature" json:"temperature"`
}

func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{SelectTokens: 100, ContentTokens: 300, Temperature: 0.7}
}

type toolPrompt struct {
	system string
	user   *template.Template
}

// toolHandler asks the model which of its tools fits, then generates the
// content with that tool's prompt. Either call falling through leaves a
// usable intervention: the default tool, then the canned fallback.
type toolHandler struct {
	target      scheduler.Target
	provider    llm.Provider
	cfg         HandlerConfig
	log         *zap.Logger
	purpose     string
	selectSys   string
	selectUser  *template.Template
	tools       []Tool
	defaultTool Tool
	prompts     map[Tool]toolPrompt
	fallback    func(promptData) string
	now         func() time.Time
}

func (h *toolHandler) Target() scheduler.Target { return h.target }

func (h *toolHandler) Handle(ctx context.Context, req RoutedRequest) (Intervention, error) {
	data := newPromptData(req)
	tool := h.choose(ctx, data)

	iv := Intervention{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		UserID:    req.UserID,
		Target:    h.target,
		Tool:      tool,
		Topic:     data.Topic,
		Reason:    req.TriggerReason,
		Mastery:   req.Mastery,
		CreatedAt: h.now(),
	}

	content, err := h.generate(ctx, tool, data)
	if err != nil {
		h.log.Warn("content generation failed, using fallback",
			zap.String("target", string(h.target)),
			zap.String("tool", string(tool)),
			zap.Error(err))
		iv.Content = h.fallback(data)
		iv.Fallback = true
		return iv, nil
	}
	iv.Content = content
	return iv, nil
}

type toolChoice struct {
	Tool      string `json:"tool"`
	Reasoning string `json:"reasoning"`
}

func (h *toolHandler) choose(ctx context.Context, data promptData) Tool {
	if len(h.tools) < 2 || h.selectUser == nil {
		return h.defaultTool
	}
	var buf bytes.Buffer
	if err := h.selectUser.Execute(&buf, data); err != nil {
		h.log.Error("render tool choice prompt", zap.Error(err))
		return h.defaultTool
	}
	resp, err := h.provider.Generate(llm.WithPurpose(ctx, llm.PurposeToolChoice), llm.Request{
		System:      h.selectSys,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buf.String()}},
		Schema:      ToolChoiceSchema(h.tools),
		MaxTokens:   h.cfg.SelectTokens,
		Temperature: 0,
	})
	if err != nil {
		h.log.Warn("tool choice failed, using default",
			zap.String("target", string(h.target)),
			zap.String("default", string(h.defaultTool)),
			zap.Error(err))
		return h.defaultTool
	}
	var out toolChoice
	if err := resp.Decode(&out); err != nil || !slices.Contains(h.tools, Tool(out.Tool)) {
		return h.defaultTool
	}
	h.log.Debug("tool chosen",
		zap.String("target", string(h.target)),
		zap.String("tool", out.Tool),
		zap.String("reasoning", out.Reasoning))
	return Tool(out.Tool)
}

func (h *toolHandler) generate(ctx context.Context, tool Tool, data promptData) (string, error) {
	p, ok := h.prompts[tool]
	if !ok {
		p = h.prompts[h.defaultTool]
	}
	var buf bytes.Buffer
	if err := p.user.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tool, err)
	}
	resp, err := h.provider.Generate(llm.WithPurpose(ctx, h.purpose), llm.Request{
		System:      p.system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buf.String()}},
		MaxTokens:   h.cfg.ContentTokens,
		Temperature: h.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%s: empty response", tool)
	}
	return text, nil
}

// promptData is the template input shared by every handler prompt.
type promptData struct {
	Topic          string
	Subtopic       string
	ScreenDetails  string
	MasteryPct     int
	MasteryQuality mastery.Tier
	Guidance       string
	Trigger        scheduler.Reason
	Recent         string
	Speech         string
	Hypothesis     string
}

// recentLimit is how many buffered observations go into a prompt.
const recentLimit = 3

func newPromptData(req RoutedRequest) promptData {
	c := req.Context
	d := promptData{
		Topic:          c.Topic,
		Subtopic:       c.Subtopic,
		ScreenDetails:  strings.TrimSpace(c.ScreenContent),
		MasteryPct:     mastery.Percent(req.Mastery),
		MasteryQuality: req.MasteryQuality,
		Guidance:       mastery.ResolveBand(req.Mastery).Guidance(),
		Trigger:        req.TriggerReason,
		Recent:         "No recent observations.",
		Hypothesis:     c.Hypothesis,
	}
	if d.Topic == "" {
		d.Topic = "the current topic"
	}
	if d.Trigger == "" {
		d.Trigger = scheduler.ReasonFallback
	}
	if d.ScreenDetails == "" {
		d.ScreenDetails = d.Topic
		if m := c.Mode.String(); m != "" {
			d.ScreenDetails += " (" + m + ")"
		}
	}
	if n := len(req.RecentObservations); n > 0 {
		d.Recent = strings.Join(req.RecentObservations[max(0, n-recentLimit):], "\n")
	}
	if c.UserMessage != "" {
		d.Speech = fmt.Sprintf("The student just said: %q", c.UserMessage)
	}
	return d
}

// ToolChoiceSchema constrains a tool choice to the given tools.
func ToolChoiceSchema(tools []Tool) *llm.Schema {
	enum := make([]any, len(tools))
	names := make([]string, len(tools))
	for i, t := range tools {
		enum[i] = string(t)
		names[i] = string(t)
	}
	return &llm.Schema{
		Name:        "tool-choice-" + strings.Join(names, "-"),
		Description: "Which tool to use for the next intervention",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tool": map[string]any{
					"type": "string",
					"enum": enum,
				},
				"reasoning": map[string]any{
					"type":        "string",
					"description": "Brief reason for the choice",
				},
			},
			"required":             []any{"tool", "reasoning"},
			"additionalProperties": false,
		},
	}
}
