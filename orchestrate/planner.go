package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sweetpotato0/docqa/llm"
	"github.com/sweetpotato0/docqa/message"
	"github.com/sweetpotato0/docqa/pkg/logging"
)

const plannerSystemPrompt = `You are a strict planning router for a document question-answering agent.
Map the user request into an ordered plan of steps drawn ONLY from:
retriever, answer, summary, compare, websearch, fallback.

Rules:
- Questions answerable from documents start with "retriever".
- "summary" covers TL;DR, synopsis, gist, overview, recap, abstract, outline, digest, brief, or any synonym/misspelling of "summary".
- "compare" covers compare, vs, difference, contrast, pros and cons, similarities, or any synonym/misspelling of "compare".
- "answer" covers factual Q&A, explanations, ratings, evaluations, how/why questions.
- If none of these clearly apply, plan the single step "fallback".
- Always normalize typos (e.g., "summry" means "summary").

Return ONLY a JSON array of step names, e.g. ["retriever", "answer"]. No punctuation, explanations, or extra words.`

// Planner maps a raw question onto an ordered plan of steps.
type Planner struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewPlanner creates a planner backed by the given model client.
func NewPlanner(client llm.Client) *Planner {
	return &Planner{llm: client, logger: logging.WithComponent("planner")}
}

// Plan asks the model for a step sequence. Malformed output degrades
// deterministically to the single-step fallback plan; a failed model call
// propagates as an error.
func (p *Planner) Plan(ctx context.Context, question string) ([]Step, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, plannerSystemPrompt),
		message.NewMessage(message.RoleUser, fmt.Sprintf("User asked: %q", question)),
	}
	resp, err := p.llm.Invoke(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("plan question: %w", err)
	}

	plan, ok := parsePlan(resp.Text())
	if !ok {
		p.logger.Warn("unparseable plan, degrading to fallback", "raw", resp.Text())
		return []Step{StepFallback}, nil
	}
	p.logger.Debug("plan ready", "steps", len(plan))
	return plan, nil
}

// parsePlan decodes the model output into steps. Any member outside the
// vocabulary, or an empty list, rejects the whole output.
func parsePlan(raw string) ([]Step, bool) {
	clean := stripFences(raw)
	var names []string
	if err := json.Unmarshal([]byte(clean), &names); err != nil {
		return nil, false
	}
	if len(names) == 0 {
		return nil, false
	}
	plan := make([]Step, 0, len(names))
	for _, name := range names {
		step, ok := ParseStep(strings.ToLower(strings.TrimSpace(name)))
		if !ok {
			return nil, false
		}
		plan = append(plan, step)
	}
	return plan, true
}

func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = trimmed[3:]
		trimmed = strings.TrimPrefix(trimmed, "json")
		trimmed = strings.TrimPrefix(trimmed, "JSON")
		if idx := strings.Index(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
	}
	return strings.TrimSpace(trimmed)
}
