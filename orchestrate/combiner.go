package orchestrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/docqa/llm"
	"github.com/sweetpotato0/docqa/message"
)

// noResultsMessage is returned when the trace produced nothing at all.
const noResultsMessage = "No useful results were produced for your question."

const combinerSystemPrompt = `You synthesize the final response from an agent's labeled working notes.
The user asked one question; the notes below were gathered while working on it.
Use ONLY the sections relevant to what the user actually asked for (a summary, a comparison, a rating, a direct answer, or a union if several were requested).
Do not mention the notes, their labels, or the process. Respond directly to the user.`

// Combiner synthesizes the accumulated step outputs into one final response.
type Combiner struct {
	llm llm.Client
}

// NewCombiner creates a combiner backed by the given model client.
func NewCombiner(client llm.Client) *Combiner {
	return &Combiner{llm: client}
}

// Combine produces the final user-facing text. An empty trace yields a
// deterministic no-results message, and a refusal-only trace passes the
// canned message through verbatim; everything else is model-synthesized
// selection over the labeled outputs.
func (c *Combiner) Combine(ctx context.Context, question string, outputs []StepOutput) (string, error) {
	if len(outputs) == 0 {
		return noResultsMessage, nil
	}
	if len(outputs) == 1 && outputs[0].Agent == StepFallback {
		return outputs[0].Content, nil
	}

	var sections strings.Builder
	for _, out := range outputs {
		fmt.Fprintf(&sections, "[%s]\n%s\n\n", out.Agent, out.Content)
	}

	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, combinerSystemPrompt),
		message.NewMessage(message.RoleUser, fmt.Sprintf("Question: %s\n\nNotes:\n%s", question, sections.String())),
	}
	resp, err := c.llm.Invoke(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("combine outputs: %w", err)
	}
	return resp.Text(), nil
}
