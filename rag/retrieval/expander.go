package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/docqa/llm"
	"github.com/sweetpotato0/docqa/message"
)

const expanderSystemPrompt = "You are a query writer for search engines."

// Expander widens recall by rewriting one question into several phrasings.
type Expander struct {
	llm      llm.Client
	rewrites int
}

// NewExpander creates a query expander that asks for the given number of
// rewrites (default 3).
func NewExpander(client llm.Client, rewrites int) *Expander {
	if rewrites <= 0 {
		rewrites = 3
	}
	return &Expander{llm: client, rewrites: rewrites}
}

// Expand returns the original question followed by model-written paraphrases.
// The original question is always first; a model failure propagates rather
// than silently shrinking the variant set.
func (e *Expander) Expand(ctx context.Context, question string) ([]string, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, expanderSystemPrompt),
		message.NewMessage(message.RoleUser, fmt.Sprintf(
			"Rewrite the following question into %d different phrasings that might match documents better. Keep them short. One per line.\n\nQuestion: %q",
			e.rewrites, question)),
	}

	resp, err := e.llm.Invoke(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("query expansion failed: %w", err)
	}

	variants := []string{question}
	for _, line := range strings.Split(resp.Text(), "\n") {
		rewrite := cleanRewrite(line)
		if rewrite == "" {
			continue
		}
		variants = append(variants, rewrite)
	}
	return variants, nil
}

// cleanRewrite strips list markers the model tends to prepend.
func cleanRewrite(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "-*•")
	s = strings.TrimSpace(s)
	for i, r := range s {
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == ')' {
			if i > 0 {
				s = strings.TrimSpace(s[i+1:])
			}
		}
		break
	}
	return strings.Trim(s, `"`)
}
