package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	docqaerrors "github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/llm"
	"github.com/sweetpotato0/docqa/message"
	"github.com/sweetpotato0/docqa/pkg/logging"
)

// CheckName identifies one of the chain's checks.
type CheckName string

const (
	CheckFaithfulness CheckName = "faithfulness"
	CheckToxicity     CheckName = "toxicity"
	CheckGrading      CheckName = "grading"
)

// Evaluation is the chain's verdict on one generated answer.
type Evaluation struct {
	Accepted     bool
	FailingCheck CheckName
	Reason       string
}

// Chain runs faithfulness, toxicity, and grading judgments over a generated
// answer, in that order, stopping at the first failure. The cheap yes/no
// checks run before the structured grading call so rejected answers cost the
// fewest model invocations.
type Chain struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewChain creates a guardrail chain backed by the given model client.
func NewChain(client llm.Client) *Chain {
	return &Chain{
		llm:    client,
		logger: logging.WithComponent("guardrail"),
	}
}

// Evaluate gates an answer. A rejection is a verdict, not an error; errors
// mean a judgment call itself failed and must be escalated.
func (c *Chain) Evaluate(ctx context.Context, answer, question, contextText string) (*Evaluation, error) {
	faithful, err := c.checkFaithfulness(ctx, answer, contextText)
	if err != nil {
		return nil, err
	}
	if !faithful {
		c.logger.Info("answer rejected", "check", CheckFaithfulness)
		return &Evaluation{FailingCheck: CheckFaithfulness, Reason: "answer not supported by context"}, nil
	}

	safe, err := c.checkToxicity(ctx, answer)
	if err != nil {
		return nil, err
	}
	if !safe {
		c.logger.Info("answer rejected", "check", CheckToxicity)
		return &Evaluation{FailingCheck: CheckToxicity, Reason: "answer flagged as unsafe"}, nil
	}

	grade, err := c.gradeAnswer(ctx, answer, question, contextText)
	if err != nil {
		return nil, err
	}
	if !grade.Pass {
		c.logger.Info("answer rejected", "check", CheckGrading, "reason", grade.Reason)
		return &Evaluation{FailingCheck: CheckGrading, Reason: grade.Reason}, nil
	}

	return &Evaluation{Accepted: true}, nil
}

// checkFaithfulness judges whether every claim in the answer is supported by
// the context. Fails closed: only a reply containing the affirmative token
// passes.
func (c *Chain) checkFaithfulness(ctx context.Context, answer, contextText string) (bool, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, "You are a strict fact-checker. Only check if the answer is supported or not."),
		message.NewMessage(message.RoleUser, fmt.Sprintf(
			"Context:\n%s\n\nAnswer:\n%s\n\nQuestion: Is the answer fully supported by the context? Reply only with \"yes\" or \"no\".",
			contextText, answer)),
	}
	resp, err := c.llm.Invoke(ctx, msgs)
	if err != nil {
		return false, fmt.Errorf("faithfulness check: %w", err)
	}
	reply := strings.ToLower(resp.Text())
	return strings.Contains(reply, "yes"), nil
}

// checkToxicity judges whether the answer contains abusive or hateful
// content. Fails closed: anything other than the exact "safe" token rejects.
func (c *Chain) checkToxicity(ctx context.Context, answer string) (bool, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, "You are a strict safety filter."),
		message.NewMessage(message.RoleUser, fmt.Sprintf(
			"Check the following text for abusive, toxic, hateful, violent, or unsafe language.\nIf it is clean, reply ONLY with \"safe\". If it is unsafe, reply ONLY with \"unsafe\".\nText:\n%s",
			answer)),
	}
	resp, err := c.llm.Invoke(ctx, msgs)
	if err != nil {
		return false, fmt.Errorf("toxicity check: %w", err)
	}
	reply := strings.Trim(strings.ToLower(strings.TrimSpace(resp.Text())), `."'`)
	return reply == "safe", nil
}

type gradeResult struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason"`
}

// gradeAnswer asks for a structured relevance/completeness/clarity verdict.
// Malformed output is an upstream failure, not a silent pass.
func (c *Chain) gradeAnswer(ctx context.Context, answer, question, contextText string) (*gradeResult, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, "You are a strict evaluator of answers."),
		message.NewMessage(message.RoleUser, fmt.Sprintf(
			"Question: %s\nContext: %s\nAnswer: %s\n\nEvaluate this answer for relevance, completeness, and clarity.\nReturn JSON only, shaped as {\"pass\": bool, \"reason\": string}.",
			question, contextText, answer)),
	}
	resp, err := c.llm.Invoke(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("grading check: %w", err)
	}
	grade, err := decodeJSON[gradeResult](resp.Text())
	if err != nil {
		return nil, fmt.Errorf("grading output invalid: %w: %w", docqaerrors.ErrMalformedOutput, err)
	}
	return grade, nil
}
