package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	docqaerrors "github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/guardrail"
	"github.com/sweetpotato0/docqa/llm"
	"github.com/sweetpotato0/docqa/message"
	"github.com/sweetpotato0/docqa/pkg/logging"
	"github.com/sweetpotato0/docqa/pkg/telemetry"
	"github.com/sweetpotato0/docqa/rag/retrieval"
)

// minContextLength is the shortest retrieved context worth answering from.
const minContextLength = 20

// Retriever assembles grounding context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) (*retrieval.Result, error)
}

// Guard gates a generated answer before it enters the trace.
type Guard interface {
	Evaluate(ctx context.Context, answer, question, contextText string) (*guardrail.Evaluation, error)
}

// WebSearcher answers a question from the open web.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Steps holds the collaborators shared by every agent step. Each step is a
// pure function of (state, collaborators) returning a partial update.
type Steps struct {
	llm       llm.Client
	retriever Retriever
	guard     Guard
	web       WebSearcher
	logger    *slog.Logger
}

// NewSteps wires the step implementations to their collaborators.
func NewSteps(client llm.Client, retriever Retriever, guard Guard, web WebSearcher) *Steps {
	return &Steps{
		llm:       client,
		retriever: retriever,
		guard:     guard,
		web:       web,
		logger:    logging.WithComponent("steps"),
	}
}

// Run dispatches one step against the current state.
func (s *Steps) Run(ctx context.Context, step Step, state *State) (_ *Update, err error) {
	ctx, span := telemetry.Tracer("orchestrate").Start(ctx, "step."+string(step))
	defer func() { telemetry.End(span, err) }()

	s.logger.Debug("running step", "step", step)
	switch step {
	case StepRetriever:
		return s.runRetriever(ctx, state)
	case StepAnswer:
		return s.runAnswer(ctx, state)
	case StepSummary:
		return s.runSummary(ctx, state)
	case StepCompare:
		return s.runCompare(ctx, state)
	case StepWebSearch:
		return s.runWebSearch(ctx, state)
	case StepFallback:
		return s.runFallback(state)
	}
	return nil, fmt.Errorf("%w: unknown step %q", docqaerrors.ErrInvalidInput, step)
}

// runRetriever assembles document context. Thin or irrelevant context flips
// the forced-websearch escape valve instead of setting context.
func (s *Steps) runRetriever(ctx context.Context, state *State) (*Update, error) {
	result, err := s.retriever.Retrieve(ctx, state.Question)
	if err != nil {
		return nil, err
	}
	if result.Reroute || len(strings.TrimSpace(result.Context)) < minContextLength {
		s.logger.Info("retrieved context too thin, forcing web search")
		return &Update{ForceWebSearch: boolPtr(true)}, nil
	}

	relevant, err := s.checkRelevance(ctx, state.Question, result.Context)
	if err != nil {
		return nil, err
	}
	if !relevant {
		s.logger.Info("retrieved context judged irrelevant, forcing web search")
		return &Update{ForceWebSearch: boolPtr(true)}, nil
	}
	return &Update{Context: stringPtr(result.Context)}, nil
}

// checkRelevance is a cheap yes/no judgment over question and context.
// Fails closed toward "not relevant".
func (s *Steps) checkRelevance(ctx context.Context, question, contextText string) (bool, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, "You judge whether a context can answer a question. Reply only with \"yes\" or \"no\"."),
		message.NewMessage(message.RoleUser, fmt.Sprintf("Question: %s\n\nContext:\n%s", question, contextText)),
	}
	resp, err := s.llm.Invoke(ctx, msgs)
	if err != nil {
		return false, fmt.Errorf("relevance check: %w", err)
	}
	return strings.Contains(strings.ToLower(resp.Text()), "yes"), nil
}

// runAnswer generates an answer over the effective context and gates it
// through the guardrail chain. A rejected answer never enters the trace;
// the step reroutes to fallback instead.
func (s *Steps) runAnswer(ctx context.Context, state *State) (*Update, error) {
	effective := s.effectiveContext(state)
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, "You are a helpful assistant."),
		message.NewMessage(message.RoleUser, fmt.Sprintf("Context:\n%s\n\nQ: %s", effective, state.Question)),
	}
	resp, err := s.llm.Invoke(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("answer step: %w", err)
	}
	answer := resp.Text()

	verdict, err := s.guard.Evaluate(ctx, answer, state.Question, effective)
	if err != nil {
		return nil, err
	}
	if !verdict.Accepted {
		s.logger.Info("answer rejected by guardrail", "check", verdict.FailingCheck)
		return &Update{NextStep: stepPtr(StepFallback)}, nil
	}
	return &Update{Output: &StepOutput{Agent: StepAnswer, Content: answer}}, nil
}

// effectiveContext prefers a prior summary output over raw context.
func (s *Steps) effectiveContext(state *State) string {
	for i := len(state.Outputs) - 1; i >= 0; i-- {
		if state.Outputs[i].Agent == StepSummary {
			return state.Outputs[i].Content
		}
	}
	return state.Context
}

// runSummary condenses the context. Extractive enough that it skips the
// guardrail chain.
func (s *Steps) runSummary(ctx context.Context, state *State) (*Update, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, "You are a concise summarizer."),
		message.NewMessage(message.RoleUser, fmt.Sprintf("Summarize in 1-2 sentences:\n\n%s", state.Context)),
	}
	resp, err := s.llm.Invoke(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("summary step: %w", err)
	}
	return &Update{Output: &StepOutput{Agent: StepSummary, Content: resp.Text()}}, nil
}

// runCompare produces a structured comparison over the context.
func (s *Steps) runCompare(ctx context.Context, state *State) (*Update, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, "You compare concepts clearly."),
		message.NewMessage(message.RoleUser, fmt.Sprintf("Compare based on context:\n\n%s\n\nQ: %s", state.Context, state.Question)),
	}
	resp, err := s.llm.Invoke(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("compare step: %w", err)
	}
	return &Update{Output: &StepOutput{Agent: StepCompare, Content: resp.Text()}}, nil
}

// runWebSearch is the context source of last resort. An empty result routes
// to fallback; any other failure propagates.
func (s *Steps) runWebSearch(ctx context.Context, state *State) (*Update, error) {
	text, err := s.web.Search(ctx, state.Question)
	if err != nil {
		if errors.Is(err, docqaerrors.ErrNotFound) {
			s.logger.Info("web search returned nothing, routing to fallback")
			return &Update{NextStep: stepPtr(StepFallback)}, nil
		}
		return nil, fmt.Errorf("websearch step: %w", err)
	}
	return &Update{
		Context: stringPtr(text),
		Output:  &StepOutput{Agent: StepWebSearch, Content: text},
	}, nil
}

// runFallback emits the canned refusal. Deterministic, never calls a model.
func (s *Steps) runFallback(state *State) (*Update, error) {
	msg := fmt.Sprintf("Sorry, I can only answer questions covered by the ingested documents. Your question: %q is unsupported.", state.Question)
	return &Update{Output: &StepOutput{Agent: StepFallback, Content: msg}}, nil
}
