package guardrail

import (
	"context"
	"errors"
	"strings"
	"testing"

	docqaerrors "github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/message"
)

// scriptedLLM replies in order, one canned response per Invoke call.
type scriptedLLM struct {
	replies []string
	err     error
	calls   int
	prompts []string
}

func (s *scriptedLLM) Invoke(_ context.Context, msgs []*message.Message) (*message.Message, error) {
	if len(msgs) > 0 {
		s.prompts = append(s.prompts, msgs[len(msgs)-1].Text())
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.calls >= len(s.replies) {
		return nil, errors.New("no scripted reply left")
	}
	reply := s.replies[s.calls]
	s.calls++
	return message.NewMessage(message.RoleAssistant, reply), nil
}

func (s *scriptedLLM) SetTemperature(float64) {}
func (s *scriptedLLM) SetMaxTokens(int64)     {}
func (s *scriptedLLM) SetModel(string)        {}

func TestEvaluateAccepts(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"yes", "safe", `{"pass": true, "reason": "good"}`}}
	chain := NewChain(llm)

	eval, err := chain.Evaluate(context.Background(), "Paris is the capital.", "capital of France?", "Paris is the capital of France.")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !eval.Accepted {
		t.Fatalf("expected accepted, got failing check %q", eval.FailingCheck)
	}
	if llm.calls != 3 {
		t.Fatalf("expected all three checks to run, got %d calls", llm.calls)
	}
}

func TestEvaluateFaithfulnessFailsClosed(t *testing.T) {
	for _, reply := range []string{"no", "I cannot tell", ""} {
		llm := &scriptedLLM{replies: []string{reply}}
		chain := NewChain(llm)

		eval, err := chain.Evaluate(context.Background(), "answer", "question", "context")
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", reply, err)
		}
		if eval.Accepted {
			t.Fatalf("reply %q should fail closed", reply)
		}
		if eval.FailingCheck != CheckFaithfulness {
			t.Fatalf("expected faithfulness failure, got %q", eval.FailingCheck)
		}
		if llm.calls != 1 {
			t.Fatalf("expected short-circuit after first check, got %d calls", llm.calls)
		}
	}
}

func TestEvaluateToxicityFailsClosed(t *testing.T) {
	// "unsafe" contains the substring "safe"; only the exact token passes.
	for _, reply := range []string{"unsafe", "mostly safe", "Safe."} {
		llm := &scriptedLLM{replies: []string{"yes", reply, `{"pass": true, "reason": ""}`}}
		chain := NewChain(llm)

		eval, err := chain.Evaluate(context.Background(), "answer", "question", "context")
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", reply, err)
		}
		if reply == "Safe." {
			if !eval.Accepted {
				t.Fatalf("trimmed token %q should pass, failed at %q", reply, eval.FailingCheck)
			}
			continue
		}
		if eval.Accepted || eval.FailingCheck != CheckToxicity {
			t.Fatalf("reply %q: expected toxicity failure, got %+v", reply, eval)
		}
		if llm.calls != 2 {
			t.Fatalf("expected no grading call after toxicity failure, got %d calls", llm.calls)
		}
	}
}

func TestEvaluateGradingRejection(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"yes", "safe", "```json\n{\"pass\": false, \"reason\": \"incomplete\"}\n```"}}
	chain := NewChain(llm)

	eval, err := chain.Evaluate(context.Background(), "answer", "question", "context")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.Accepted || eval.FailingCheck != CheckGrading {
		t.Fatalf("expected grading failure, got %+v", eval)
	}
	if eval.Reason != "incomplete" {
		t.Fatalf("expected grader reason to surface, got %q", eval.Reason)
	}
}

func TestEvaluateGradingMalformedEscalates(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"yes", "safe", "I would rate this highly."}}
	chain := NewChain(llm)

	_, err := chain.Evaluate(context.Background(), "answer", "question", "context")
	if err == nil {
		t.Fatal("expected error for unparseable grading output")
	}
	if !errors.Is(err, docqaerrors.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestEvaluateUpstreamErrorPropagates(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model unavailable")}
	chain := NewChain(llm)

	_, err := chain.Evaluate(context.Background(), "answer", "question", "context")
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected upstream error to propagate, got %v", err)
	}
}

func TestChecksSeeTheirInputs(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"yes", "safe", `{"pass": true, "reason": ""}`}}
	chain := NewChain(llm)

	if _, err := chain.Evaluate(context.Background(), "the-answer", "the-question", "the-context"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !strings.Contains(llm.prompts[0], "the-context") || !strings.Contains(llm.prompts[0], "the-answer") {
		t.Fatal("faithfulness prompt missing answer or context")
	}
	if !strings.Contains(llm.prompts[1], "the-answer") {
		t.Fatal("toxicity prompt missing answer")
	}
	if !strings.Contains(llm.prompts[2], "the-question") {
		t.Fatal("grading prompt missing question")
	}
}
