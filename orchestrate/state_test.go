package orchestrate

import "testing"

func TestApplyMergePolicies(t *testing.T) {
	s := &State{Question: "q", Context: "old"}

	s.apply(&Update{Output: &StepOutput{Agent: StepSummary, Content: "one"}})
	s.apply(&Update{
		Context: stringPtr("new"),
		Output:  &StepOutput{Agent: StepAnswer, Content: "two"},
	})

	if s.Context != "new" {
		t.Fatalf("context should overwrite, got %q", s.Context)
	}
	if len(s.Outputs) != 2 || s.Outputs[0].Content != "one" || s.Outputs[1].Content != "two" {
		t.Fatalf("outputs should append in order, got %v", s.Outputs)
	}
}

func TestApplyNilFieldsLeaveStateUntouched(t *testing.T) {
	s := &State{Context: "kept", NextStep: StepFallback, ForceWebSearch: true}
	s.apply(&Update{})
	s.apply(nil)

	if s.Context != "kept" || s.NextStep != StepFallback || !s.ForceWebSearch {
		t.Fatalf("empty update must not reset fields, got %+v", s)
	}
}

func TestApplyOverwritesFlags(t *testing.T) {
	s := &State{}
	s.apply(&Update{ForceWebSearch: boolPtr(true), NextStep: stepPtr(StepFallback)})
	if !s.ForceWebSearch || s.NextStep != StepFallback {
		t.Fatalf("flags not applied: %+v", s)
	}
	s.apply(&Update{ForceWebSearch: boolPtr(false)})
	if s.ForceWebSearch {
		t.Fatal("ForceWebSearch should overwrite to false")
	}
}
