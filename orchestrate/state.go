package orchestrate

// Step identifies one unit of agent work. The vocabulary is closed;
// dispatch is always an explicit switch over these constants.
type Step string

const (
	StepRetriever Step = "retriever"
	StepAnswer    Step = "answer"
	StepSummary   Step = "summary"
	StepCompare   Step = "compare"
	StepWebSearch Step = "websearch"
	StepFallback  Step = "fallback"
)

// ParseStep maps a raw step name onto the closed vocabulary.
func ParseStep(name string) (Step, bool) {
	switch Step(name) {
	case StepRetriever, StepAnswer, StepSummary, StepCompare, StepWebSearch, StepFallback:
		return Step(name), true
	}
	return "", false
}

// StepOutput is one labeled result in the execution trace. Immutable once
// appended; the trace order is what the combiner reads.
type StepOutput struct {
	Agent   Step
	Content string
}

// State is the per-request conversation record. It is created once per
// request, owned exclusively by the executor, and never shared across
// requests.
type State struct {
	Question       string
	Context        string
	Plan           []Step
	StepIndex      int
	NextStep       Step
	ForceWebSearch bool
	Outputs        []StepOutput
}

// Update is the partial state change a step returns. Nil fields mean
// "leave unchanged".
type Update struct {
	Context        *string
	Output         *StepOutput
	NextStep       *Step
	ForceWebSearch *bool
}

// apply merges an update into the state. Merge policy per field: Outputs is
// append-only, Context, NextStep and ForceWebSearch overwrite. StepIndex is
// advanced only by the executor's transition rule, never by a step.
func (s *State) apply(u *Update) {
	if u == nil {
		return
	}
	if u.Context != nil {
		s.Context = *u.Context
	}
	if u.Output != nil {
		s.Outputs = append(s.Outputs, *u.Output)
	}
	if u.NextStep != nil {
		s.NextStep = *u.NextStep
	}
	if u.ForceWebSearch != nil {
		s.ForceWebSearch = *u.ForceWebSearch
	}
}

func stringPtr(s string) *string { return &s }
func stepPtr(s Step) *Step       { return &s }
func boolPtr(b bool) *bool       { return &b }
