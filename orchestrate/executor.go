package orchestrate

import (
	"context"
	"log/slog"

	"github.com/sweetpotato0/docqa/pkg/logging"
	"github.com/sweetpotato0/docqa/pkg/telemetry"
)

// Executor drives one request through plan → step loop → combiner.
//
// Transition rule, evaluated once per iteration: a pending reroute
// (NextStep) wins, then a forced web search, then plan exhaustion to the
// combiner, else the next planned step. A forced web search interrupts the
// plan; once it has run, control jumps straight to the combiner rather than
// resuming the interrupted plan. Fallback likewise transitions directly to
// the combiner. The finite plan and monotonic step index bound execution at
// len(plan)+2 dispatches.
type Executor struct {
	planner  *Planner
	steps    *Steps
	combiner *Combiner
	logger   *slog.Logger
}

// NewExecutor wires the state machine to its collaborators.
func NewExecutor(planner *Planner, steps *Steps, combiner *Combiner) *Executor {
	return &Executor{
		planner:  planner,
		steps:    steps,
		combiner: combiner,
		logger:   logging.WithComponent("executor"),
	}
}

// Run answers one question. Any unrecovered upstream failure aborts the
// request; no partial answer is ever returned.
func (e *Executor) Run(ctx context.Context, question string) (_ string, err error) {
	ctx, span := telemetry.Tracer("orchestrate").Start(ctx, "executor.run")
	defer func() { telemetry.End(span, err) }()

	plan, err := e.planner.Plan(ctx, question)
	if err != nil {
		return "", err
	}
	e.logger.Info("executing plan", "steps", plan)

	state := &State{Question: question, Plan: plan}
	maxDispatches := len(plan) + 2

	for dispatches := 0; dispatches < maxDispatches; dispatches++ {
		step, done := e.next(state)
		if done {
			break
		}

		forced := state.ForceWebSearch && step == StepWebSearch
		update, err := e.steps.Run(ctx, step, state)
		if err != nil {
			return "", err
		}
		state.apply(update)

		if forced {
			// The interrupt consumed the rest of the plan.
			state.ForceWebSearch = false
			state.StepIndex = len(state.Plan)
		}
		if step == StepFallback {
			break
		}
	}

	return e.combiner.Combine(ctx, question, state.Outputs)
}

// next picks the step to dispatch, or reports that the loop is done and the
// combiner takes over.
func (e *Executor) next(state *State) (Step, bool) {
	if state.NextStep != "" {
		step := state.NextStep
		state.NextStep = ""
		return step, false
	}
	if state.ForceWebSearch {
		return StepWebSearch, false
	}
	if state.StepIndex >= len(state.Plan) {
		return "", true
	}
	step := state.Plan[state.StepIndex]
	state.StepIndex++
	return step, false
}
