package governance

import (
	"context"
	"fmt"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request contains the context of a model-emitted tool call to be evaluated
// before execution.
type Request struct {
	Tool      string
	Arguments string
	Step      string
	SessionID string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates tool calls against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// StepPolicyEngine restricts tool calls to the toolset registered for the
// active step and rejects oversized argument payloads.
type StepPolicyEngine struct {
	StepTools   map[string]map[string]bool
	MaxArgBytes int
}

func NewStepPolicyEngine() *StepPolicyEngine {
	return &StepPolicyEngine{
		StepTools:   make(map[string]map[string]bool),
		MaxArgBytes: 16 * 1024,
	}
}

// AllowTool registers a tool as callable during a step.
func (e *StepPolicyEngine) AllowTool(step, tool string) {
	if e.StepTools[step] == nil {
		e.StepTools[step] = make(map[string]bool)
	}
	e.StepTools[step][tool] = true
}

func (e *StepPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.MaxArgBytes > 0 && len(req.Arguments) > e.MaxArgBytes {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("arguments exceed %d bytes", e.MaxArgBytes),
		}, nil
	}

	allowed := e.StepTools[req.Step]
	if allowed == nil || !allowed[req.Tool] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("tool '%s' is not part of the %s step's toolset", req.Tool, req.Step),
		}, nil
	}

	return Result{
		Effect: EffectAllow,
		Reason: "approved by step policy",
	}, nil
}
