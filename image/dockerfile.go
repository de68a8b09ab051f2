package image

import (
	"fmt"
	"strings"
)

// Plan is an ordered list of build steps over one spec.
type Plan struct {
	Spec  Spec
	Steps []Step
}

// DefaultPlan returns the mandatory sequence for the given spec.
func DefaultPlan(spec Spec) Plan {
	return Plan{Spec: spec, Steps: DefaultSteps()}
}

// Execute runs the plan from the empty state. The first failing step aborts
// with its name attached; there is no partial-success mode.
func (p Plan) Execute() (State, []string, error) {
	if err := p.Spec.Validate(); err != nil {
		return State{}, nil, fmt.Errorf("invalid image spec: %w", err)
	}

	st := NewState()
	var directives []string
	for _, step := range p.Steps {
		next, emitted, err := step.Apply(st, p.Spec)
		if err != nil {
			return st, nil, fmt.Errorf("step %s: %w", step.Name, err)
		}
		st = next
		directives = append(directives, emitted...)
	}
	return st, directives, nil
}

// Render executes the plan and formats the emitted directives as a
// Dockerfile. Output is deterministic: equal specs render byte-identical
// text.
func (p Plan) Render() (string, error) {
	_, directives, err := p.Execute()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("# Sandbox image definition generated by boxbuild. Do not edit.\n")
	for _, d := range directives {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Render is the shorthand for rendering the default plan of a spec.
func Render(spec Spec) (string, error) {
	return DefaultPlan(spec).Render()
}
