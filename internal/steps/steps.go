// Package steps runs ordered lists of pipeline steps with two failure
// policies: optional steps are executed and independently swallowed,
// mandatory steps abort the list at the first failure.
package steps

import (
	"context"
	"fmt"
	"log/slog"
)

// Step is a named unit of work.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Outcome records the result of one optional step.
type Outcome struct {
	Name string
	Err  error
}

// OK reports whether the step succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Outcomes is the ordered result of RunOptional.
type Outcomes []Outcome

// Succeeded reports whether the named step ran and succeeded.
func (oc Outcomes) Succeeded(name string) bool {
	for _, o := range oc {
		if o.Name == name {
			return o.Err == nil
		}
	}
	return false
}

// Failed returns the outcomes that carry an error.
func (oc Outcomes) Failed() Outcomes {
	var out Outcomes
	for _, o := range oc {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// RunOptional executes every step in order. A failing or panicking step is
// logged at warn level and the next step still runs. Context cancellation
// stops the list; remaining steps are reported with the context error.
func RunOptional(ctx context.Context, logger *slog.Logger, list ...Step) Outcomes {
	if logger == nil {
		logger = slog.Default()
	}
	out := make(Outcomes, 0, len(list))
	for _, s := range list {
		if err := ctx.Err(); err != nil {
			out = append(out, Outcome{Name: s.Name, Err: err})
			continue
		}
		err := runGuarded(ctx, s)
		if err != nil {
			logger.Warn("steps: optional step failed", "step", s.Name, "error", err)
		}
		out = append(out, Outcome{Name: s.Name, Err: err})
	}
	return out
}

// RunMandatory executes steps in order and returns the first failure wrapped
// with the step name. Later steps do not run.
func RunMandatory(ctx context.Context, list ...Step) error {
	for _, s := range list {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		if err := runGuarded(ctx, s); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	return nil
}

func runGuarded(ctx context.Context, s Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if s.Run == nil {
		return nil
	}
	return s.Run(ctx)
}
