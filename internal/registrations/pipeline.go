package registrations

import "context"

// handlerFunc is the execute stage of a command. It performs the mutation and
// raises the command's domain events before its transaction commits, so event
// emission shares the atomic step.
type handlerFunc func(ctx context.Context) error

// stage wraps the next step of the command pipeline.
type stage func(next handlerFunc) handlerFunc

// pipeline runs a handler through its stages in order. Commands assemble
// validate and authorize stages in front of the plain handler.
type pipeline struct {
	stages []stage
}

func newPipeline(stages ...stage) *pipeline {
	return &pipeline{stages: stages}
}

func (p *pipeline) run(ctx context.Context, handler handlerFunc) error {
	wrapped := handler
	for i := len(p.stages) - 1; i >= 0; i-- {
		wrapped = p.stages[i](wrapped)
	}
	return wrapped(ctx)
}

// validateStage rejects malformed input before the handler runs.
func validateStage(check func(ctx context.Context) error) stage {
	return guardStage(check)
}

// authorizeStage rejects callers that may not run the command.
func authorizeStage(check func(ctx context.Context) error) stage {
	return guardStage(check)
}

func guardStage(check func(ctx context.Context) error) stage {
	return func(next handlerFunc) handlerFunc {
		return func(ctx context.Context) error {
			if err := check(ctx); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
