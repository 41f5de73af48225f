package engine

import (
	"log/slog"
)

// runContext is the capability handed to each node execute: variable access
// through the current branch scope, and the run's logger. It is bound to one
// frame so loop iterations and catch branches see their scoped bindings.
type runContext struct {
	run   *run
	frame *frame
}

func (c *runContext) RunID() string {
	return c.run.id
}

func (c *runContext) WorkflowID() string {
	return c.run.graph.Workflow.ID
}

func (c *runContext) Variable(name string) (any, bool) {
	if v, ok := c.frame.scopeVar(name); ok {
		return v, true
	}

	return c.run.vars.Get(name)
}

func (c *runContext) SetVariable(name string, value any) {
	c.run.vars.Set(name, value)
}

func (c *runContext) Variables() map[string]any {
	out := c.run.vars.Snapshot()

	// Scoped bindings shadow store values, innermost frame last so it wins.
	var frames []*frame
	for fr := c.frame; fr != nil; fr = fr.parent {
		frames = append(frames, fr)
	}

	for i := len(frames) - 1; i >= 0; i-- {
		for k, v := range frames[i].scope {
			out[k] = v
		}
	}

	return out
}

func (c *runContext) RecordRecovered(err error) {
	c.run.recordError(err, true)
}

func (c *runContext) Logger() *slog.Logger {
	return c.run.logger
}
