// Package cmd is the transport independent command core. Commands only know
// their name, description and how to run; the Discord layer decides how they
// are registered and what context they receive.
package cmd

import "context"

// Invocation is handed to a command on every run. Data holds the caller's
// context, the Discord layer stores its interaction context there.
type Invocation struct {
	Args []string
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Middleware decorates a command, usually by wrapping its Run.
type Middleware func(Command) Command

// Apply wraps c with mws in order, so the last middleware runs first.
func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}

// Unwrappable is implemented by decorated commands.
type Unwrappable interface {
	Command
	Unwrap() Command
}

type wrapped struct {
	inner Command
	run   func(ctx context.Context, inv *Invocation) error
}

func (w *wrapped) Name() string                                   { return w.inner.Name() }
func (w *wrapped) Description() string                            { return w.inner.Description() }
func (w *wrapped) Run(ctx context.Context, inv *Invocation) error { return w.run(ctx, inv) }
func (w *wrapped) Unwrap() Command                                { return w.inner }

// Wrap keeps the identity of c and replaces its Run.
func Wrap(c Command, run func(ctx context.Context, inv *Invocation) error) Command {
	return &wrapped{inner: c, run: run}
}

// Root strips every decoration from c.
func Root(c Command) Command {
	for {
		u, ok := c.(Unwrappable)
		if !ok {
			return c
		}
		c = u.Unwrap()
	}
}
