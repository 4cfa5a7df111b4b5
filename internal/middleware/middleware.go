package middleware

import "ddmbot/pkg/cmd"

// Default is the chain every slash command is registered with. The command
// logger is outermost so rejected invocations are recorded too.
func Default() []cmd.Middleware {
	return []cmd.Middleware{
		WithOperatorCheck(),
		WithInteractionCheck(),
		WithGuildOnly(),
		WithCommandLogger(),
	}
}
