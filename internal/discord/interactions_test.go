package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddmbot/internal/command/commandtest"
)

func dispatchBot(t *testing.T, env *commandtest.Env) *Bot {
	t.Helper()
	reg, err := NewRegistry()
	require.NoError(t, err)
	return &Bot{
		opts:     Options{Player: env.Player},
		registry: reg,
		deps:     env.Deps,
		log:      zerolog.Nop(),
	}
}

func TestDispatchReprintsStatusAfterCommand(t *testing.T) {
	env := commandtest.NewEnv(t)
	b := dispatchBot(t, env)

	sc, rec := env.Context(commandtest.Invoke{Command: "skip", UserID: "5"})
	b.dispatch(context.Background(), sc)

	assert.Equal(t, []string{"skip:5", "reprint"}, env.Player.Calls)
	assert.Equal(t, "**Your skip vote was counted**", rec.Last().Text)
}

func TestDispatchReportsFailuresAndStillReprints(t *testing.T) {
	env := commandtest.NewEnv(t)
	env.Player.Err = errors.New("decoder crashed")
	b := dispatchBot(t, env)

	sc, rec := env.Context(commandtest.Invoke{Command: "skip", UserID: "5"})
	b.dispatch(context.Background(), sc)

	assert.Equal(t, []string{"skip:5", "reprint"}, env.Player.Calls)
	last := rec.Last()
	assert.Equal(t, "Something went wrong while running the command", last.Text)
	assert.True(t, last.Ephemeral)
}

func TestDispatchIgnoresUnknownCommands(t *testing.T) {
	env := commandtest.NewEnv(t)
	b := dispatchBot(t, env)

	sc, rec := env.Context(commandtest.Invoke{Command: "nope", UserID: "5"})
	b.dispatch(context.Background(), sc)

	assert.Empty(t, env.Player.Calls)
	assert.Empty(t, rec.Replies)
}

func TestMarkInitializedClosesOnce(t *testing.T) {
	ready := make(chan struct{})
	b := &Bot{opts: Options{Initialized: ready}}

	b.markInitialized()
	b.markInitialized()

	assert.True(t, b.initialized.Load())
	select {
	case <-ready:
	default:
		t.Fatal("initialized channel still open")
	}

	// without a channel only the flag is set
	plain := &Bot{}
	plain.markInitialized()
	assert.True(t, plain.initialized.Load())
}
