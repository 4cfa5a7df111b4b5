// Package commandtest provides fakes for exercising slash commands without a
// Discord session.
package commandtest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"ddmbot/internal/command"
	"ddmbot/internal/config"
	"ddmbot/internal/database"
	"ddmbot/internal/music/player"
	"ddmbot/internal/music/users"
	"ddmbot/internal/storage"
)

const (
	GuildID      = "guild"
	OperatorRole = "operators"
)

// Reply is one recorded answer.
type Reply struct {
	Text      string
	Embed     *discordgo.MessageEmbed
	Ephemeral bool
	Deferred  bool
	Followup  bool
}

// Recorder is a command.Responder that keeps every answer.
type Recorder struct {
	mu      sync.Mutex
	Replies []Reply
}

func (r *Recorder) add(rep Reply) error {
	r.mu.Lock()
	r.Replies = append(r.Replies, rep)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Respond(_ *discordgo.InteractionCreate, text string, ephemeral bool) error {
	return r.add(Reply{Text: text, Ephemeral: ephemeral})
}

func (r *Recorder) RespondEmbed(_ *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) error {
	return r.add(Reply{Embed: embed, Ephemeral: ephemeral})
}

func (r *Recorder) Defer(_ *discordgo.InteractionCreate, ephemeral bool) error {
	return r.add(Reply{Deferred: true, Ephemeral: ephemeral})
}

func (r *Recorder) Followup(_ *discordgo.InteractionCreate, text string, ephemeral bool) error {
	return r.add(Reply{Text: text, Ephemeral: ephemeral, Followup: true})
}

// Last returns the most recent answer.
func (r *Recorder) Last() Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Replies) == 0 {
		return Reply{}
	}
	return r.Replies[len(r.Replies)-1]
}

// Player records the controls used by commands.
type Player struct {
	mu     sync.Mutex
	State  player.Snapshot
	Calls  []string
	Err    error
	volume float64
	OnVote func(userID string) error
}

func (p *Player) call(name string) {
	p.mu.Lock()
	p.Calls = append(p.Calls, name)
	p.mu.Unlock()
}

func (p *Player) Snapshot() player.Snapshot     { return p.State }
func (p *Player) SetStop(context.Context)       { p.call("stop") }
func (p *Player) SetDJMode()                    { p.call("djmode") }
func (p *Player) ReprintStatus(context.Context) { p.call("reprint") }
func (p *Player) BumpProtectionCounter()        { p.call("bump") }
func (p *Player) Volume() float64               { return p.volume }
func (p *Player) SetVolume(v float64)           { p.volume = v; p.call("volume") }
func (p *Player) ForceSkip() error              { p.call("forceskip"); return p.Err }
func (p *Player) SetStream(url, _ string) error { p.call("stream:" + url); return p.Err }
func (p *Player) SetStreamTitle(_ context.Context, t string) error {
	p.call("title:" + t)
	return p.Err
}

func (p *Player) SkipVote(_ context.Context, userID string) error {
	p.call("skip:" + userID)
	if p.OnVote != nil {
		return p.OnVote(userID)
	}
	return p.Err
}

func (p *Player) SkipUnvote(_ context.Context, userID string) error {
	p.call("unskip:" + userID)
	return p.Err
}

// Resolver returns fixed tracks.
type Resolver struct {
	Tracks []database.Track
	Err    error
}

func (r *Resolver) Resolve(context.Context, string) ([]database.Track, error) {
	return r.Tracks, r.Err
}

// Lifecycle counts restart and shutdown requests.
type Lifecycle struct {
	Restarts, Shutdowns int
}

func (l *Lifecycle) Restart()  { l.Restarts++ }
func (l *Lifecycle) Shutdown() { l.Shutdowns++ }

// Whisperer records private messages.
type Whisperer struct {
	mu       sync.Mutex
	Messages map[string][]string
}

func (w *Whisperer) Whisper(_ context.Context, userID, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Messages == nil {
		w.Messages = make(map[string][]string)
	}
	w.Messages[userID] = append(w.Messages[userID], text)
	return nil
}

// Env bundles the dependencies of one test.
type Env struct {
	Deps      *command.Deps
	Player    *Player
	Resolver  *Resolver
	Lifecycle *Lifecycle
	Whisperer *Whisperer
}

// NewEnv opens a temporary database and storage and wires them with fakes.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()

	db, err := database.Open(context.Background(), database.Options{
		Path:            filepath.Join(dir, "ddmbot.db"),
		CreditCap:       3,
		CreditRenew:     24 * time.Hour,
		SongMaxDuration: 10 * time.Minute,
		APSkipRatio:     0.5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st, err := storage.New(filepath.Join(dir, "storage.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{}
	cfg.Discord.OperatorRole = OperatorRole
	cfg.Stream.PublicURL = "http://radio.example"
	cfg.Bot.WelcomeMessage = "Welcome! Your stream: {stream_url}"

	env := &Env{
		Player:    &Player{volume: 1},
		Resolver:  &Resolver{},
		Lifecycle: &Lifecycle{},
		Whisperer: &Whisperer{},
	}
	env.Deps = &command.Deps{
		Config:    cfg,
		GuildID:   GuildID,
		DB:        db,
		Storage:   st,
		Users:     users.New(users.Options{IdleTimeout: time.Hour, IdleGrace: time.Minute, Whisperer: env.Whisperer}),
		Player:    env.Player,
		Resolver:  env.Resolver,
		Lifecycle: env.Lifecycle,
		Whisperer: env.Whisperer,
	}
	return env
}

// Opt builds an interaction option.
func Opt(name string, value any) *discordgo.ApplicationCommandInteractionDataOption {
	opt := &discordgo.ApplicationCommandInteractionDataOption{Name: name, Value: value}
	switch value.(type) {
	case string:
		opt.Type = discordgo.ApplicationCommandOptionString
	case bool:
		opt.Type = discordgo.ApplicationCommandOptionBoolean
	case int:
		opt.Type = discordgo.ApplicationCommandOptionInteger
		opt.Value = float64(value.(int))
	}
	return opt
}

// Invoke describes a simulated slash command invocation.
type Invoke struct {
	Command    string
	Subcommand string
	Options    []*discordgo.ApplicationCommandInteractionDataOption
	UserID     string
	Operator   bool
}

// Context builds the interaction context for inv and the recorder its answers go to.
func (e *Env) Context(inv Invoke) (*command.SlashInteractionContext, *Recorder) {
	opts := inv.Options
	if inv.Subcommand != "" {
		opts = []*discordgo.ApplicationCommandInteractionDataOption{{
			Name:    inv.Subcommand,
			Type:    discordgo.ApplicationCommandOptionSubCommand,
			Options: inv.Options,
		}}
	}
	member := &discordgo.Member{User: &discordgo.User{ID: inv.UserID, Username: "user" + inv.UserID}}
	if inv.Operator {
		member.Roles = []string{OperatorRole}
	}
	event := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: GuildID,
		Member:  member,
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    inv.Command,
			Options: opts,
		},
	}}
	rec := &Recorder{}
	return &command.SlashInteractionContext{Event: event, Deps: e.Deps, Reply: rec}, rec
}
