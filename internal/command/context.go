package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"unicode"
	"unicode/utf8"

	"ddmbot/internal/config"
	"ddmbot/internal/database"
	"ddmbot/internal/music/player"
	"ddmbot/internal/music/resolver"
	"ddmbot/internal/music/sources"
	"ddmbot/internal/music/users"
	"ddmbot/internal/storage"
	"ddmbot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// Player is the part of the player the commands control.
type Player interface {
	Snapshot() player.Snapshot
	SetStop(ctx context.Context)
	SetDJMode()
	SetStream(url, title string) error
	SetStreamTitle(ctx context.Context, title string) error
	SkipVote(ctx context.Context, userID string) error
	SkipUnvote(ctx context.Context, userID string) error
	ForceSkip() error
	Volume() float64
	SetVolume(v float64)
	ReprintStatus(ctx context.Context)
}

// Resolver turns links into tracks.
type Resolver interface {
	Resolve(ctx context.Context, input string) ([]database.Track, error)
}

// Lifecycle ends the current bot run.
type Lifecycle interface {
	Restart()
	Shutdown()
}

// Whisperer sends private messages.
type Whisperer interface {
	Whisper(ctx context.Context, userID, text string) error
}

// Deps are the services commands work with during one bot run.
type Deps struct {
	Config    *config.Config
	GuildID   string
	DB        *database.DB
	Storage   *storage.Storage
	Users     *users.Manager
	Player    Player
	Resolver  Resolver
	Lifecycle Lifecycle
	Whisperer Whisperer
	Registry  *cmd.Registry
}

// SlashInteractionContext is what a slash command runs with.
type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Deps    *Deps
	Reply   Responder
}

// UserID returns the ID of the invoking user.
func (c *SlashInteractionContext) UserID() string {
	if u := c.User(); u != nil {
		return u.ID
	}
	return ""
}

func (c *SlashInteractionContext) User() *discordgo.User {
	if c.Event.Member != nil && c.Event.Member.User != nil {
		return c.Event.Member.User
	}
	return c.Event.User
}

// IsOperator reports whether the invoking member holds the operator role.
func (c *SlashInteractionContext) IsOperator() bool {
	if c.Event.Member == nil || c.Deps == nil || c.Deps.Config == nil {
		return false
	}
	return slices.Contains(c.Event.Member.Roles, c.Deps.Config.Discord.OperatorRole)
}

// Subcommand returns the invoked subcommand and its options. Commands without
// subcommands return an empty name and the top level options.
func (c *SlashInteractionContext) Subcommand() (string, Options) {
	data := c.Event.ApplicationCommandData()
	if len(data.Options) == 1 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		sub := data.Options[0]
		return sub.Name, NewOptions(sub.Options)
	}
	return "", NewOptions(data.Options)
}

// Whisper answers the invoking user only.
func (c *SlashInteractionContext) Whisper(text string) error {
	return c.Reply.Respond(c.Event, text, true)
}

// Whisperf is Whisper with formatting.
func (c *SlashInteractionContext) Whisperf(format string, args ...any) error {
	return c.Whisper(fmt.Sprintf(format, args...))
}

// Say answers publicly.
func (c *SlashInteractionContext) Say(text string) error {
	return c.Reply.Respond(c.Event, text, false)
}

// Fail reports err to the invoking user. Errors meant for users are shown
// as they are; anything else is returned to the dispatcher.
func (c *SlashInteractionContext) Fail(err error) error {
	if msg, ok := UserMessage(err); ok {
		return c.Whisper(msg)
	}
	return err
}

// Options indexes interaction options by name.
type Options map[string]*discordgo.ApplicationCommandInteractionDataOption

func NewOptions(list []*discordgo.ApplicationCommandInteractionDataOption) Options {
	out := make(Options, len(list))
	for _, o := range list {
		out[o.Name] = o
	}
	return out
}

func (o Options) String(name string) string {
	if opt, ok := o[name]; ok {
		if v, ok := opt.Value.(string); ok {
			return v
		}
	}
	return ""
}

func (o Options) Int(name string, def int64) int64 {
	if opt, ok := o[name]; ok {
		if v, ok := opt.Value.(float64); ok {
			return int64(v)
		}
	}
	return def
}

func (o Options) Bool(name string) bool {
	if opt, ok := o[name]; ok {
		if v, ok := opt.Value.(bool); ok {
			return v
		}
	}
	return false
}

func (o Options) Has(name string) bool {
	_, ok := o[name]
	return ok
}

// User returns the ID of a user option.
func (o Options) User(name string) string {
	return o.String(name)
}

// UserMessage tells whether err is meant to be shown to users and returns its
// text with the first letter capitalised.
func UserMessage(err error) (string, bool) {
	var (
		notFound  *database.PlaylistNotFoundError
		duplicate *database.DuplicatePlaylistError
		skip      *database.SongSkipError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &duplicate), errors.As(err, &skip):
	case errors.Is(err, player.ErrTryAgain),
		errors.Is(err, player.ErrVoteNotListening),
		errors.Is(err, player.ErrVoteNotPlaying),
		errors.Is(err, player.ErrSkipNotPlaying),
		errors.Is(err, player.ErrNotVoted),
		errors.Is(err, player.ErrTitleNotStreaming),
		errors.Is(err, player.ErrStreamURLRequired),
		errors.Is(err, users.ErrNotListening),
		errors.Is(err, users.ErrAlreadyInQueue),
		errors.Is(err, users.ErrNotInQueue),
		errors.Is(err, users.ErrUserNotInQueue),
		errors.Is(err, sources.ErrUnsupportedURL),
		errors.Is(err, resolver.ErrStreamURL),
		errors.Is(err, resolver.ErrEmptyPlaylist),
		errors.Is(err, resolver.ErrSearchNotFound):
	case errors.Is(err, database.ErrNoActivePlaylist):
		return "You don't have an active playlist", true
	case errors.Is(err, database.ErrInvalidPlaylistName):
		return "Playlist name may contain only letters, digits, dashes and underscores (up to 32 characters)", true
	case errors.Is(err, database.ErrSongNotFound):
		return "Song with the given ID was not found", true
	case errors.Is(err, database.ErrUserNotFound):
		return "The user has not interacted with the bot yet", true
	case errors.Is(err, database.ErrMergeCycle):
		return "These songs are already merged", true
	default:
		return "", false
	}
	return capitalize(err.Error()), true
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
