package discord

import (
	"context"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"ddmbot/internal/config"
	"ddmbot/internal/logging"
	"ddmbot/pkg/retrylimit"
)

// Notifier sends the bot's messages through the REST API. Every call is
// paced by an adaptive limiter and retried on rate limits and server errors.
type Notifier struct {
	s       *discordgo.Session
	cfg     config.Discord
	lim     *retrylimit.AdaptiveLimiter
	guildID atomic.Value
	log     zerolog.Logger
}

func NewNotifier(s *discordgo.Session, cfg config.Discord) *Notifier {
	n := &Notifier{
		s:   s,
		cfg: cfg,
		lim: retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
		log: logging.Component("notifier"),
	}
	n.guildID.Store("")
	return n
}

func (n *Notifier) setGuild(id string) { n.guildID.Store(id) }
func (n *Notifier) guild() string      { return n.guildID.Load().(string) }

func (n *Notifier) do(ctx context.Context, fn func() error) error {
	return retrylimit.WithRetry(ctx, fn, n.lim)
}

func (n *Notifier) send(ctx context.Context, channelID, text string) (*discordgo.Message, error) {
	var msg *discordgo.Message
	err := n.do(ctx, func() error {
		var err error
		msg, err = n.s.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
		return err
	})
	return msg, err
}

// Message posts to the text channel.
func (n *Notifier) Message(ctx context.Context, text string) error {
	_, err := n.send(ctx, n.cfg.TextChannel, text)
	return err
}

// Log posts to the log channel.
func (n *Notifier) Log(ctx context.Context, text string) error {
	_, err := n.send(ctx, n.cfg.LogChannel, text)
	return err
}

// Whisper sends a direct message.
func (n *Notifier) Whisper(ctx context.Context, userID, text string) error {
	var ch *discordgo.Channel
	err := n.do(ctx, func() error {
		var err error
		ch, err = n.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		n.log.Error().Err(err).Str("user", userID).Msg("Cannot whisper user")
		return err
	}
	_, err = n.send(ctx, ch.ID, text)
	return err
}

// SendStatus posts a new status message and returns its ID.
func (n *Notifier) SendStatus(ctx context.Context, text string) (string, error) {
	msg, err := n.send(ctx, n.cfg.TextChannel, text)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// EditStatus replaces the content of a status message.
func (n *Notifier) EditStatus(ctx context.Context, messageID, text string) error {
	return n.do(ctx, func() error {
		_, err := n.s.ChannelMessageEdit(n.cfg.TextChannel, messageID, text, discordgo.WithContext(ctx))
		return err
	})
}

// SetPresence shows game as the "Playing" activity; empty clears it.
func (n *Notifier) SetPresence(_ context.Context, game string) error {
	return n.s.UpdateGameStatus(0, game)
}

// DisplayNames resolves user IDs to their server nicknames from the state cache.
func (n *Notifier) DisplayNames(ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	guildID := n.guild()
	for _, id := range ids {
		if guildID == "" || n.s.State == nil {
			continue
		}
		m, err := n.s.State.Member(guildID, id)
		if err != nil || m == nil {
			continue
		}
		out[id] = displayName(m)
	}
	return out
}

func displayName(m *discordgo.Member) string {
	switch {
	case m.Nick != "":
		return m.Nick
	case m.User == nil:
		return ""
	case m.User.GlobalName != "":
		return m.User.GlobalName
	}
	return m.User.Username
}

// voiceChannelOf returns the voice channel the user currently sits in.
func (n *Notifier) voiceChannelOf(userID string) string {
	guildID := n.guild()
	if guildID == "" || n.s.State == nil {
		return ""
	}
	vs, err := n.s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

func (n *Notifier) move(ctx context.Context, userID, from, to string) {
	if n.cfg.DirectChannel == "" || n.guild() == "" || n.voiceChannelOf(userID) != from {
		return
	}
	err := n.do(ctx, func() error {
		return n.s.GuildMemberMove(n.guild(), userID, &to, discordgo.WithContext(ctx))
	})
	if err != nil {
		n.log.Warn().Err(err).Str("user", userID).Str("to", to).Msg("Failed to move member")
	}
}

// MoveToDirect moves a user who started the direct stream out of the voice
// channel so they don't hear the music twice.
func (n *Notifier) MoveToDirect(ctx context.Context, userID string) {
	n.move(ctx, userID, n.cfg.VoiceChannel, n.cfg.DirectChannel)
}

// MoveBack returns a user from the direct channel once their stream ends.
func (n *Notifier) MoveBack(ctx context.Context, userID string) {
	n.move(ctx, userID, n.cfg.DirectChannel, n.cfg.VoiceChannel)
}
