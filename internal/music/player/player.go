// Package player runs the playback state machine: DJ rotation, the automatic
// playlist, stream mode and skip voting.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ddmbot/internal/database"
	"ddmbot/internal/logging"
	"ddmbot/internal/music/resolver"
	"ddmbot/internal/music/stream"
	"ddmbot/internal/music/users"
)

type State int

const (
	Stopped State = iota
	DJWaiting
	DJCooldown
	DJPlaying
	Streaming
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case DJWaiting:
		return "DJ_WAITING"
	case DJCooldown:
		return "DJ_COOLDOWN"
	case DJPlaying:
		return "DJ_PLAYING"
	case Streaming:
		return "STREAMING"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseInitialState maps the configured initial state to the first state the
// player enters.
func ParseInitialState(s string) (State, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "djmode":
		return DJPlaying, true
	case "stopped":
		return Stopped, true
	}
	return Stopped, false
}

var (
	ErrTryAgain           = errors.New("please try again")
	ErrVoteNotListening   = errors.New("You must be listening to vote")
	ErrVoteNotPlaying     = errors.New("You can vote to skip only when playing a song in the DJ mode")
	ErrSkipNotPlaying     = errors.New("Skip can be performed only when playing a song in the DJ mode")
	ErrNotVoted           = errors.New("You haven't voted to skip")
	ErrTitleNotStreaming  = errors.New("Title can be changed only in the streaming mode")
	ErrStreamURLRequired  = errors.New("stream URL is required")
	errInvalidPlayerState = errors.New("player is in an invalid state")
)

const (
	songRetries          = 3
	protectionThreshold  = 3
	statsTimeout         = 10 * time.Second
	emptyPlaylistWhisper = "Your playlist is empty. Please add more songs and rejoin the DJ queue."
	failedDJWhisper      = "Please try to fix your playlist and rejoin the queue"
	nothingToPlayMessage = "No suitable song found for automatic playlist. Join the DJ queue to play!"
)

// Users is the listener registry and DJ queue.
type Users interface {
	ClearQueue()
	LeaveQueue(id string) error
	NextDJ() string
	CurrentListeners() []string
	IsListening(id string) bool
	DisplayInfo() users.Info
}

// Library provides songs and records what was played.
type Library interface {
	NextSong(ctx context.Context, djID string, ex database.Extractor) (*database.SongContext, error)
	AutoplaylistSong(ctx context.Context, ex database.Extractor) (*database.SongContext, error)
	UpdateStats(ctx context.Context, sc *database.SongContext) error
}

// Extractor finds media URLs for songs and live streams.
type Extractor interface {
	database.Extractor
	StreamInfo(ctx context.Context, url string) (*resolver.StreamInfo, error)
}

// Decoder starts decoding a media URL into PCM.
type Decoder interface {
	Decode(ctx context.Context, input string, seek time.Duration) (io.ReadCloser, error)
}

// PCM is the output paced by the PCM processor.
type PCM interface {
	SetSource(r io.ReadCloser)
	Volume() float64
	SetVolume(v float64)
}

// Meta receives the title announced to direct stream listeners.
type Meta interface {
	SetMeta(title string)
}

// Notifier talks to the text channels and the bot presence.
type Notifier interface {
	Message(ctx context.Context, text string) error
	Whisper(ctx context.Context, userID, text string) error
	Log(ctx context.Context, text string) error
	SendStatus(ctx context.Context, text string) (string, error)
	EditStatus(ctx context.Context, messageID, text string) error
	SetPresence(ctx context.Context, game string) error
	DisplayNames(ids []string) map[string]string
}

type Options struct {
	SkipRatio           float64
	Cooldown            time.Duration
	StreamEndTransition time.Duration
	InitialState        string

	Users     Users
	Library   Library
	Extractor Extractor
	Decoder   Decoder
	PCM       PCM
	Meta      Meta
	Notifier  Notifier

	// Ready, when set, holds the state machine back until it is closed.
	Ready <-chan struct{}
}

// Snapshot is a lock free view of what the player is doing.
type Snapshot struct {
	State       State
	Title       string
	SongID      int64
	DJ          string
	StreamTitle string
}

type Player struct {
	// held while a state is being set up or torn down
	transition  sync.Mutex
	switchState chan struct{}

	state         State
	nextState     State
	applyCooldown bool
	song          *database.SongContext
	streamURL     string
	streamTitle   string
	statusID      string
	protection    atomic.Int32

	cooldownTimer  *time.Timer
	cooldownGen    uint64
	autoTransition *time.Timer
	autoGen        uint64

	infoMu sync.RWMutex
	info   Snapshot

	opts Options
	log  zerolog.Logger
}

func New(opts Options) *Player {
	p := &Player{
		switchState:   make(chan struct{}, 1),
		applyCooldown: true,
		opts:          opts,
		log:           logging.Component("player"),
	}

	next, ok := ParseInitialState(opts.InitialState)
	if !ok {
		p.log.Error().Str("initial_state", opts.InitialState).Msg("Initial state is invalid, assuming 'stopped'")
	}
	p.nextState = next
	return p
}

// signal wakes the state machine. Callers hold the transition lock.
func (p *Player) signal() {
	select {
	case p.switchState <- struct{}{}:
	default:
	}
}

func (p *Player) clearSignal() {
	select {
	case <-p.switchState:
	default:
	}
}

func (p *Player) Snapshot() Snapshot {
	p.infoMu.RLock()
	defer p.infoMu.RUnlock()
	return p.info
}

func (p *Player) publish() {
	s := Snapshot{State: p.state}
	switch {
	case p.state == DJPlaying && p.song != nil:
		s.Title = p.song.Title
		s.SongID = p.song.SongID
		s.DJ = p.song.DJ
	case p.state == Streaming:
		s.Title = p.streamTitle
		s.StreamTitle = p.streamTitle
	}
	p.infoMu.Lock()
	p.info = s
	p.infoMu.Unlock()
}

// Run drives the state machine until ctx is done, starting once Ready is
// closed. It only returns an error when decoding cannot be started at all.
func (p *Player) Run(ctx context.Context) error {
	if p.opts.Ready != nil {
		select {
		case <-ctx.Done():
			return nil
		case <-p.opts.Ready:
		}
	}

	p.transition.Lock()
	nothingToPlay := false

	defer func() {
		p.cleanup(ctx)
		p.transition.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		p.log.Debug().Stringer("from", p.state).Stringer("to", p.nextState).Msg("FSM transition")
		p.state = p.nextState
		p.publish()

		switch p.state {
		case Stopped:
			p.opts.Users.ClearQueue()
			p.applyCooldown = true

		case Streaming:
			p.opts.Users.ClearQueue()
			p.applyCooldown = true
			// whatever happens to the stream, the player stops afterwards
			p.nextState = Stopped
			ok, err := p.startStream(ctx)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}

		case DJWaiting:
			p.applyCooldown = true
			p.nextState = DJPlaying

		case DJCooldown:
			p.nextState = DJPlaying
			p.applyCooldown = false
			p.scheduleCooldown()

		case DJPlaying:
			listeners := p.opts.Users.CurrentListeners()
			if len(listeners) == 0 {
				p.nextState = DJWaiting
				continue
			}

			sc := p.djSong(ctx)
			if sc == nil {
				if ctx.Err() != nil {
					return nil
				}
				if p.applyCooldown {
					p.nextState = DJCooldown
					continue
				}

				var err error
				sc, err = p.opts.Library.AutoplaylistSong(ctx, p.opts.Extractor)
				var unavailable *database.UnavailableSongError
				switch {
				case errors.As(err, &unavailable):
					p.logChannel(ctx, fmt.Sprintf("Song [%d] *%s* was flagged due to a download error",
						unavailable.SongID, unavailable.Title))
					continue
				case err != nil:
					p.log.Error().Err(err).Msg("automatic playlist query failed")
				}

				if sc == nil {
					if !nothingToPlay {
						nothingToPlay = true
						p.message(ctx, nothingToPlayMessage)
					}
					p.applyCooldown = true
					p.nextState = DJCooldown
					continue
				}
			}

			nothingToPlay = false
			sc.UpdateListeners(listeners)
			p.song = sc
			p.publish()
			if err := p.startSong(ctx); err != nil {
				return err
			}
		}

		if !(p.state == DJCooldown && nothingToPlay) {
			p.updateStatus(ctx)
		}

		// the state is set up, wait for a reason to leave it
		p.clearSignal()
		p.transition.Unlock()
		p.log.Debug().Msg("FSM: waiting")
		select {
		case <-ctx.Done():
		case <-p.switchState:
		}
		p.transition.Lock()

		p.cleanup(ctx)
	}
}

// cleanup tears the current state down. Callers hold the transition lock.
func (p *Player) cleanup(ctx context.Context) {
	p.statusID = ""

	switch p.state {
	case DJPlaying:
		if p.song != nil {
			// stats must land before the next song is picked for overplay protection
			statsCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsTimeout)
			if err := p.opts.Library.UpdateStats(statsCtx, p.song); err != nil {
				p.log.Error().Err(err).Int64("song", p.song.SongID).Msg("failed to update song stats")
			}
			cancel()
			p.song = nil
		}
	case DJCooldown:
		p.cancelCooldown()
	case Stopped:
		p.cancelAutoTransition()
	}

	p.opts.PCM.SetSource(nil)
}

// djSong walks the DJ queue until some DJ provides a playable song.
func (p *Player) djSong(ctx context.Context) *database.SongContext {
	for dj := p.opts.Users.NextDJ(); dj != ""; dj = p.opts.Users.NextDJ() {
		if sc := p.songFor(ctx, dj); sc != nil {
			return sc
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (p *Player) songFor(ctx context.Context, dj string) *database.SongContext {
	for range songRetries {
		sc, err := p.opts.Library.NextSong(ctx, dj, p.opts.Extractor)
		if err == nil {
			return sc
		}
		if ctx.Err() != nil {
			return nil
		}

		var unavailable *database.UnavailableSongError
		switch {
		case errors.Is(err, database.ErrPlaylistEmpty), errors.Is(err, database.ErrNoActivePlaylist):
			_ = p.opts.Users.LeaveQueue(dj)
			p.whisper(ctx, dj, emptyPlaylistWhisper)
			return nil
		case errors.As(err, &unavailable):
			p.logChannel(ctx, fmt.Sprintf("Song [%d] *%s* was flagged due to a download error",
				unavailable.SongID, unavailable.Title))
		default:
			var skip *database.SongSkipError
			if !errors.As(err, &skip) {
				p.log.Error().Err(err).Str("dj", dj).Msg("failed to get the next song")
			}
		}
		p.message(ctx, fmt.Sprintf("<@%s>, song skipped: %s", dj, err))
	}

	_ = p.opts.Users.LeaveQueue(dj)
	p.whisper(ctx, dj, failedDJWhisper)
	return nil
}

func (p *Player) startSong(ctx context.Context) error {
	if p.state != DJPlaying || p.song == nil {
		return errInvalidPlayerState
	}
	url := p.song.StreamURL
	src, err := stream.NewRecoveryStream(func(seek time.Duration) (io.ReadCloser, error) {
		return p.opts.Decoder.Decode(ctx, url, seek)
	}, time.Duration(p.song.Duration)*time.Second)
	if err != nil {
		return fmt.Errorf("start decoder: %w", err)
	}
	p.log.Info().Int64("song", p.song.SongID).Str("title", p.song.Title).Str("dj", p.song.DJ).Msg("playing song")
	p.opts.PCM.SetSource(src)
	return nil
}

// startStream reports false when the stream could not be resolved.
func (p *Player) startStream(ctx context.Context) (bool, error) {
	info, err := p.opts.Extractor.StreamInfo(ctx, p.streamURL)
	if err != nil {
		if errors.Is(err, resolver.ErrStreamURL) {
			p.message(ctx, err.Error())
		} else {
			p.message(ctx, "Failed to obtain stream information: "+err.Error())
		}
		return false, nil
	}
	if p.streamTitle == "" {
		p.streamTitle = info.Title
	}
	p.publish()

	src, err := p.opts.Decoder.Decode(ctx, info.StreamURL, 0)
	if err != nil {
		return false, fmt.Errorf("start decoder: %w", err)
	}
	p.log.Info().Str("url", p.streamURL).Str("title", p.streamTitle).Msg("playing stream")
	p.opts.PCM.SetSource(src)
	return true, nil
}

func (p *Player) scheduleCooldown() {
	p.cooldownGen++
	gen := p.cooldownGen
	p.cooldownTimer = time.AfterFunc(p.opts.Cooldown, func() {
		p.transition.Lock()
		defer p.transition.Unlock()
		if p.state == DJCooldown && p.cooldownGen == gen {
			p.signal()
		}
	})
}

func (p *Player) cancelCooldown() {
	if p.cooldownTimer != nil {
		p.cooldownTimer.Stop()
		p.cooldownTimer = nil
	}
	p.cooldownGen++
}

func (p *Player) scheduleAutoTransition() {
	p.cancelAutoTransition()
	gen := p.autoGen
	p.autoTransition = time.AfterFunc(p.opts.StreamEndTransition, func() {
		p.transition.Lock()
		defer p.transition.Unlock()
		if p.state == Stopped && p.autoGen == gen {
			p.nextState = DJPlaying
			p.signal()
		}
	})
}

func (p *Player) cancelAutoTransition() bool {
	p.autoGen++
	if p.autoTransition == nil {
		return false
	}
	p.autoTransition.Stop()
	p.autoTransition = nil
	return true
}

// PlaybackEnded is called by the PCM processor on every tick while the source
// is dry. It never blocks; a call that finds the lock taken is repeated on the
// next tick.
func (p *Player) PlaybackEnded() {
	if !p.transition.TryLock() {
		return
	}
	defer p.transition.Unlock()

	if p.state == DJPlaying || p.state == Streaming {
		p.signal()
	}
	if p.state == Streaming && p.opts.StreamEndTransition > 0 && p.autoTransition == nil {
		p.scheduleAutoTransition()
	}
}

func (p *Player) SetStop(ctx context.Context) {
	p.transition.Lock()
	defer p.transition.Unlock()

	if p.state != Stopped {
		p.nextState = Stopped
		p.signal()
		return
	}
	if p.cancelAutoTransition() {
		p.message(ctx, "Auto transition was cancelled")
	}
}

func (p *Player) SetDJMode() {
	p.transition.Lock()
	defer p.transition.Unlock()

	if p.state == Stopped || p.state == Streaming {
		p.nextState = DJPlaying
		p.signal()
	}
}

// SetStream switches to stream mode. An empty title is taken from the stream.
func (p *Player) SetStream(url, title string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrStreamURLRequired
	}
	p.transition.Lock()
	defer p.transition.Unlock()

	p.streamURL = url
	p.streamTitle = strings.TrimSpace(title)
	p.nextState = Streaming
	p.signal()
	return nil
}

func (p *Player) SetStreamTitle(ctx context.Context, title string) error {
	p.transition.Lock()
	defer p.transition.Unlock()

	if p.state != Streaming {
		return ErrTitleNotStreaming
	}
	p.streamTitle = title
	p.publish()
	p.statusID = ""
	p.updateStatus(ctx)
	return nil
}

func (p *Player) SkipVote(ctx context.Context, userID string) error {
	if !p.transition.TryLock() {
		return fmt.Errorf("Skip vote failed, %w", ErrTryAgain)
	}
	defer p.transition.Unlock()

	if !p.opts.Users.IsListening(userID) {
		return ErrVoteNotListening
	}
	if p.state != DJPlaying || p.song == nil {
		return ErrVoteNotPlaying
	}

	if p.song.DJ == userID {
		p.message(ctx, "Song skipped by the DJ")
		p.signal()
		return nil
	}

	listeners, votes := p.song.SkipVote(userID)
	p.updateStatus(ctx)

	if listeners > 0 && float64(votes) >= p.opts.SkipRatio*float64(listeners) {
		p.message(ctx, "Community voted to skip")
		p.signal()
	}
	return nil
}

func (p *Player) SkipUnvote(ctx context.Context, userID string) error {
	if !p.transition.TryLock() {
		return fmt.Errorf("Removing skip vote failed, %w", ErrTryAgain)
	}
	defer p.transition.Unlock()

	if p.state != DJPlaying || p.song == nil {
		return ErrNotVoted
	}
	if err := p.song.SkipUnvote(userID); err != nil {
		return ErrNotVoted
	}
	p.updateStatus(ctx)
	return nil
}

// ForceSkip skips the current song without a vote.
func (p *Player) ForceSkip() error {
	if !p.transition.TryLock() {
		return fmt.Errorf("Skip failed, %w (if still applicable)", ErrTryAgain)
	}
	defer p.transition.Unlock()

	if p.state != DJPlaying {
		return ErrSkipNotPlaying
	}
	p.signal()
	return nil
}

func (p *Player) Volume() float64 {
	return p.opts.PCM.Volume()
}

func (p *Player) SetVolume(v float64) {
	p.opts.PCM.SetVolume(v)
}

// BumpProtectionCounter counts messages posted below the status message.
func (p *Player) BumpProtectionCounter() {
	p.protection.Add(1)
}

// ReprintStatus posts a fresh status message once enough messages buried the old one.
func (p *Player) ReprintStatus(ctx context.Context) {
	p.transition.Lock()
	defer p.transition.Unlock()

	if p.protection.Load() < protectionThreshold {
		return
	}
	p.statusID = ""
	p.updateStatus(ctx)
}

// UsersChanged reacts to listeners coming and going and to DJs joining.
func (p *Player) UsersChanged(ctx context.Context, listeners []string, djsPresent bool) {
	p.transition.Lock()
	defer p.transition.Unlock()

	if p.state == Stopped {
		return
	}
	if len(listeners) > 0 {
		if p.state == DJWaiting {
			p.signal()
			return
		}
	} else if p.state == DJCooldown {
		p.applyCooldown = true
		p.signal()
		return
	}

	if djsPresent {
		p.applyCooldown = true
		if p.state == DJCooldown {
			p.signal()
			return
		}
	}

	if p.state == DJPlaying && p.song != nil {
		p.song.UpdateListeners(listeners)
	}
	p.updateStatus(ctx)
}

func (p *Player) message(ctx context.Context, text string) {
	if err := p.opts.Notifier.Message(ctx, text); err != nil {
		p.log.Warn().Err(err).Msg("failed to send a message")
	}
}

func (p *Player) whisper(ctx context.Context, userID, text string) {
	if err := p.opts.Notifier.Whisper(ctx, userID, text); err != nil {
		p.log.Warn().Err(err).Str("user", userID).Msg("failed to whisper")
	}
}

func (p *Player) logChannel(ctx context.Context, text string) {
	if err := p.opts.Notifier.Log(ctx, text); err != nil {
		p.log.Warn().Err(err).Msg("failed to write to the log channel")
	}
}
