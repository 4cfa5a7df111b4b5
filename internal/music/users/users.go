// Package users tracks who is listening (in the voice channel or through the
// direct stream) and the round-robin DJ queue.
package users

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ddmbot/internal/logging"
)

var (
	ErrAlreadyListening = errors.New("user is already listening")
	ErrNotListening     = errors.New("You must be listening to join the DJ queue")
	ErrAlreadyInQueue   = errors.New("You are already in the DJ queue")
	ErrNotInQueue       = errors.New("You are not in the DJ queue")
	ErrUserNotInQueue   = errors.New("User is not in the DJ queue")
	ErrNotAListener     = errors.New("user is not listening")
)

const idleCheckInterval = time.Minute

// Whisperer sends private messages.
type Whisperer interface {
	Whisper(ctx context.Context, userID, text string) error
}

// ChangeListener is told about every change in listeners or the DJ queue.
type ChangeListener interface {
	UsersChanged(ctx context.Context, listeners []string, djsPresent bool)
}

// Info is a snapshot used for status messages.
type Info struct {
	ListenerCount int
	Direct        []string
	Queue         []string
}

type Options struct {
	IdleTimeout time.Duration
	IdleGrace   time.Duration
	Whisperer   Whisperer
	Now         func() time.Time
}

type Manager struct {
	mu       sync.Mutex
	voice    map[string]struct{}
	direct   map[string]struct{}
	queue    []string
	activity map[string]time.Time
	warned   map[string]time.Time

	listener ChangeListener
	changed  chan struct{}

	opts Options
	now  func() time.Time
	log  zerolog.Logger
}

func New(opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		voice:    make(map[string]struct{}),
		direct:   make(map[string]struct{}),
		activity: make(map[string]time.Time),
		warned:   make(map[string]time.Time),
		changed:  make(chan struct{}, 1),
		opts:     opts,
		now:      now,
		log:      logging.Component("users"),
	}
}

// SetListener registers the receiver of change notifications.
func (m *Manager) SetListener(l ChangeListener) {
	m.mu.Lock()
	m.listener = l
	m.mu.Unlock()
}

// notify schedules a change notification; bursts collapse into one.
func (m *Manager) notify() {
	select {
	case m.changed <- struct{}{}:
	default:
	}
}

func (m *Manager) listening(id string) bool {
	_, v := m.voice[id]
	_, d := m.direct[id]
	return v || d
}

func (m *Manager) set(direct bool) map[string]struct{} {
	if direct {
		return m.direct
	}
	return m.voice
}

func (m *Manager) AddListener(id string, direct bool) error {
	m.mu.Lock()
	set := m.set(direct)
	if _, ok := set[id]; ok {
		m.mu.Unlock()
		return ErrAlreadyListening
	}
	set[id] = struct{}{}
	m.mu.Unlock()

	m.log.Debug().Str("user", id).Bool("direct", direct).Msg("listener added")
	m.notify()
	return nil
}

func (m *Manager) RemoveListener(id string, direct bool) error {
	m.mu.Lock()
	set := m.set(direct)
	if _, ok := set[id]; !ok {
		m.mu.Unlock()
		return ErrNotAListener
	}
	delete(set, id)
	m.mu.Unlock()

	m.log.Debug().Str("user", id).Bool("direct", direct).Msg("listener removed")
	m.notify()
	return nil
}

func (m *Manager) IsListening(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening(id)
}

func (m *Manager) currentListeners() []string {
	out := make([]string, 0, len(m.voice)+len(m.direct))
	for id := range m.voice {
		out = append(out, id)
	}
	for id := range m.direct {
		if _, dup := m.voice[id]; !dup {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// CurrentListeners returns everybody listening through either output.
func (m *Manager) CurrentListeners() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentListeners()
}

func (m *Manager) JoinQueue(id string) error {
	m.mu.Lock()
	if !m.listening(id) {
		m.mu.Unlock()
		return ErrNotListening
	}
	if slices.Contains(m.queue, id) {
		m.mu.Unlock()
		return ErrAlreadyInQueue
	}
	m.queue = append(m.queue, id)
	m.activity[id] = m.now()
	delete(m.warned, id)
	m.mu.Unlock()

	m.notify()
	return nil
}

func (m *Manager) removeFromQueue(id string) bool {
	i := slices.Index(m.queue, id)
	if i < 0 {
		return false
	}
	m.queue = slices.Delete(m.queue, i, i+1)
	delete(m.warned, id)
	return true
}

func (m *Manager) LeaveQueue(id string) error {
	m.mu.Lock()
	ok := m.removeFromQueue(id)
	m.mu.Unlock()
	if !ok {
		return ErrNotInQueue
	}
	m.notify()
	return nil
}

// Kick removes another user from the queue and lets them know.
func (m *Manager) Kick(ctx context.Context, id string) error {
	m.mu.Lock()
	ok := m.removeFromQueue(id)
	m.mu.Unlock()
	if !ok {
		return ErrUserNotInQueue
	}
	m.notify()
	m.whisper(ctx, id, "You have been kicked from the DJ queue by an operator")
	return nil
}

func (m *Manager) ClearQueue() {
	m.mu.Lock()
	had := len(m.queue) > 0
	m.queue = nil
	clear(m.warned)
	m.mu.Unlock()
	if had {
		m.notify()
	}
}

// NextDJ rotates the queue and returns its head, dropping DJs who stopped
// listening. It returns an empty string when nobody is left.
func (m *Manager) NextDJ() string {
	m.mu.Lock()
	dropped := false
	var dj string
	for len(m.queue) > 0 {
		head := m.queue[0]
		m.queue = m.queue[1:]
		if m.listening(head) {
			m.queue = append(m.queue, head)
			dj = head
			break
		}
		delete(m.warned, head)
		dropped = true
		m.log.Debug().Str("user", head).Msg("DJ is not listening anymore, removed from the queue")
	}
	m.mu.Unlock()

	if dropped {
		m.notify()
	}
	return dj
}

func (m *Manager) Queue() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.queue)
}

func (m *Manager) InQueue(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.queue, id)
}

func (m *Manager) DisplayInfo() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	direct := make([]string, 0, len(m.direct))
	for id := range m.direct {
		direct = append(direct, id)
	}
	slices.Sort(direct)
	return Info{
		ListenerCount: len(m.currentListeners()),
		Direct:        direct,
		Queue:         slices.Clone(m.queue),
	}
}

// RefreshActivity marks a user as active, clearing a pending idle warning.
func (m *Manager) RefreshActivity(id string) {
	m.mu.Lock()
	m.activity[id] = m.now()
	delete(m.warned, id)
	m.mu.Unlock()
}

func (m *Manager) whisper(ctx context.Context, id, text string) {
	if m.opts.Whisperer == nil {
		return
	}
	if err := m.opts.Whisperer.Whisper(ctx, id, text); err != nil {
		m.log.Warn().Err(err).Str("user", id).Msg("whisper failed")
	}
}

// CheckTimeouts warns idle DJs and removes the ones whose grace period ran out.
func (m *Manager) CheckTimeouts(ctx context.Context) {
	if m.opts.IdleTimeout <= 0 {
		return
	}
	now := m.now()

	var warn, removed []string
	m.mu.Lock()
	for _, dj := range slices.Clone(m.queue) {
		if at, ok := m.warned[dj]; ok {
			if now.Sub(at) >= m.opts.IdleGrace {
				m.removeFromQueue(dj)
				removed = append(removed, dj)
			}
			continue
		}
		last, ok := m.activity[dj]
		if !ok {
			m.activity[dj] = now
			continue
		}
		if now.Sub(last) >= m.opts.IdleTimeout {
			m.warned[dj] = now
			warn = append(warn, dj)
		}
	}
	m.mu.Unlock()

	for _, dj := range warn {
		m.log.Info().Str("user", dj).Msg("DJ is idle, warning")
		m.whisper(ctx, dj, fmt.Sprintf("You will be removed from the DJ queue in %d minute(s) unless you show some activity "+
			"(send a message in the text channel or to the bot)", int(m.opts.IdleGrace.Minutes())))
	}
	for _, dj := range removed {
		m.log.Info().Str("user", dj).Msg("idle DJ removed from the queue")
		m.whisper(ctx, dj, "You have been removed from the DJ queue due to inactivity")
	}
	if len(removed) > 0 {
		m.notify()
	}
}

func (m *Manager) dispatch(ctx context.Context) {
	m.mu.Lock()
	l := m.listener
	listeners := m.currentListeners()
	djs := len(m.queue) > 0
	m.mu.Unlock()

	if l != nil {
		l.UsersChanged(ctx, listeners, djs)
	}
}

// Run delivers change notifications and checks idle DJs every minute.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.changed:
			m.dispatch(ctx)
		case <-ticker.C:
			m.CheckTimeouts(ctx)
		}
	}
}
