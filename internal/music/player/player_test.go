package player

import (
	"context"
	"errors"
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddmbot/internal/database"
	"ddmbot/internal/music/resolver"
	"ddmbot/internal/music/stream"
	"ddmbot/internal/music/users"
)

type result struct {
	sc  *database.SongContext
	err error
}

type fakeLibrary struct {
	mu    sync.Mutex
	next  map[string][]result
	auto  []*database.SongContext
	stats []*database.SongContext
}

func (f *fakeLibrary) NextSong(_ context.Context, dj string, _ database.Extractor) (*database.SongContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.next[dj]
	if len(q) == 0 {
		return nil, database.ErrPlaylistEmpty
	}
	f.next[dj] = q[1:]
	return q[0].sc, q[0].err
}

func (f *fakeLibrary) AutoplaylistSong(context.Context, database.Extractor) (*database.SongContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.auto) == 0 {
		return nil, nil
	}
	sc := f.auto[0]
	f.auto = f.auto[1:]
	return sc, nil
}

func (f *fakeLibrary) UpdateStats(_ context.Context, sc *database.SongContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = append(f.stats, sc)
	return nil
}

func (f *fakeLibrary) statsCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stats)
}

type fakeExtractor struct {
	info *resolver.StreamInfo
	err  error
}

func (f *fakeExtractor) StreamURL(_ context.Context, url string) (string, error) {
	return url + "#media", nil
}

func (f *fakeExtractor) StreamInfo(_ context.Context, url string) (*resolver.StreamInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

type fakeDecoder struct {
	mu     sync.Mutex
	inputs []string
	pcm    []byte
}

func (f *fakeDecoder) Decode(_ context.Context, input string, _ time.Duration) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	return io.NopCloser(bytes.NewReader(f.pcm)), nil
}

func (f *fakeDecoder) started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

type fakePCM struct {
	mu     sync.Mutex
	volume float64
	active bool
}

func (f *fakePCM) SetSource(r io.ReadCloser) {
	f.mu.Lock()
	f.active = r != nil
	f.mu.Unlock()
}

func (f *fakePCM) Volume() float64 { return f.volume }

func (f *fakePCM) SetVolume(v float64) { f.volume = v }

type fakeMeta struct {
	mu    sync.Mutex
	title string
}

func (f *fakeMeta) SetMeta(title string) {
	f.mu.Lock()
	f.title = title
	f.mu.Unlock()
}

func (f *fakeMeta) get() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	logs     []string
	whispers map[string][]string
	status   string
	sent     int
}

func (f *fakeNotifier) Message(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeNotifier) Whisper(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.whispers == nil {
		f.whispers = make(map[string][]string)
	}
	f.whispers[userID] = append(f.whispers[userID], text)
	return nil
}

func (f *fakeNotifier) Log(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, text)
	return nil
}

func (f *fakeNotifier) SendStatus(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	f.status = text
	return "status", nil
}

func (f *fakeNotifier) EditStatus(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = text
	return nil
}

func (f *fakeNotifier) SetPresence(context.Context, string) error { return nil }

func (f *fakeNotifier) DisplayNames(ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = "name-" + id
	}
	return out
}

func (f *fakeNotifier) lastStatus() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeNotifier) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func (f *fakeNotifier) whispersTo(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.whispers[id]...)
}

type harness struct {
	p        *Player
	users    *users.Manager
	library  *fakeLibrary
	ex       *fakeExtractor
	decoder  *fakeDecoder
	pcm      *fakePCM
	meta     *fakeMeta
	notifier *fakeNotifier
	cancel   context.CancelFunc
	done     chan error
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		users:    users.New(users.Options{}),
		library:  &fakeLibrary{next: map[string][]result{}},
		ex:       &fakeExtractor{},
		decoder:  &fakeDecoder{},
		pcm:      &fakePCM{volume: 1},
		meta:     &fakeMeta{},
		notifier: &fakeNotifier{},
		done:     make(chan error, 1),
	}
	if opts.SkipRatio == 0 {
		opts.SkipRatio = 0.5
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = time.Hour
	}
	opts.Users = h.users
	opts.Library = h.library
	opts.Extractor = h.ex
	opts.Decoder = h.decoder
	if opts.PCM == nil {
		opts.PCM = h.pcm
	}
	opts.Meta = h.meta
	opts.Notifier = h.notifier
	h.p = New(opts)
	return h
}

// start runs the player. A ready channel is closed once the test made sure
// nothing was posted before it.
func (h *harness) start(t *testing.T, ready ...chan struct{}) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.p.Run(ctx) }()
	for _, r := range ready {
		time.Sleep(50 * time.Millisecond)
		h.notifier.mu.Lock()
		sent := h.notifier.sent
		h.notifier.mu.Unlock()
		require.Zero(t, sent, "status posted before ready")
		close(r)
	}
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-h.done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("player did not stop")
		}
	})
	// every first state posts a status message
	require.Eventually(t, func() bool {
		h.notifier.mu.Lock()
		defer h.notifier.mu.Unlock()
		return h.notifier.sent > 0
	}, 2*time.Second, time.Millisecond)
	return ctx
}

// waitState waits until the state machine settled in s.
func (h *harness) waitState(t *testing.T, s State) {
	t.Helper()
	require.Eventually(t, func() bool {
		if h.p.Snapshot().State != s {
			return false
		}
		if !h.p.transition.TryLock() {
			return false
		}
		h.p.transition.Unlock()
		return true
	}, 2*time.Second, time.Millisecond)
}

func song(id int64, title string, duration int) *database.Song {
	return &database.Song{ID: id, UURI: "yt:dQw4w9WgXcQ", Title: title, Duration: duration}
}

func TestParseInitialState(t *testing.T) {
	s, ok := ParseInitialState("DJMode")
	assert.True(t, ok)
	assert.Equal(t, DJPlaying, s)

	s, ok = ParseInitialState("bogus")
	assert.False(t, ok)
	assert.Equal(t, Stopped, s)
	assert.Equal(t, "DJ_COOLDOWN", DJCooldown.String())
}

func TestAutoplaylistAfterCooldown(t *testing.T) {
	h := newHarness(t, Options{InitialState: "stopped", Cooldown: 20 * time.Millisecond})
	h.library.auto = []*database.SongContext{database.NewSongContext("", song(7, "Song", 185), "media://7")}
	ctx := h.start(t)

	h.waitState(t, Stopped)
	assert.Equal(t, "**Player is stopped**", h.notifier.lastStatus())

	h.p.SetDJMode()
	h.waitState(t, DJWaiting)
	assert.Equal(t, "**Waiting for the first listener**", h.notifier.lastStatus())

	require.NoError(t, h.users.AddListener("a", false))
	h.p.UsersChanged(ctx, h.users.CurrentListeners(), false)

	h.waitState(t, DJPlaying)
	assert.Equal(t, "**Playing:** [7] Song, **length** 3:05\n**Skip votes:** 0/1 **Direct listeners** (0/1)**:** \n**Queue:** ",
		h.notifier.lastStatus())
	assert.Equal(t, []string{"media://7"}, h.decoder.started())
	assert.Equal(t, "Song", h.meta.get())

	require.NoError(t, h.p.SkipVote(ctx, "a"))
	require.Eventually(t, func() bool { return h.library.statsCount() == 1 }, 2*time.Second, time.Millisecond)

	// the automatic playlist is exhausted now, which is announced once
	require.Eventually(t, func() bool {
		msgs := h.notifier.sentMessages()
		return len(msgs) == 2 && msgs[1] == nothingToPlayMessage
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, "Community voted to skip", h.notifier.sentMessages()[0])
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, h.notifier.sentMessages(), 2)
}

func TestDJRotationAndVotes(t *testing.T) {
	h := newHarness(t, Options{InitialState: "djmode", SkipRatio: 0.75})
	for _, id := range []string{"a", "b"} {
		require.NoError(t, h.users.AddListener(id, false))
	}
	require.NoError(t, h.users.JoinQueue("a"))
	h.library.next["a"] = []result{{sc: database.NewSongContext("a", song(3, "Tune", 61), "media://3")}}
	ctx := h.start(t)

	h.waitState(t, DJPlaying)
	status := h.notifier.lastStatus()
	assert.Contains(t, status, "**Playing:** [3] Tune, **length** 1:01, **queued by** <@a>")
	assert.Contains(t, status, "**Skip votes:** 0/2")
	assert.Contains(t, status, "**Queue:** name-a")
	assert.Equal(t, "Tune, queued by name-a", h.meta.get())
	assert.Equal(t, Snapshot{State: DJPlaying, Title: "Tune", SongID: 3, DJ: "a"}, h.p.Snapshot())

	assert.ErrorIs(t, h.p.SkipVote(ctx, "c"), ErrVoteNotListening)
	require.NoError(t, h.p.SkipVote(ctx, "b"))
	assert.Contains(t, h.notifier.lastStatus(), "**Skip votes:** 1/2")
	require.NoError(t, h.p.SkipUnvote(ctx, "b"))
	assert.ErrorIs(t, h.p.SkipUnvote(ctx, "b"), ErrNotVoted)

	// the DJ skips their own song and their playlist is empty afterwards
	require.NoError(t, h.p.SkipVote(ctx, "a"))
	h.waitState(t, DJCooldown)
	assert.Equal(t, []string{"Song skipped by the DJ"}, h.notifier.sentMessages())
	assert.Equal(t, []string{emptyPlaylistWhisper}, h.notifier.whispersTo("a"))
	assert.Empty(t, h.users.Queue())
	assert.Equal(t, 1, h.library.statsCount())

	assert.ErrorIs(t, h.p.ForceSkip(), ErrSkipNotPlaying)
	assert.ErrorIs(t, h.p.SkipVote(ctx, "b"), ErrVoteNotPlaying)
}

func TestDJWithBrokenPlaylistLeavesQueue(t *testing.T) {
	h := newHarness(t, Options{InitialState: "djmode"})
	require.NoError(t, h.users.AddListener("a", false))
	require.NoError(t, h.users.JoinQueue("a"))
	h.library.next["a"] = []result{
		{err: &database.SongSkipError{SongID: 1, Title: "One", Reason: "is blacklisted"}},
		{err: &database.UnavailableSongError{SongID: 2, Title: "Two", Err: errors.New("gone")}},
		{err: &database.SongSkipError{SongID: 3, Title: "Three", Reason: "is too long"}},
	}
	h.start(t)

	h.waitState(t, DJCooldown)
	msgs := h.notifier.sentMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "<@a>, song skipped: [1] *One* is blacklisted", msgs[0])
	assert.Equal(t, []string{"Song [2] *Two* was flagged due to a download error"}, h.notifier.logs)
	assert.Equal(t, []string{failedDJWhisper}, h.notifier.whispersTo("a"))
	assert.Empty(t, h.users.Queue())
	assert.Equal(t, "**Waiting for DJs**, automatic playlist will be initiated in a few seconds", h.notifier.lastStatus())
}

func TestStreamEndsIntoStopWithAutoTransition(t *testing.T) {
	h := newHarness(t, Options{InitialState: "stopped", StreamEndTransition: time.Hour})
	h.ex.info = &resolver.StreamInfo{URL: "https://twitch.tv/x", StreamURL: "media://live", Title: "Live"}
	ctx := h.start(t)
	h.waitState(t, Stopped)

	assert.ErrorIs(t, h.p.SetStreamTitle(ctx, "x"), ErrTitleNotStreaming)
	assert.ErrorIs(t, h.p.SetStream(" ", ""), ErrStreamURLRequired)

	require.NoError(t, h.p.SetStream("https://twitch.tv/x", ""))
	h.waitState(t, Streaming)
	assert.Equal(t, "**Playing stream:** Live\n**Direct listeners** (0/0)**:** ", h.notifier.lastStatus())
	assert.Equal(t, []string{"media://live"}, h.decoder.started())

	require.NoError(t, h.p.SetStreamTitle(ctx, "Renamed"))
	assert.Equal(t, "Renamed", h.meta.get())

	h.p.PlaybackEnded()
	h.waitState(t, Stopped)
	assert.Equal(t, "**Player is stopped**\nAutomatic transition into DJ mode after 3600 seconds", h.notifier.lastStatus())

	h.p.SetStop(ctx)
	assert.Equal(t, []string{"Auto transition was cancelled"}, h.notifier.sentMessages())
	h.p.SetStop(ctx)
	assert.Len(t, h.notifier.sentMessages(), 1)
}

func TestStreamEndTransitionFires(t *testing.T) {
	h := newHarness(t, Options{InitialState: "stopped", StreamEndTransition: 50 * time.Millisecond})
	h.ex.info = &resolver.StreamInfo{StreamURL: "media://live", Title: "Live"}
	h.start(t)
	h.waitState(t, Stopped)

	require.NoError(t, h.p.SetStream("https://example.com/live", "Given"))
	h.waitState(t, Streaming)
	assert.Equal(t, "Given", h.p.Snapshot().StreamTitle)

	h.p.PlaybackEnded()
	// stopped, then DJ mode without listeners ends up waiting
	h.waitState(t, DJWaiting)
}

func TestStreamFailure(t *testing.T) {
	h := newHarness(t, Options{InitialState: "stopped"})
	h.ex.err = resolver.ErrStreamURL
	h.start(t)
	h.waitState(t, Stopped)

	require.NoError(t, h.p.SetStream("https://example.com/nothing", ""))
	require.Eventually(t, func() bool {
		return len(h.notifier.sentMessages()) == 1
	}, 2*time.Second, time.Millisecond)
	h.waitState(t, Stopped)
	assert.Equal(t, resolver.ErrStreamURL.Error(), h.notifier.sentMessages()[0])
	assert.Empty(t, h.decoder.started())
}

func TestReprintStatusNeedsBuriedMessage(t *testing.T) {
	h := newHarness(t, Options{InitialState: "stopped"})
	ctx := h.start(t)
	h.waitState(t, Stopped)

	h.p.ReprintStatus(ctx)
	h.notifier.mu.Lock()
	assert.Equal(t, 1, h.notifier.sent)
	h.notifier.mu.Unlock()

	for range 3 {
		h.p.BumpProtectionCounter()
	}
	h.p.ReprintStatus(ctx)
	h.notifier.mu.Lock()
	assert.Equal(t, 2, h.notifier.sent)
	h.notifier.mu.Unlock()
}

func TestDJJoiningEndsCooldown(t *testing.T) {
	h := newHarness(t, Options{InitialState: "djmode", Cooldown: time.Hour})
	require.NoError(t, h.users.AddListener("a", false))
	ctx := h.start(t)
	h.waitState(t, DJCooldown)
	assert.Empty(t, h.decoder.started())

	require.NoError(t, h.users.JoinQueue("a"))
	h.library.next["a"] = []result{{sc: database.NewSongContext("a", song(3, "Tune", 61), "media://3")}}
	h.p.UsersChanged(ctx, h.users.CurrentListeners(), true)

	h.waitState(t, DJPlaying)
	assert.Equal(t, []string{"media://3"}, h.decoder.started())
	assert.Equal(t, "a", h.p.Snapshot().DJ)
}

func TestLastListenerLeavingDuringCooldown(t *testing.T) {
	h := newHarness(t, Options{InitialState: "djmode", Cooldown: time.Hour})
	h.library.auto = []*database.SongContext{database.NewSongContext("", song(7, "Song", 185), "media://7")}
	require.NoError(t, h.users.AddListener("a", false))
	ctx := h.start(t)
	h.waitState(t, DJCooldown)

	require.NoError(t, h.users.RemoveListener("a", false))
	h.p.UsersChanged(ctx, h.users.CurrentListeners(), false)
	h.waitState(t, DJWaiting)
	assert.Equal(t, "**Waiting for the first listener**", h.notifier.lastStatus())

	// coming back starts a fresh cooldown instead of the automatic playlist
	require.NoError(t, h.users.AddListener("a", false))
	h.p.UsersChanged(ctx, h.users.CurrentListeners(), false)
	h.waitState(t, DJCooldown)
	assert.Empty(t, h.decoder.started())
	h.library.mu.Lock()
	assert.Len(t, h.library.auto, 1)
	h.library.mu.Unlock()
}

func TestRunWaitsUntilReady(t *testing.T) {
	ready := make(chan struct{})
	h := newHarness(t, Options{InitialState: "stopped", Ready: ready})
	h.start(t, ready)

	h.waitState(t, Stopped)
	assert.Equal(t, "**Player is stopped**", h.notifier.lastStatus())
}

func TestRunStopsWhileWaitingForReady(t *testing.T) {
	h := newHarness(t, Options{InitialState: "djmode", Ready: make(chan struct{})})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.done <- h.p.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	h.notifier.mu.Lock()
	assert.Zero(t, h.notifier.sent)
	h.notifier.mu.Unlock()

	cancel()
	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("player did not stop")
	}
}

type nopEncoder struct{}

func (nopEncoder) Encode([]int16, int, int) ([]byte, error) { return nil, nil }

func TestSongEndWhileTransitionLockIsHeld(t *testing.T) {
	var pl *Player
	proc, err := stream.New(stream.Options{Volume: 1, Encoder: nopEncoder{}, Next: func() { pl.PlaybackEnded() }})
	require.NoError(t, err)

	h := newHarness(t, Options{InitialState: "djmode", PCM: proc})
	pl = h.p
	h.decoder.pcm = make([]byte, 5*stream.FrameSize)
	require.NoError(t, h.users.AddListener("a", false))
	require.NoError(t, h.users.JoinQueue("a"))
	h.library.next["a"] = []result{
		{sc: database.NewSongContext("a", song(1, "A", 0), "media://1")},
		{sc: database.NewSongContext("a", song(2, "B", 0), "media://2")},
	}
	h.start(t)
	h.waitState(t, DJPlaying)

	// the song drains while something else, a slow status edit say, holds the lock
	h.p.transition.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = proc.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, []string{"media://1"}, h.decoder.started())
	h.p.transition.Unlock()

	require.Eventually(t, func() bool {
		return len(h.decoder.started()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"media://1", "media://2"}, h.decoder.started())
}

func TestVolumeDelegatesToPCM(t *testing.T) {
	h := newHarness(t, Options{})
	h.p.SetVolume(0.4)
	assert.Equal(t, 0.4, h.p.Volume())
}
