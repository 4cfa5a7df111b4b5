package stream

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVoice struct {
	mu      sync.Mutex
	ready   bool
	packets [][]byte
}

func (f *fakeVoice) Ready() bool { return f.ready }

func (f *fakeVoice) Send(opus []byte) {
	f.mu.Lock()
	f.packets = append(f.packets, opus)
	f.mu.Unlock()
}

type fakeDirect struct {
	connected bool
	accept    bool
	frames    [][]byte
}

func (f *fakeDirect) IsConnected() bool { return f.connected }

func (f *fakeDirect) WriteFrame(frame []byte) bool {
	if !f.accept {
		return false
	}
	f.frames = append(f.frames, frame)
	return true
}

type fakeEncoder struct {
	first []int16
}

func (f *fakeEncoder) Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error) {
	if frameSize != samplesPerChannel || maxDataBytes != FrameSize {
		return nil, errors.New("unexpected frame size")
	}
	f.first = append(f.first, pcm[0])
	return []byte{0xf8}, nil
}

func newTestProcessor(t *testing.T, next func()) (*Processor, *fakeVoice, *fakeDirect, *fakeEncoder) {
	t.Helper()
	voice := &fakeVoice{ready: true}
	direct := &fakeDirect{connected: true, accept: true}
	enc := &fakeEncoder{}
	p, err := New(Options{Volume: 1, Voice: voice, Direct: direct, Encoder: enc, Next: next})
	require.NoError(t, err)
	return p, voice, direct, enc
}

func frame(sample int16) []byte {
	b := make([]byte, FrameSize)
	for i := 0; i < FrameSize; i += 2 {
		b[i] = byte(uint16(sample))
		b[i+1] = byte(uint16(sample) >> 8)
	}
	return b
}

func waitFrames(t *testing.T, p *Processor, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(p.frames) == n }, time.Second, time.Millisecond)
}

func TestProcessorPlaysSourceAndRequestsNext(t *testing.T) {
	nextCalls := 0
	p, voice, direct, enc := newTestProcessor(t, func() { nextCalls++ })

	input := append(append(frame(100), frame(200)...), make([]byte, 100)...)
	p.SetSource(io.NopCloser(bytes.NewReader(input)))
	waitFrames(t, p, 4)

	for i := 0; i < 4; i++ {
		p.tick()
	}

	assert.Len(t, voice.packets, 2, "only full frames reach discord")
	assert.Equal(t, []int16{100, 200}, enc.first)
	require.Len(t, direct.frames, 4, "direct stream gets padded frames and silence too")
	assert.Len(t, direct.frames[2], FrameSize)
	assert.Equal(t, 1, nextCalls)

	// drained source: silence, no underrun, next asked again every tick
	p.tick()
	p.tick()
	assert.Equal(t, 3, nextCalls)
	assert.Zero(t, p.buffering)
	assert.Len(t, direct.frames, 6)
	assert.Len(t, voice.packets, 2)

	// a new source stops the requests
	p.SetSource(io.NopCloser(bytes.NewReader(frame(300))))
	waitFrames(t, p, 2)
	p.tick()
	assert.Equal(t, 3, nextCalls)
	assert.Equal(t, []int16{100, 200, 300}, enc.first)
}

func TestProcessorUnderrunBuffersOneSecond(t *testing.T) {
	p, voice, direct, _ := newTestProcessor(t, nil)

	r, w := io.Pipe()
	defer w.Close()
	p.SetSource(r)

	p.tick()
	assert.Equal(t, cyclesPerSecond, p.buffering)
	assert.Len(t, direct.frames, 1)

	for i := 0; i < cyclesPerSecond; i++ {
		p.tick()
	}
	assert.Zero(t, p.buffering)
	assert.Empty(t, voice.packets)
	assert.Len(t, direct.frames, cyclesPerSecond+1)
}

func TestProcessorWithoutSourceIsSilent(t *testing.T) {
	nextCalls := 0
	p, voice, direct, _ := newTestProcessor(t, func() { nextCalls++ })

	p.tick()
	assert.Zero(t, nextCalls)
	assert.Zero(t, p.buffering)
	assert.Empty(t, voice.packets)
	require.Len(t, direct.frames, 1)
	assert.Equal(t, make([]byte, FrameSize), direct.frames[0])
}

func TestProcessorDirectCongestion(t *testing.T) {
	p, _, direct, _ := newTestProcessor(t, nil)

	direct.accept = false
	p.tick()
	assert.True(t, p.congested)
	p.tick()
	assert.True(t, p.congested)

	direct.accept = true
	p.tick()
	assert.False(t, p.congested)

	direct.accept = false
	p.tick()
	direct.connected = false
	p.tick()
	assert.False(t, p.congested, "disconnected output is never congested")
}

func TestProcessorVoiceNotReady(t *testing.T) {
	p, voice, _, _ := newTestProcessor(t, nil)
	voice.ready = false

	p.SetSource(io.NopCloser(bytes.NewReader(frame(1))))
	waitFrames(t, p, 2)
	p.tick()
	assert.Empty(t, voice.packets)
}

func TestSetSourceDropsStaleFrames(t *testing.T) {
	p, _, _, enc := newTestProcessor(t, nil)

	p.SetSource(io.NopCloser(bytes.NewReader(frame(5))))
	waitFrames(t, p, 2)

	p.SetSource(io.NopCloser(bytes.NewReader(frame(7))))
	waitFrames(t, p, 2)
	p.tick()
	assert.Equal(t, []int16{7}, enc.first)
}

func TestVolume(t *testing.T) {
	p, _, _, _ := newTestProcessor(t, nil)

	p.SetVolume(3)
	assert.Equal(t, MaxVolume, p.Volume())
	p.SetVolume(-1)
	assert.Equal(t, 0.0, p.Volume())
	p.SetVolume(0.5)
	assert.Equal(t, 0.5, p.Volume())
}

func TestApplyVolumeSaturates(t *testing.T) {
	src := make([]byte, 8)
	samples := []int16{20000, -20000, 3, -3}
	for i, s := range samples {
		src[2*i] = byte(uint16(s))
		src[2*i+1] = byte(uint16(s) >> 8)
	}

	dst := make([]int16, 4)
	applyVolume(dst, src, 2)
	assert.Equal(t, []int16{32767, -32768, 6, -6}, dst)

	applyVolume(dst, src, 0.5)
	assert.Equal(t, []int16{10000, -10000, 1, -2}, dst)

	applyVolume(dst, src, 1)
	assert.Equal(t, samples, dst)
}

type fakeOpener struct {
	data  []byte
	seeks []time.Duration
	fail  bool
}

func (f *fakeOpener) open(seek time.Duration) (io.ReadCloser, error) {
	if f.fail && len(f.seeks) > 0 {
		return nil, errors.New("boom")
	}
	f.seeks = append(f.seeks, seek)
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func TestRecoveryStreamReopensAtPosition(t *testing.T) {
	// one second of audio per open, ten expected
	op := &fakeOpener{data: make([]byte, bytesPerSecond)}
	rs, err := NewRecoveryStream(op.open, 10*time.Second)
	require.NoError(t, err)

	n, err := io.Copy(io.Discard, rs)
	require.NoError(t, err)
	assert.Equal(t, int64(4*bytesPerSecond), n)
	assert.Equal(t, []time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second}, op.seeks)
	assert.Equal(t, maxRecoveryAttempts, rs.Attempts())
	assert.Equal(t, 4*time.Second, rs.Position())
}

func TestRecoveryStreamCompleteInput(t *testing.T) {
	op := &fakeOpener{data: make([]byte, 8*bytesPerSecond)}
	rs, err := NewRecoveryStream(op.open, 10*time.Second)
	require.NoError(t, err)

	_, err = io.Copy(io.Discard, rs)
	require.NoError(t, err)
	assert.Len(t, op.seeks, 1, "ending within the margin is not premature")
}

func TestRecoveryStreamClosed(t *testing.T) {
	op := &fakeOpener{data: make([]byte, 16)}
	rs, err := NewRecoveryStream(op.open, time.Minute)
	require.NoError(t, err)

	require.NoError(t, rs.Close())
	require.NoError(t, rs.Close())
	_, err = rs.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestRecoveryStreamOpenFailure(t *testing.T) {
	op := &fakeOpener{data: make([]byte, 16), fail: true}
	rs, err := NewRecoveryStream(op.open, time.Minute)
	require.NoError(t, err)

	_, err = io.Copy(io.Discard, rs)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Attempts())
}
