// Package stream paces decoded PCM into 20 ms frames and hands them to the
// Discord voice connection and the direct stream.
package stream

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ddmbot/internal/logging"
)

const (
	// FrameSize is one 20 ms frame of 48 kHz stereo s16le audio.
	FrameSize   = 3840
	FramePeriod = 20 * time.Millisecond

	samplesPerChannel = FrameSize / 4
	cyclesPerSecond   = int(time.Second / FramePeriod)
	frameBacklog      = 2 * cyclesPerSecond

	MaxVolume = 2.0
)

// Voice receives opus packets for the Discord voice connection.
type Voice interface {
	Ready() bool
	Send(opus []byte)
}

// DirectSink receives every frame while direct listeners are connected.
// WriteFrame returns false when the frame was dropped.
type DirectSink interface {
	IsConnected() bool
	WriteFrame(frame []byte) bool
}

// Encoder turns PCM samples into an opus packet.
type Encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

type Options struct {
	Volume  float64
	Voice   Voice
	Direct  DirectSink
	Encoder Encoder
	// Next is called on every tick once the current source ran dry, until a
	// new source is set. It must not block.
	Next func()
}

type chunk struct {
	gen  uint64
	data []byte
	n    int
	eof  bool
}

type Processor struct {
	mu       sync.Mutex
	source   io.ReadCloser
	stopRead chan struct{}
	gen      uint64
	volume   float64

	frames chan chunk

	voice   Voice
	direct  DirectSink
	encoder Encoder
	next    func()
	log     zerolog.Logger

	// owned by the tick loop
	lastGen   uint64
	ended     bool
	buffering int
	congested bool
	pcm       []int16
	zero      []byte
}

// New builds a processor. Without an explicit encoder a gopus encoder is created.
func New(opts Options) (*Processor, error) {
	enc := opts.Encoder
	if enc == nil {
		var err error
		enc, err = NewOpusEncoder()
		if err != nil {
			return nil, err
		}
	}
	next := opts.Next
	if next == nil {
		next = func() {}
	}

	return &Processor{
		volume:  clampVolume(opts.Volume),
		frames:  make(chan chunk, frameBacklog),
		voice:   opts.Voice,
		direct:  opts.Direct,
		encoder: enc,
		next:    next,
		log:     logging.Component("pcm"),
		pcm:     make([]int16, FrameSize/2),
		zero:    make([]byte, FrameSize),
	}, nil
}

func clampVolume(v float64) float64 {
	return math.Min(math.Max(v, 0), MaxVolume)
}

func (p *Processor) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetVolume sets the Discord output volume, clamped to 0..2.
func (p *Processor) SetVolume(v float64) {
	p.mu.Lock()
	p.volume = clampVolume(v)
	p.mu.Unlock()
}

// SetSource closes the current source, drops its buffered frames and starts
// reading r. A nil reader leaves the processor producing silence.
func (p *Processor) SetSource(r io.ReadCloser) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	old, oldStop := p.source, p.stopRead
	p.source, p.stopRead = nil, nil
	p.mu.Unlock()

	if oldStop != nil {
		close(oldStop)
	}
	if old != nil {
		_ = old.Close()
	}
	p.Flush()

	if r == nil {
		return
	}

	stop := make(chan struct{})
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		_ = r.Close()
		return
	}
	p.source, p.stopRead = r, stop
	p.mu.Unlock()

	go p.read(gen, r, stop)
}

// Flush drops all buffered frames.
func (p *Processor) Flush() {
	for {
		select {
		case <-p.frames:
		default:
			return
		}
	}
}

func (p *Processor) current() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen, p.source != nil
}

func (p *Processor) read(gen uint64, r io.Reader, stop <-chan struct{}) {
	send := func(c chunk) bool {
		select {
		case p.frames <- c:
			return true
		case <-stop:
			return false
		}
	}

	for {
		// fresh buffers are zeroed, which pads a short final frame
		buf := make([]byte, FrameSize)
		n, err := io.ReadFull(r, buf)
		if n > 0 && !send(chunk{gen: gen, data: buf, n: n}) {
			return
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, os.ErrClosed) {
				p.log.Debug().Err(err).Msg("source read ended")
			}
			send(chunk{gen: gen, eof: true})
			return
		}
	}
}

// receive returns the next frame of the current source, dropping stale ones.
func (p *Processor) receive(gen uint64) (chunk, bool) {
	for {
		select {
		case c := <-p.frames:
			if c.gen == gen {
				return c, true
			}
		default:
			return chunk{}, false
		}
	}
}

// tick produces one frame period of output.
func (p *Processor) tick() {
	gen, active := p.current()
	if gen != p.lastGen {
		p.lastGen = gen
		p.ended = false
		p.buffering = 0
	}

	data := p.zero
	full := false

	switch {
	case p.buffering > 0:
		p.buffering--
	case active && p.ended:
		// keeps asking until the source is replaced
		p.next()
	case active:
		c, ok := p.receive(gen)
		switch {
		case ok && c.eof:
			p.ended = true
			p.log.Debug().Msg("source drained, requesting next")
			p.next()
		case ok:
			data = c.data
			full = c.n == FrameSize
			if !full {
				p.log.Debug().Int("bytes", c.n).Msg("frame padded with zeroes, end of song?")
			}
		default:
			p.log.Warn().Msg("Buffer not ready, waiting one second")
			p.buffering = cyclesPerSecond
		}
	}

	if p.direct != nil && p.direct.IsConnected() {
		if p.direct.WriteFrame(data) {
			p.congested = false
		} else if !p.congested {
			p.log.Error().Msg("Output for direct stream not ready, dropping frame(s)")
			p.congested = true
		}
	} else {
		p.congested = false
	}

	// Discord only gets real audio
	if !full || p.voice == nil || !p.voice.Ready() {
		return
	}
	applyVolume(p.pcm, data, p.Volume())
	packet, err := p.encoder.Encode(p.pcm, samplesPerChannel, FrameSize)
	if err != nil {
		p.log.Error().Err(err).Msg("opus encode failed")
		return
	}
	p.voice.Send(packet)
}

// applyVolume decodes little endian samples into dst, scaling and saturating them.
func applyVolume(dst []int16, src []byte, volume float64) {
	for i := range dst {
		s := int16(uint16(src[2*i]) | uint16(src[2*i+1])<<8)
		if volume == 1 {
			dst[i] = s
			continue
		}
		v := math.Floor(float64(s) * volume)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		dst[i] = int16(v)
	}
}

// Run emits a frame every 20 ms until ctx is done, then drops the source.
func (p *Processor) Run(ctx context.Context) error {
	p.log.Debug().Msg("PCM processor is running")
	ticker := time.NewTicker(FramePeriod)
	defer ticker.Stop()
	defer p.SetSource(nil)

	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Msg("PCM processor stopped")
			return nil
		case <-ticker.C:
			p.tick()
		}
	}
}
