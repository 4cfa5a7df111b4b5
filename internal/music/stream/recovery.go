package stream

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ddmbot/internal/logging"
)

const (
	maxRecoveryAttempts = 3
	// an input ending this close to the expected length is considered complete
	recoveryMargin = 5 * time.Second
	bytesPerSecond = sampleRate * channels * 2
)

var ErrStreamClosed = errors.New("stream closed")

// Opener starts decoding the input at the given offset.
type Opener func(seek time.Duration) (io.ReadCloser, error)

// RecoveryStream wraps a decoder and restarts it from the current position when
// the input ends well before its expected length.
type RecoveryStream struct {
	open     Opener
	expected time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	current  io.ReadCloser
	closed   bool
	read     int64
	attempts int
}

// NewRecoveryStream opens the input from the beginning. A zero expected length
// disables recovery.
func NewRecoveryStream(open Opener, expected time.Duration) (*RecoveryStream, error) {
	rc, err := open(0)
	if err != nil {
		return nil, err
	}
	return &RecoveryStream{
		open:     open,
		expected: expected,
		current:  rc,
		log:      logging.Component("pcm"),
	}, nil
}

// Position is the playback offset of the data read so far.
func (rs *RecoveryStream) Position() time.Duration {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.position()
}

func (rs *RecoveryStream) position() time.Duration {
	return time.Duration(rs.read) * time.Second / bytesPerSecond
}

func (rs *RecoveryStream) Attempts() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.attempts
}

func (rs *RecoveryStream) Read(p []byte) (int, error) {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return 0, ErrStreamClosed
	}
	cur := rs.current
	rs.mu.Unlock()

	n, err := cur.Read(p)

	rs.mu.Lock()
	rs.read += int64(n)
	rs.mu.Unlock()

	if errors.Is(err, io.EOF) && n == 0 {
		return rs.handleRecovery(p)
	}
	return n, err
}

func (rs *RecoveryStream) handleRecovery(p []byte) (int, error) {
	rs.mu.Lock()
	pos := rs.position()
	if rs.closed || rs.expected <= 0 || pos >= rs.expected-recoveryMargin {
		rs.mu.Unlock()
		return 0, io.EOF
	}
	if rs.attempts >= maxRecoveryAttempts {
		rs.mu.Unlock()
		rs.log.Warn().Dur("position", pos).Msg("max recovery attempts reached")
		return 0, io.EOF
	}
	rs.attempts++
	attempt := rs.attempts
	old := rs.current
	rs.mu.Unlock()

	rs.log.Info().Int("attempt", attempt).Dur("position", pos).Dur("expected", rs.expected).
		Msg("input ended prematurely, reopening")
	_ = old.Close()

	rc, err := rs.open(pos)
	if err != nil {
		rs.log.Warn().Err(err).Msg("recovery failed")
		return 0, io.EOF
	}

	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		_ = rc.Close()
		return 0, io.EOF
	}
	rs.current = rc
	rs.mu.Unlock()

	return rs.Read(p)
}

// Close closes the underlying decoder and stops any further recovery.
func (rs *RecoveryStream) Close() error {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return nil
	}
	rs.closed = true
	cur := rs.current
	rs.mu.Unlock()
	return cur.Close()
}
