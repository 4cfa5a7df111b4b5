// Package ffmpeg runs the ffmpeg processes that decode songs into raw PCM
// and encode the direct stream into AAC.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ddmbot/internal/logging"
)

const (
	SampleRate = 48000
	Channels   = 2
)

var (
	// ErrNotFound is returned when the ffmpeg binary is missing.
	ErrNotFound = errors.New("ffmpeg executable was not found")
	// ErrPipeSizeLimit is returned when the kernel refuses the requested pipe size.
	ErrPipeSizeLimit = errors.New("required PCM pipe size is over the system limit, see 'pcm_pipe_size' in the configuration file")
)

// Transcoder decodes media URLs into 48 kHz stereo s16le PCM.
type Transcoder struct {
	Binary   string
	PipeSize int
	log      zerolog.Logger
}

func NewTranscoder(pipeSize int) *Transcoder {
	return &Transcoder{
		Binary:   "ffmpeg",
		PipeSize: pipeSize,
		log:      logging.Component("ffmpeg"),
	}
}

// Process is a running decoder. Reading returns PCM, Close kills it.
type Process struct {
	out  *os.File
	cmd  *exec.Cmd
	once sync.Once
	done chan struct{}
}

func (p *Process) Read(b []byte) (int, error) {
	return p.out.Read(b)
}

// Close kills ffmpeg and releases the pipe. It is safe to call repeatedly.
func (p *Process) Close() error {
	p.once.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-p.done
		_ = p.out.Close()
	})
	return nil
}

// DecodeArgs returns the ffmpeg arguments used to decode input, starting at seek.
func DecodeArgs(input string, seek time.Duration) []string {
	args := []string{"-reconnect", "1", "-reconnect_delay_max", "3", "-loglevel", "error"}
	if seek > 0 {
		args = append(args, "-ss", strconv.FormatFloat(seek.Seconds(), 'f', 3, 64))
	}
	return append(args,
		"-i", input,
		"-y", "-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"pipe:1",
	)
}

// Start spawns ffmpeg for the input. Its output goes through a pipe sized to
// hold PipeSize bytes.
func (t *Transcoder) Start(ctx context.Context, input string, seek time.Duration) (*Process, error) {
	path, err := exec.LookPath(t.Binary)
	if err != nil {
		return nil, ErrNotFound
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create pcm pipe: %w", err)
	}
	if t.PipeSize > 0 {
		if err := setPipeSize(w, t.PipeSize); err != nil {
			_ = r.Close()
			_ = w.Close()
			return nil, err
		}
	}

	cmd := exec.CommandContext(ctx, path, DecodeArgs(input, seek)...)
	cmd.Stdout = w
	stderr := logStderr(t.log)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		_ = stderr.Close()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	// the child holds its own copy of the write end
	_ = w.Close()

	p := &Process{out: r, cmd: cmd, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		if err := cmd.Wait(); err != nil {
			t.log.Debug().Err(err).Msg("ffmpeg exited")
		}
		_ = stderr.Close()
	}()

	t.log.Debug().Int("pid", cmd.Process.Pid).Msg("ffmpeg started")
	return p, nil
}

// Decode is Start behind an io.ReadCloser.
func (t *Transcoder) Decode(ctx context.Context, input string, seek time.Duration) (io.ReadCloser, error) {
	p, err := t.Start(ctx, input, seek)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// logStderr forwards ffmpeg's stderr lines to the log until the writer is closed.
func logStderr(log zerolog.Logger) *io.PipeWriter {
	pr, pw := io.Pipe()
	go func() {
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			log.Warn().Str("stderr", scanner.Text()).Msg("ffmpeg")
		}
		_ = pr.Close()
	}()
	return pw
}
