package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// EncodeArgs returns the ffmpeg arguments of the AAC (ADTS) direct stream encoder.
func EncodeArgs(bitrateKbps int) []string {
	return []string{
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-i", "pipe:0",
		"-c:a", "libfdk_aac",
		"-b:a", strconv.Itoa(bitrateKbps) + "k",
		"-f", "adts",
		"pipe:1",
	}
}

// Encoder is a running AAC encoder: PCM is written in, ADTS frames are read out.
type Encoder struct {
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	stderr   io.Closer
	cmd      *exec.Cmd
	once     sync.Once
	waitOnce sync.Once
	waitErr  error
}

// StartEncoder spawns the AAC encoder.
func (t *Transcoder) StartEncoder(ctx context.Context, bitrateKbps int) (*Encoder, error) {
	path, err := exec.LookPath(t.Binary)
	if err != nil {
		return nil, ErrNotFound
	}

	cmd := exec.CommandContext(ctx, path, EncodeArgs(bitrateKbps)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdout: %w", err)
	}
	stderr := logStderr(t.log)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = stderr.Close()
		return nil, fmt.Errorf("start aac encoder: %w", err)
	}

	t.log.Debug().Int("pid", cmd.Process.Pid).Int("bitrate", bitrateKbps).Msg("aac encoder started")
	return &Encoder{stdin: stdin, stdout: stdout, stderr: stderr, cmd: cmd}, nil
}

func (e *Encoder) Write(b []byte) (int, error) {
	return e.stdin.Write(b)
}

func (e *Encoder) Read(b []byte) (int, error) {
	return e.stdout.Read(b)
}

// Wait reaps the process. Call it once reading has returned EOF.
func (e *Encoder) Wait() error {
	e.waitOnce.Do(func() {
		e.waitErr = e.cmd.Wait()
		_ = e.stderr.Close()
	})
	return e.waitErr
}

// Close stops the encoder.
func (e *Encoder) Close() error {
	e.once.Do(func() {
		_ = e.stdin.Close()
		if e.cmd.Process != nil {
			_ = e.cmd.Process.Kill()
		}
	})
	return nil
}
