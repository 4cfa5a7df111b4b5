//go:build linux

package ffmpeg

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func setPipeSize(f *os.File, size int) error {
	if _, err := unix.FcntlInt(f.Fd(), unix.F_SETPIPE_SZ, size); err != nil {
		if errors.Is(err, unix.EPERM) {
			return ErrPipeSizeLimit
		}
		return fmt.Errorf("set pcm pipe size: %w", err)
	}
	return nil
}
