//go:build !linux

package ffmpeg

import "os"

// Pipe sizing is a Linux feature, other systems keep their default.
func setPipeSize(*os.File, int) error {
	return nil
}
