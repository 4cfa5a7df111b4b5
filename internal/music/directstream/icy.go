package directstream

import (
	"io"
	"strings"
	"unicode/utf8"
)

const maxMetaBlocks = 255

// icyWriter interleaves ICY metadata blocks every metaint bytes of audio.
type icyWriter struct {
	w         io.Writer
	metaint   int
	remaining int
	title     func() string
	sent      string
	first     bool
}

func newICYWriter(w io.Writer, metaint int, title func() string) *icyWriter {
	return &icyWriter{w: w, metaint: metaint, remaining: metaint, title: title, first: true}
}

func (iw *icyWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), iw.remaining)
		m, err := iw.w.Write(p[:n])
		written += m
		if err != nil {
			return written, err
		}
		p = p[n:]
		iw.remaining -= n

		if iw.remaining == 0 {
			if _, err := iw.w.Write(iw.block()); err != nil {
				return written, err
			}
			iw.remaining = iw.metaint
		}
	}
	return written, nil
}

// block returns the next metadata block, empty unless the title changed.
func (iw *icyWriter) block() []byte {
	title := iw.title()
	if !iw.first && title == iw.sent {
		return []byte{0}
	}
	iw.first = false
	iw.sent = title
	return metaBlock(title)
}

// metaBlock encodes StreamTitle as a length prefixed, zero padded block.
func metaBlock(title string) []byte {
	title = strings.ReplaceAll(title, "'", "’")
	meta := "StreamTitle='" + title + "';"
	if len(meta) > maxMetaBlocks*16 {
		cut := maxMetaBlocks*16 - 2
		for cut > 0 && !utf8.RuneStart(meta[cut]) {
			cut--
		}
		meta = meta[:cut] + "';"
	}

	blocks := (len(meta) + 15) / 16
	out := make([]byte, 1+blocks*16)
	out[0] = byte(blocks)
	copy(out[1:], meta)
	return out
}
