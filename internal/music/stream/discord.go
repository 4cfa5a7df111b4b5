package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"
)

const (
	sampleRate = 48000
	channels   = 2
)

// NewOpusEncoder returns a 48 kHz stereo opus encoder tuned for music.
func NewOpusEncoder() (*gopus.Encoder, error) {
	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}
	return encoder, nil
}

// DiscordVoice forwards opus packets to whichever voice connection is current.
// The connection is swapped on reconnects.
type DiscordVoice struct {
	mu sync.RWMutex
	vc *discordgo.VoiceConnection
}

func (d *DiscordVoice) Set(vc *discordgo.VoiceConnection) {
	d.mu.Lock()
	d.vc = vc
	d.mu.Unlock()
}

func (d *DiscordVoice) Connection() *discordgo.VoiceConnection {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.vc
}

func (d *DiscordVoice) Ready() bool {
	vc := d.Connection()
	if vc == nil {
		return false
	}
	vc.RLock()
	defer vc.RUnlock()
	return vc.Ready
}

// Send waits at most one frame period for the voice sender to take the packet.
func (d *DiscordVoice) Send(opus []byte) {
	vc := d.Connection()
	if vc == nil || vc.OpusSend == nil {
		return
	}
	timer := time.NewTimer(FramePeriod)
	defer timer.Stop()
	select {
	case vc.OpusSend <- opus:
	case <-timer.C:
	}
}

// Speaking toggles the speaking indicator when connected.
func (d *DiscordVoice) Speaking(on bool) {
	if vc := d.Connection(); vc != nil {
		_ = vc.Speaking(on)
	}
}
