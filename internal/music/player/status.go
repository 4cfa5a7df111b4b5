package player

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// status renders the status message, the ICY stream title and the presence
// for the current state.
func (p *Player) status() (message, streamTitle, presence string) {
	info := p.opts.Users.DisplayInfo()

	ids := append(append([]string{}, info.Direct...), info.Queue...)
	if p.state == DJPlaying && p.song != nil && p.song.DJ != "" {
		ids = append(ids, p.song.DJ)
	}
	names := map[string]string{}
	if len(ids) > 0 {
		names = p.opts.Notifier.DisplayNames(ids)
	}
	name := func(id string) string {
		if n, ok := names[id]; ok && n != "" {
			return n
		}
		return id
	}
	join := func(list []string, sep string) string {
		out := make([]string, len(list))
		for i, id := range list {
			out[i] = name(id)
		}
		return strings.Join(out, sep)
	}

	directListeners := fmt.Sprintf("**Direct listeners** (%d/%d)**:** %s",
		len(info.Direct), info.ListenerCount, join(info.Direct, ", "))

	switch p.state {
	case Stopped:
		message = "**Player is stopped**"
		if p.autoTransition != nil {
			message += fmt.Sprintf("\nAutomatic transition into DJ mode after %d seconds",
				int(p.opts.StreamEndTransition.Seconds()))
		}
		streamTitle = "Awkward silence"

	case Streaming:
		message = fmt.Sprintf("**Playing stream:** %s\n%s", p.streamTitle, directListeners)
		streamTitle = p.streamTitle
		presence = fmt.Sprintf("music for %d listener(s)", info.ListenerCount)

	case DJWaiting:
		message = "**Waiting for the first listener**"
		streamTitle = "Hold on a second..."
		presence = "a waiting game :("

	case DJCooldown:
		message = "**Waiting for DJs**, automatic playlist will be initiated in a few seconds"
		streamTitle = "Waiting for DJs"
		presence = "with a countdown clock"

	case DJPlaying:
		sc := p.song
		if sc == nil {
			return "", "", ""
		}
		queuedBy, titleSuffix := "", ""
		if sc.DJ != "" {
			queuedBy = fmt.Sprintf(", **queued by** <@%s>", sc.DJ)
			titleSuffix = ", queued by " + name(sc.DJ)
		}
		_, votes := sc.Counts()
		threshold := int(math.Ceil(p.opts.SkipRatio * float64(info.ListenerCount)))

		message = fmt.Sprintf("**Playing:** [%d] %s, **length** %d:%02d%s\n**Skip votes:** %d/%d %s\n**Queue:** %s",
			sc.SongID, sc.Title, sc.Duration/60, sc.Duration%60, queuedBy,
			votes, threshold, directListeners, join(info.Queue, " -> "))
		streamTitle = sc.Title + titleSuffix
		presence = fmt.Sprintf("songs from DJ queue for %d listener(s)", info.ListenerCount)
	}
	return message, streamTitle, presence
}

// updateStatus edits the status message, or posts a new one and announces the
// new title to direct listeners. Callers hold the transition lock.
func (p *Player) updateStatus(ctx context.Context) {
	message, streamTitle, presence := p.status()
	if message == "" {
		return
	}

	if err := p.opts.Notifier.SetPresence(ctx, presence); err != nil {
		p.log.Debug().Err(err).Msg("failed to change presence")
	}

	if p.statusID != "" {
		if err := p.opts.Notifier.EditStatus(ctx, p.statusID, message); err != nil {
			p.log.Warn().Err(err).Msg("failed to edit the status message")
		} else {
			p.log.Debug().Msg("Status message updated")
		}
		return
	}

	id, err := p.opts.Notifier.SendStatus(ctx, message)
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to send the status message")
		return
	}
	p.statusID = id
	if p.opts.Meta != nil {
		p.opts.Meta.SetMeta(streamTitle)
	}
	p.protection.Store(0)
	p.log.Debug().Msg("New status message created")
}
