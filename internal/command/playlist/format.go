package playlist

import (
	"fmt"
	"strings"

	"ddmbot/internal/database"
)

// PageSize is the number of songs listed per request.
const PageSize = 20

var (
	repeatOn  = []string{"on", "true", "1", "repeat"}
	repeatOff = []string{"off", "false", "0", "remove"}
)

// ordinal renders 1 as 1st, 2 as 2nd, 11 as 11th and so on.
func ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// parseRepeat maps a repeat policy word to the setting.
func parseRepeat(policy string) (bool, bool) {
	policy = strings.ToLower(strings.TrimSpace(policy))
	for _, w := range repeatOn {
		if policy == w {
			return true, true
		}
	}
	for _, w := range repeatOff {
		if policy == w {
			return false, true
		}
	}
	return false, false
}

func repeatHelp() string {
	return fmt.Sprintf("Valid options are:\n    '%s'\nor\n    '%s'\nrespectively",
		strings.Join(repeatOn, "', '"), strings.Join(repeatOff, "', '"))
}

func listText(items []database.Playlist) string {
	if len(items) == 0 {
		return "**You don't have any playlists**"
	}
	lines := make([]string, len(items))
	for i, p := range items {
		policy := "removed after playing"
		if p.Repeat {
			policy = "repeated"
		}
		lines[i] = fmt.Sprintf("%s (%d song(s), songs are %s)", p.Name, p.SongCount, policy)
	}
	return fmt.Sprintf("**You currently have %d playlist(s):**\n **>** ", len(items)) +
		strings.Join(lines, "\n **>** ")
}

func showText(page *database.PlaylistPage, start int) string {
	name := page.Playlist.Name
	if len(page.Items) == 0 {
		if start == 1 || page.Total == 0 {
			return fmt.Sprintf("**Playlist** %s **is empty**", name)
		}
		return fmt.Sprintf("**There are no songs in the playlist** %s **, starting from the** %s **song**",
			name, ordinal(start))
	}

	lines := make([]string, len(page.Items))
	for i, item := range page.Items {
		lines[i] = fmt.Sprintf("[%d] %s", item.SongID, item.Title)
	}
	return fmt.Sprintf("**%d songs (out of %d) from playlist** %s**, starting from the **%s**:**\n **>** ",
		len(page.Items), page.Total, name, ordinal(start)) + strings.Join(lines, "\n **>** ")
}

func addText(res *database.AddResult) string {
	var sb strings.Builder
	if res.Created {
		fmt.Fprintf(&sb, "**Playlist** %s **was created and set as active**\n", res.Playlist)
	}
	fmt.Fprintf(&sb, "**%d song(s) added to the playlist** %s", res.Added, res.Playlist)
	if len(res.Skipped) > 0 {
		fmt.Fprintf(&sb, "\n**%d song(s) skipped (blacklisted or too long):** %s",
			len(res.Skipped), strings.Join(res.Skipped, ", "))
	}
	return sb.String()
}
