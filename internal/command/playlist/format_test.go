package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ddmbot/internal/database"
)

func TestOrdinal(t *testing.T) {
	cases := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th",
		21: "21st", 22: "22nd", 101: "101st", 111: "111th", 112: "112th",
	}
	for n, want := range cases {
		assert.Equal(t, want, ordinal(n), n)
	}
}

func TestParseRepeat(t *testing.T) {
	for _, w := range []string{"on", "TRUE", "1", "repeat"} {
		v, ok := parseRepeat(w)
		assert.True(t, ok, w)
		assert.True(t, v, w)
	}
	for _, w := range []string{"off", "false", "0", "remove"} {
		v, ok := parseRepeat(w)
		assert.True(t, ok, w)
		assert.False(t, v, w)
	}
	_, ok := parseRepeat("maybe")
	assert.False(t, ok)
}

func TestListText(t *testing.T) {
	assert.Equal(t, "**You don't have any playlists**", listText(nil))
	got := listText([]database.Playlist{
		{Name: "default", SongCount: 2},
		{Name: "rock", SongCount: 5, Repeat: true},
	})
	assert.Equal(t, "**You currently have 2 playlist(s):**\n **>** default (2 song(s), songs are removed after playing)"+
		"\n **>** rock (5 song(s), songs are repeated)", got)
}

func TestShowText(t *testing.T) {
	empty := &database.PlaylistPage{Playlist: database.Playlist{Name: "rock"}}
	assert.Equal(t, "**Playlist** rock **is empty**", showText(empty, 1))

	past := &database.PlaylistPage{Playlist: database.Playlist{Name: "rock"}, Total: 3}
	assert.Equal(t, "**There are no songs in the playlist** rock **, starting from the** 21st **song**", showText(past, 21))

	page := &database.PlaylistPage{
		Playlist: database.Playlist{Name: "rock"},
		Total:    30,
		Items:    []database.PlaylistItem{{SongID: 7, Title: "A"}, {SongID: 9, Title: "B"}},
	}
	assert.Equal(t, "**2 songs (out of 30) from playlist** rock**, starting from the **2nd**:**\n **>** [7] A\n **>** [9] B",
		showText(page, 2))
}

func TestAddText(t *testing.T) {
	got := addText(&database.AddResult{Playlist: "default", Created: true, Added: 2, Skipped: []string{"Long"}})
	assert.Equal(t, "**Playlist** default **was created and set as active**\n"+
		"**2 song(s) added to the playlist** default\n"+
		"**1 song(s) skipped (blacklisted or too long):** Long", got)
}
