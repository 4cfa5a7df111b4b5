package config

// CategoryWeights orders command categories in /help.
var CategoryWeights = map[string]int{
	"🕯️ Information": 0,
	"🎵 Player":       10,
	"🎧 DJ Queue":     20,
	"📜 Playlists":    30,
	"💿 Songs":        40,
	"👥 Users":        50,
	"🛠️ Maintenance": 60,
}
