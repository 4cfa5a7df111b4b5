package version

import "runtime"

var (
	AppName        = "DdmBot"
	AppDescription = "Discord Direct Music Bot: DJ queue, personal playlists and a direct stream"
	AppVersion     = "dev"

	// BuildDate is set with -ldflags "-X ddmbot/internal/version.BuildDate=..." in RFC3339.
	BuildDate = ""
	GoVersion = runtime.Version()
)
