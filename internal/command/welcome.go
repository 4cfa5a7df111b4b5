package command

import (
	"fmt"
	"strings"
)

// StreamLink returns the user's personal direct stream URL. With reset the
// previous token is revoked first.
func StreamLink(deps *Deps, userID string, reset bool) (string, error) {
	get := deps.Storage.StreamToken
	if reset {
		get = deps.Storage.ResetStreamToken
	}
	token, err := get(userID)
	if err != nil {
		return "", fmt.Errorf("stream token: %w", err)
	}
	return strings.TrimRight(deps.Config.Stream.PublicURL, "/") + "/stream/" + token, nil
}

// WelcomeText renders the welcome message for a user seen for the first time.
func WelcomeText(deps *Deps, userID string) (string, error) {
	msg := deps.Config.Bot.WelcomeMessage
	if !strings.Contains(msg, "{stream_url}") {
		return msg, nil
	}
	link, err := StreamLink(deps, userID, false)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(msg, "{stream_url}", link), nil
}
