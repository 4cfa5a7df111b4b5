package database

import (
	"errors"
	"fmt"
)

var (
	ErrSongNotFound         = errors.New("song not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrIgnoredUser          = errors.New("user is ignored")
	ErrNoActivePlaylist     = errors.New("no active playlist")
	ErrPlaylistEmpty        = errors.New("playlist is empty")
	ErrInvalidPlaylistName  = errors.New("invalid playlist name")
	ErrMergeCycle           = errors.New("songs are already merged")
	ErrTrackWithoutIdentity = errors.New("track has no uuri")
)

// PlaylistNotFoundError is returned when a named playlist does not exist.
type PlaylistNotFoundError struct {
	Name string
}

func (e *PlaylistNotFoundError) Error() string {
	return fmt.Sprintf("You don't have a playlist called %s", e.Name)
}

// DuplicatePlaylistError is returned when the user already owns a playlist
// with the same name.
type DuplicatePlaylistError struct {
	Name string
}

func (e *DuplicatePlaylistError) Error() string {
	return fmt.Sprintf("You already have a playlist called %s", e.Name)
}

// SongSkipError means the head song of a playlist was skipped without being
// played.
type SongSkipError struct {
	SongID int64
	Title  string
	Reason string
}

func (e *SongSkipError) Error() string {
	return fmt.Sprintf("[%d] *%s* %s", e.SongID, e.Title, e.Reason)
}

// UnavailableSongError means the song could not be extracted and was flagged.
type UnavailableSongError struct {
	SongID int64
	Title  string
	Err    error
}

func (e *UnavailableSongError) Error() string {
	return fmt.Sprintf("song [%d] %s is unavailable: %v", e.SongID, e.Title, e.Err)
}

func (e *UnavailableSongError) Unwrap() error {
	return e.Err
}
