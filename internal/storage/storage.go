// /internal/storage/storage.go
package storage

import (
	"fmt"
	"sync"
	"time"

	"ddmbot/datastore"
)

const (
	commandHistoryLimit int = 20

	streamKey = "direct_stream"
)

// Storage keeps bot runtime state that does not belong in the music database:
// command history, registered command hashes, player volume and direct
// stream tokens.
type Storage struct {
	ds *datastore.DataStore
	mu sync.Mutex
}

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Param       string    `json:"param"`
	Datetime    time.Time `json:"datetime"`
}

// Record is the per-guild state.
type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
	CommandHashes       map[string]string      `json:"command_hashes"`
	Volume              *int                   `json:"volume,omitempty"`
}

type streamRecord struct {
	Tokens map[string]string `json:"tokens"` // token -> user ID
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

// NewWithStore wraps an already opened datastore.
func NewWithStore(ds *datastore.DataStore) *Storage {
	return &Storage{ds: ds}
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// getOrCreateGuildRecord must be called with s.mu held.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	var record Record
	exists, err := s.ds.Get(guildID, &record)
	if err != nil {
		return nil, fmt.Errorf("error decoding guild record: %w", err)
	}
	if !exists {
		record = Record{CommandsHistoryList: []CommandHistoryRecord{}}
	}

	if record.CommandHashes == nil {
		record.CommandHashes = map[string]string{}
	}
	if len(record.CommandsHistoryList) > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[len(record.CommandsHistoryList)-commandHistoryLimit:]
	}

	return &record, nil
}

// AppendCommandToHistory appends a command history record for a guild
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.CommandsHistoryList = append(record.CommandsHistoryList, command)
	if len(record.CommandsHistoryList) > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[len(record.CommandsHistoryList)-commandHistoryLimit:]
	}
	return s.ds.Put(guildID, record)
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}

// CommandHashes returns the hashes of the slash command definitions last
// registered in the guild.
func (s *Storage) CommandHashes(guildID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandHashes, nil
}

func (s *Storage) SetCommandHashes(guildID string, hashes map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	record.CommandHashes = hashes
	return s.ds.Put(guildID, record)
}

// Volume returns the persisted player volume in percent, if any.
func (s *Storage) Volume(guildID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return 0, false, err
	}
	if record.Volume == nil {
		return 0, false, nil
	}
	return *record.Volume, true, nil
}

func (s *Storage) SetVolume(guildID string, percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	record.Volume = &percent
	return s.ds.Put(guildID, record)
}
