package storage

import (
	"fmt"

	"github.com/google/uuid"
)

func (s *Storage) streamRecord() (*streamRecord, error) {
	var record streamRecord
	if _, err := s.ds.Get(streamKey, &record); err != nil {
		return nil, fmt.Errorf("error decoding stream record: %w", err)
	}
	if record.Tokens == nil {
		record.Tokens = map[string]string{}
	}
	return &record, nil
}

// StreamToken returns the user's personal direct stream token, creating one
// on first use.
func (s *Storage) StreamToken(userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.streamRecord()
	if err != nil {
		return "", err
	}
	for token, owner := range record.Tokens {
		if owner == userID {
			return token, nil
		}
	}

	token := uuid.NewString()
	record.Tokens[token] = userID
	if err := s.ds.Put(streamKey, record); err != nil {
		return "", err
	}
	return token, nil
}

// ResetStreamToken drops the user's current token and issues a new one.
func (s *Storage) ResetStreamToken(userID string) (string, error) {
	s.mu.Lock()
	record, err := s.streamRecord()
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	for token, owner := range record.Tokens {
		if owner == userID {
			delete(record.Tokens, token)
		}
	}
	err = s.ds.Put(streamKey, record)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.StreamToken(userID)
}

// StreamTokenOwner resolves a token to its user ID.
func (s *Storage) StreamTokenOwner(token string) (string, bool, error) {
	if _, err := uuid.Parse(token); err != nil {
		return "", false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.streamRecord()
	if err != nil {
		return "", false, err
	}
	owner, ok := record.Tokens[token]
	return owner, ok, nil
}
