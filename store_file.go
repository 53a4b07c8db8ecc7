package tinychat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var _ Store = &FileStore{}

// FileStore persists each session as one pretty-printed JSON file named
// <id>.json under a single directory, so the history stays human-inspectable.
// Saves go through a temp file and a rename, which keeps readers from ever
// seeing a half-written sequence.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates the chat directory if needed and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chat directory: %w", errors.Join(ErrStorage, err))
	}
	return &FileStore{dir: dir, logger: slog.Default()}, nil
}

func (s *FileStore) Create(ctx context.Context) (string, error) {
	id := NewSessionID()
	if err := s.Save(ctx, id, []Message{}); err != nil {
		return "", err
	}
	s.logger.Info("Chat created", "sessionID", id)
	return id, nil
}

func (s *FileStore) Load(ctx context.Context, id string) ([]Message, error) {
	content, err := os.ReadFile(s.chatFile(id))
	if err != nil {
		if os.IsNotExist(err) {
			// First touch or an unknown id: an empty history, not an error.
			return []Message{}, nil
		}
		return nil, fmt.Errorf("failed to read chat file: %w", errors.Join(ErrStorage, err))
	}
	var messages []Message
	if err := json.Unmarshal(content, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode chat file: %w", errors.Join(ErrStorage, err))
	}
	return messages, nil
}

func (s *FileStore) Save(ctx context.Context, id string, messages []Message) error {
	content, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp chat file: %w", errors.Join(ErrStorage, err))
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write chat file: %w", errors.Join(ErrStorage, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close chat file: %w", errors.Join(ErrStorage, err))
	}
	if err := os.Rename(tmp.Name(), s.chatFile(id)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace chat file: %w", errors.Join(ErrStorage, err))
	}
	s.logger.Debug("Chat saved", "sessionID", id, "messages", len(messages))
	return nil
}

func (s *FileStore) ListSessions(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat directory: %w", errors.Join(ErrStorage, err))
	}
	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

func (s *FileStore) chatFile(id string) string {
	return filepath.Join(s.dir, id+".json")
}
