package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zhouzirui/ragebot/backend/internal/model/chat"
	"github.com/zhouzirui/ragebot/backend/internal/model/user"
)

// FileStore keeps every user, chat history included, in a single JSON file.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	users []user.User
}

var _ user.Store = (*FileStore)(nil)

// NewFileStore loads path, treating a missing file as an empty store.
func NewFileStore(path string) (*FileStore, error) {
	store := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user file: %w", err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return store, nil
	}
	if err := json.Unmarshal(data, &store.users); err != nil {
		return nil, fmt.Errorf("failed to decode user file: %w", err)
	}
	return store, nil
}

// Create appends u after checking the email is unused.
func (s *FileStore) Create(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexByEmail(u.Email) >= 0 {
		return user.User{}, user.ErrEmailTaken
	}
	if u.ChatHistory == nil {
		u.ChatHistory = []chat.Record{}
	}

	next := append(append([]user.User(nil), s.users...), u)
	if err := s.flush(next); err != nil {
		return user.User{}, err
	}
	s.users = next
	return cloneUser(u), nil
}

// FindByEmail looks a user up by email.
func (s *FileStore) FindByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexByEmail(email)
	if idx < 0 {
		return user.User{}, user.ErrUserNotFound
	}
	return cloneUser(s.users[idx]), nil
}

// FindByID looks a user up by id.
func (s *FileStore) FindByID(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexByID(id)
	if idx < 0 {
		return user.User{}, user.ErrUserNotFound
	}
	return cloneUser(s.users[idx]), nil
}

// AppendSession adds record to the end of the user's history.
func (s *FileStore) AppendSession(_ context.Context, userID string, record chat.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexByID(userID)
	if idx < 0 {
		return user.ErrUserNotFound
	}

	next := append([]user.User(nil), s.users...)
	updated := cloneUser(next[idx])
	updated.ChatHistory = append(updated.ChatHistory, record)
	next[idx] = updated

	if err := s.flush(next); err != nil {
		return err
	}
	s.users = next
	return nil
}

// Sessions returns the user's saved records in save order.
func (s *FileStore) Sessions(ctx context.Context, userID string) ([]chat.Record, error) {
	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.ChatHistory, nil
}

// Close is a no-op; every mutation is flushed immediately.
func (s *FileStore) Close() error {
	return nil
}

// flush writes users to a temp file next to path and renames it into place.
func (s *FileStore) flush(users []user.User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode users: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create user directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".users-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write users: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace user file: %w", err)
	}
	return nil
}

func (s *FileStore) indexByEmail(email string) int {
	for i, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return i
		}
	}
	return -1
}

func (s *FileStore) indexByID(id string) int {
	for i, u := range s.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func cloneUser(u user.User) user.User {
	history := make([]chat.Record, len(u.ChatHistory))
	for i, record := range u.ChatHistory {
		record.Messages = append([]chat.Bubble(nil), record.Messages...)
		history[i] = record
	}
	u.ChatHistory = history
	return u
}
