package feed

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// LastConversationStore remembers which conversation was open so a client can
// restore it on the next start. It is a hint, never a source of truth.
type LastConversationStore interface {
	Load() (peerID uint, ok bool, err error)
	Save(peerID uint) error
	Clear() error
}

// FileLastConversationStore keeps the hint in a small JSON file.
type FileLastConversationStore struct {
	Path string
	mu   sync.Mutex
}

type lastConversation struct {
	PeerID uint `json:"peer_id"`
}

func NewFileLastConversationStore(path string) *FileLastConversationStore {
	return &FileLastConversationStore{Path: path}
}

// DefaultLastConversationPath is ~/.homehive/last_conversation.json, or a file
// in the working directory when the home directory is unknown.
func DefaultLastConversationPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "last_conversation.json"
	}
	return filepath.Join(home, ".homehive", "last_conversation.json")
}

func (s *FileLastConversationStore) Load() (uint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var v lastConversation
	// A corrupt hint is treated as absent.
	if err := json.Unmarshal(data, &v); err != nil || v.PeerID == 0 {
		return 0, false, nil
	}
	return v.PeerID, true, nil
}

func (s *FileLastConversationStore) Save(peerID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(lastConversation{PeerID: peerID})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

func (s *FileLastConversationStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
