package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/user"
)

type (
	// Session is the only durable state of the admin client. The JSON keys are fixed.
	Session struct {
		AccessToken  string     `json:"access_token,omitempty"`
		RefreshToken string     `json:"refresh_token,omitempty"`
		TokenExpiry  time.Time  `json:"token_expiry,omitempty"`
		CurrentUser  *user.User `json:"current_user,omitempty"`
		CurrentRole  string     `json:"current_role,omitempty"`
	}

	Store interface {
		// Load returns an empty session when nothing was saved yet.
		Load() (Session, error)
		Save(sess Session) error
		Clear() error
	}

	fileStore struct {
		mu   sync.Mutex
		path string
	}

	memoryStore struct {
		mu   sync.Mutex
		sess Session
	}
)

var (
	_ Store = (*fileStore)(nil)
	_ Store = (*memoryStore)(nil)
)

// Expired reports whether the access token expired at now. Sessions without a known expiry never expire.
func (s Session) Expired(now time.Time) bool {
	return !s.TokenExpiry.IsZero() && !now.Before(s.TokenExpiry)
}

// NewFileStore persists the session as a JSON file only readable by its owner.
func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

func (fs *fileStore) Load() (Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var sess Session
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sess, nil
		}
		return sess, errors.Wrap(err, "reading session")
	}
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, errors.Wrap(err, "decoding session")
	}
	return sess, nil
}

func (fs *fileStore) Save(sess Session) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return errors.Wrap(err, "creating session dir")
	}
	return errors.Wrap(core.WriteFileAtomic(fs.path, data, 0o600), "writing session")
}

func (fs *fileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session")
	}
	return nil
}

// NewMemoryStore keeps the session in memory, eg. for tests or one-shot commands.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (ms *memoryStore) Load() (Session, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.sess, nil
}

func (ms *memoryStore) Save(sess Session) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sess = sess
	return nil
}

func (ms *memoryStore) Clear() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sess = Session{}
	return nil
}
