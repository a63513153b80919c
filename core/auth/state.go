package auth

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core/apiclient"
	"github.com/trezcool/masomo-admin/storage/session"
)

// State is the current session, cached in memory and written through to its store.
// It is the token source of the API client.
type State struct {
	mu    sync.RWMutex
	store session.Store
	sess  session.Session
}

var _ apiclient.TokenSource = (*State)(nil)

// LoadState reads the persisted session.
func LoadState(store session.Store) (*State, error) {
	sess, err := store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "loading session")
	}
	return &State{store: store, sess: sess}, nil
}

func (st *State) AccessToken() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sess.AccessToken
}

func (st *State) Session() session.Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sess
}

func (st *State) save(sess session.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.store.Save(sess); err != nil {
		return errors.Wrap(err, "saving session")
	}
	st.sess = sess
	return nil
}

func (st *State) clear() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.sess = session.Session{}
	return errors.Wrap(st.store.Clear(), "clearing session")
}
