package withings

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// storedTokens is the on-disk shape of the token file. The last-sync
// bookmark lives here too so one file carries all per-user state.
type storedTokens struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	LastSync     int64     `json:"last_sync,omitempty"`
}

// tokenStore persists OAuth tokens and the last-sync bookmark to a JSON
// file. A missing file reads as an empty store.
type tokenStore struct {
	path   string
	tokens storedTokens
}

func newTokenStore(path string) (*tokenStore, error) {
	store := &tokenStore{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading token file")
	}
	if err := json.Unmarshal(data, &store.tokens); err != nil {
		return nil, errors.Wrapf(err, "parsing token file %s", path)
	}
	return store, nil
}

func (s *tokenStore) save() error {
	data, err := json.MarshalIndent(s.tokens, "", "  ")
	if err != nil {
		return err
	}
	// Tokens grant account access; keep the file owner-only.
	return errors.Wrap(os.WriteFile(s.path, data, 0o600), "writing token file")
}

func (s *tokenStore) token() *oauth2.Token {
	if s.tokens.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.tokens.AccessToken,
		RefreshToken: s.tokens.RefreshToken,
		Expiry:       s.tokens.Expiry,
	}
}

func (s *tokenStore) setToken(tok *oauth2.Token, userID string) error {
	s.tokens.AccessToken = tok.AccessToken
	s.tokens.RefreshToken = tok.RefreshToken
	s.tokens.Expiry = tok.Expiry
	if userID != "" {
		s.tokens.UserID = userID
	}
	return s.save()
}

func (s *tokenStore) lastSync() (time.Time, bool) {
	if s.tokens.LastSync == 0 {
		return time.Time{}, false
	}
	return time.Unix(s.tokens.LastSync, 0), true
}

func (s *tokenStore) setLastSync(t time.Time) error {
	s.tokens.LastSync = t.Unix()
	return s.save()
}
