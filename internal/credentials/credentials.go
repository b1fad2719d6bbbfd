package credentials

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cuecard/internal/domain"
	"cuecard/internal/ports"
)

// LocalBearerToken stands in for the user's token when no hosted backend is
// configured. Outbound never hands it to remote endpoints.
const LocalBearerToken = "local-session"

var (
	_ ports.TokenStore         = (*TokenStore)(nil)
	_ ports.CredentialProvider = Static("")
)

// TokenStore holds the bearer token for the current user.
type TokenStore struct {
	mu          sync.RWMutex
	token       string
	placeholder bool
}

func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: strings.TrimSpace(token)}
}

// ForMode returns a store for token, falling back to LocalBearerToken when
// offline and no token is set.
func ForMode(token string, offline bool) *TokenStore {
	store := NewTokenStore(token)
	if offline && store.token == "" {
		store.token = LocalBearerToken
		store.placeholder = true
	}
	return store
}

func (s *TokenStore) BearerToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Set replaces the token. An empty token signs the user out.
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.placeholder = false
	s.mu.Unlock()
}

// Outbound returns a view of s for requests that leave the process. It
// reports no token while s holds the local placeholder.
func (s *TokenStore) Outbound() ports.TokenStore {
	return outboundTokens{store: s}
}

type outboundTokens struct {
	store *TokenStore
}

func (o outboundTokens) BearerToken() (string, bool) {
	o.store.mu.RLock()
	defer o.store.mu.RUnlock()
	if o.store.placeholder || o.store.token == "" {
		return "", false
	}
	return o.store.token, true
}

// Static vends a fixed speech credential such as DEEPGRAM_API_KEY.
type Static string

func (s Static) TranscriptionCredential(context.Context) (string, error) {
	key := strings.TrimSpace(string(s))
	if key == "" {
		return "", fmt.Errorf("%w: DEEPGRAM_API_KEY is not set", domain.ErrConfiguration)
	}
	return key, nil
}
