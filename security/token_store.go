// Package security handles Google OAuth for the mailbox: authorization
// flow, Redis-backed token persistence, and refresh.
package security

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

// GmailScopes requested during authorization: read, compose drafts, send.
var GmailScopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailComposeScope,
	gmail.GmailSendScope,
}

const (
	tokenTTL    = 30 * 24 * time.Hour
	stateTTL    = 10 * time.Minute
	refreshSkew = 5 * time.Minute
)

// storedToken is the Redis representation of an OAuth token.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	UserID       string    `json:"user_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TokenStore persists per-user Gmail OAuth tokens in Redis and drives the
// authorization-code flow with CSRF state tokens.
type TokenStore struct {
	rdb    *redis.Client
	config *oauth2.Config
}

func NewTokenStore(rdb *redis.Client, clientID, clientSecret, redirectURL string) *TokenStore {
	return &TokenStore{
		rdb: rdb,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       GmailScopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// Config exposes the OAuth config for building authenticated HTTP clients.
func (ts *TokenStore) Config() *oauth2.Config { return ts.config }

func tokenKey(userID string) string { return "mailpilot:oauth:token:" + userID }
func stateKey(state string) string  { return "mailpilot:oauth:state:" + state }

// AuthURL generates an authorization URL with a CSRF state parameter bound
// to the user for ten minutes.
func (ts *TokenStore) AuthURL(ctx context.Context, userID string) (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("security: generate state: %w", err)
	}
	state := base64.URLEncoding.EncodeToString(raw)

	if err := ts.rdb.Set(ctx, stateKey(state), userID, stateTTL).Err(); err != nil {
		return "", "", fmt.Errorf("security: store oauth state: %w", err)
	}
	url := ts.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	return url, state, nil
}

// ResolveState returns the user the state token was issued for.
func (ts *TokenStore) ResolveState(ctx context.Context, state string) (string, error) {
	userID, err := ts.rdb.Get(ctx, stateKey(state)).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("security: invalid or expired state parameter")
	} else if err != nil {
		return "", fmt.Errorf("security: resolve oauth state: %w", err)
	}
	return userID, nil
}

// Exchange validates the state, trades the code for a token, and persists
// it. Returns the user the token belongs to.
func (ts *TokenStore) Exchange(ctx context.Context, code, state string) (string, error) {
	userID, err := ts.ResolveState(ctx, state)
	if err != nil {
		return "", err
	}
	defer ts.rdb.Del(ctx, stateKey(state))

	token, err := ts.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("security: exchange code: %w", err)
	}
	if err := ts.Store(ctx, userID, token); err != nil {
		return "", err
	}
	return userID, nil
}

// Store writes the token with a 30 day TTL; refresh extends it on access.
func (ts *TokenStore) Store(ctx context.Context, userID string, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("security: token cannot be nil")
	}
	data, err := json.Marshal(storedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
		UserID:       userID,
		UpdatedAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("security: marshal token: %w", err)
	}
	if err := ts.rdb.Set(ctx, tokenKey(userID), data, tokenTTL).Err(); err != nil {
		return fmt.Errorf("security: store token: %w", err)
	}
	log.Printf("security: stored Gmail token for user %s", userID)
	return nil
}

// Get retrieves the stored token without refreshing.
func (ts *TokenStore) Get(ctx context.Context, userID string) (*oauth2.Token, error) {
	data, err := ts.rdb.Get(ctx, tokenKey(userID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("security: no token for user %s", userID)
	} else if err != nil {
		return nil, fmt.Errorf("security: retrieve token: %w", err)
	}
	var st storedToken
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("security: unmarshal token: %w", err)
	}
	return &oauth2.Token{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		TokenType:    st.TokenType,
		Expiry:       st.Expiry,
	}, nil
}

// ValidToken returns a token good for at least five more minutes,
// refreshing through the OAuth endpoint when needed.
func (ts *TokenStore) ValidToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	token, err := ts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if token.Expiry.After(time.Now().Add(refreshSkew)) {
		return token, nil
	}

	log.Printf("security: token for user %s near expiry, refreshing", userID)
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("security: no refresh token for user %s", userID)
	}
	// Force the cached token to look expired so the TokenSource refreshes.
	if token.Expiry.After(time.Now()) {
		token.Expiry = time.Now().Add(-time.Minute)
	}
	fresh, err := ts.config.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, fmt.Errorf("security: refresh token: %w", err)
	}
	if err := ts.Store(ctx, userID, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Delete revokes local access by dropping the stored token.
func (ts *TokenStore) Delete(ctx context.Context, userID string) error {
	if err := ts.rdb.Del(ctx, tokenKey(userID)).Err(); err != nil {
		return fmt.Errorf("security: delete token: %w", err)
	}
	log.Printf("security: deleted Gmail token for user %s", userID)
	return nil
}

// HasToken reports whether a token exists for the user.
func (ts *TokenStore) HasToken(ctx context.Context, userID string) bool {
	n, err := ts.rdb.Exists(ctx, tokenKey(userID)).Result()
	return err == nil && n > 0
}
