package security

import (
	"context"
	"fmt"
	"log"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GoogleClient builds authenticated Gmail services from stored tokens.
type GoogleClient struct {
	tokens *TokenStore
}

func NewGoogleClient(tokens *TokenStore) *GoogleClient {
	return &GoogleClient{tokens: tokens}
}

func (g *GoogleClient) Tokens() *TokenStore { return g.tokens }

// GmailService returns an authenticated Gmail service for the user.
func (g *GoogleClient) GmailService(ctx context.Context, userID string) (*gmail.Service, error) {
	token, err := g.tokens.ValidToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("security: no valid Gmail token for user %s: %w", userID, err)
	}
	client := g.tokens.Config().Client(ctx, token)
	service, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("security: create Gmail service: %w", err)
	}
	return service, nil
}

// GrantedScopes maps the OAuth scopes we request onto the capability scope
// names the agent's permission mode understands.
func GrantedScopes(oauthScopes []string) []string {
	var out []string
	add := func(s string) {
		for _, v := range out {
			if v == s {
				return
			}
		}
		out = append(out, s)
	}
	for _, s := range oauthScopes {
		switch {
		case strings.HasSuffix(s, "gmail.readonly"), strings.HasSuffix(s, "gmail.modify"):
			add("read")
		case strings.HasSuffix(s, "gmail.compose"):
			add("compose")
		case strings.HasSuffix(s, "gmail.send"):
			add("send")
		}
	}
	return out
}

// ValidateAccess confirms the token actually works by fetching the profile.
func (g *GoogleClient) ValidateAccess(ctx context.Context, userID string) error {
	service, err := g.GmailService(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := service.Users.GetProfile("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("security: Gmail access validation failed: %w", err)
	}
	log.Printf("security: Gmail access validated for user %s", userID)
	return nil
}
