// package services defines interface Service for interacting with HTTP APIs
//
// Spotify
package services

import (
	"context"

	"golang.org/x/oauth2"
)

// Service defines the interface for music service providers whose libraries feed the clustering pipeline.
type Service interface {
	// Authenticate performs OAuth or API key authentication with the service.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService is a [Service] that authenticates through an OAuth2 authorization code flow.
type OAuthService interface {
	Service

	// GetAuthURL returns the provider login URL carrying state.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the client configuration used to exchange callback codes.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate installs an already obtained token.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}
