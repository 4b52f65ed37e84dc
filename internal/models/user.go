package models

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// User is a Spotify listener and the OAuth tokens used to act on their behalf.
type User struct {
	entity
	spotifyID    string
	displayName  string
	accessToken  string
	refreshToken string
	tokenExpiry  *time.Time
}

// NewUser creates a [User] for the given Spotify account.
func NewUser(sequence int, spotifyID, displayName string) *User {
	return &User{entity: newEntity(sequence), spotifyID: spotifyID, displayName: displayName}
}

func (u *User) SpotifyID() string       { return u.spotifyID }
func (u *User) DisplayName() string     { return u.displayName }
func (u *User) AccessToken() string     { return u.accessToken }
func (u *User) RefreshToken() string    { return u.refreshToken }
func (u *User) TokenExpiry() *time.Time { return u.tokenExpiry }

func (u *User) SetDisplayName(name string) { u.displayName = name }

// SetToken stores the OAuth token fields. A refresh response without a refresh token keeps the previous one.
func (u *User) SetToken(token *oauth2.Token) {
	if token == nil {
		return
	}
	u.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		u.refreshToken = token.RefreshToken
	}
	if token.Expiry.IsZero() {
		u.tokenExpiry = nil
	} else {
		expiry := token.Expiry
		u.tokenExpiry = &expiry
	}
}

// Token rebuilds the [oauth2.Token] for this user, or nil when none is stored.
func (u *User) Token() *oauth2.Token {
	if u.accessToken == "" && u.refreshToken == "" {
		return nil
	}
	token := &oauth2.Token{
		AccessToken:  u.accessToken,
		RefreshToken: u.refreshToken,
		TokenType:    "Bearer",
	}
	if u.tokenExpiry != nil {
		token.Expiry = *u.tokenExpiry
	}
	return token
}

// Validate checks required fields.
func (u *User) Validate() error {
	if u.spotifyID == "" {
		return fmt.Errorf("spotify id is required")
	}
	return nil
}
