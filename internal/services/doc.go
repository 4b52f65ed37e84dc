// Package services defines the [Service] interface for music streaming providers and implements it for Spotify.
//
// # Service Interface
//
// Providers authenticate through a common abstraction. [OAuthService] adds the authorization code flow used by the
// login command and the HTTP callback.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Client] automatically refreshes expired tokens using the refresh token, and every refreshed token is
// handed to the callback set with [SpotifyService.SetTokenRefreshCallback] so it can be persisted.
//
// Requests go through a [resty.Client] which:
//   - waits on a client-side rate limiter before each attempt
//   - retries 429, 5xx and network failures with exponential backoff, honoring Retry-After
//   - classifies the final failure as [shared.ErrTokenExpired], [shared.ErrNotFound], [shared.ErrTransientAPI]
//     or [shared.ErrAPIRequest]
//
// Batch endpoints enforce the Web API limits ([MaxAudioFeaturesBatch], [MaxAddTracksBatch], ...) and reject
// oversized input with [shared.ErrInvalidArgument] instead of issuing the request.
package services
