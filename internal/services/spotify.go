// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radial/internal/shared"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyOpenURL  = "https://open.spotify.com"
)

// Page and batch limits imposed by the Web API.
const (
	MaxSavedTracksPage    = 50
	MaxPlaylistsPage      = 50
	MaxPlaylistItemsPage  = 100
	MaxAudioFeaturesBatch = 100
	MaxSeveralTracksBatch = 50
	MaxAddTracksBatch     = 100
)

type followers struct {
	Total int `json:"total"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	ExternalURLs externalURLs    `json:"external_urls"`
	IsLocal      bool            `json:"is_local"`
	Popularity   int             `json:"popularity"`
	Type         string          `json:"type"`
	URI          string          `json:"uri"`
}

// ArtistNames joins the artist names with sep.
func (t SpotifyTrack) ArtistNames(sep string) string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, sep)
}

// CoverURL returns the largest album image, which Spotify lists first.
func (t SpotifyTrack) CoverURL() string {
	if len(t.Album.Images) == 0 {
		return ""
	}
	return t.Album.Images[0].URL
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a playlist object. Track items are fetched separately.
type SpotifyPlaylist struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Owner        Owner               `json:"owner"`
	Public       bool                `json:"public"`
	Tracks       simplePlaylistTrack `json:"tracks"`
	ExternalURLs externalURLs        `json:"external_urls"`
	Images       []SpotifyImage      `json:"images"`
	URI          string              `json:"uri"`
}

// WebURL returns the canonical open.spotify.com link for the playlist.
func (p SpotifyPlaylist) WebURL() string {
	if p.ExternalURLs.Spotify != "" {
		return p.ExternalURLs.Spotify
	}
	return PlaylistURL(p.ID)
}

// PlaylistURL builds the canonical web URL for a playlist id.
func PlaylistURL(id string) string {
	return fmt.Sprintf("%s/playlist/%s", spotifyOpenURL, id)
}

// TrackURI builds the spotify:track URI for a track id.
func TrackURI(id string) string {
	return "spotify:track:" + id
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for items that were removed from the catalog.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	IsLocal bool          `json:"is_local"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

// SpotifyPaginatedPlaylistTracks represents a paginated response of playlist items.
type SpotifyPaginatedPlaylistTracks struct {
	Items    []SpotifyPlaylistTrack `json:"items"`
	Total    int                    `json:"total"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
	Next     *string                `json:"next"`
	Previous *string                `json:"previous"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifyPlaylist `json:"items"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
}

// SpotifyOpts tunes transport behavior of a [SpotifyService].
type SpotifyOpts struct {
	BaseURL           string        // API root, defaults to the public Web API
	MaxRetries        int           // Retries after the first attempt for 429, 5xx and network errors
	RetryWait         time.Duration // Base exponential backoff
	RetryMaxWait      time.Duration // Backoff ceiling
	RequestsPerSecond float64       // Client-side request budget, 0 disables limiting
	Logger            *log.Logger
}

// SpotifyService implements the Service interface for Spotify API interactions.
//
// Uses [oauth2] for authentication and [resty] for requests, which retries rate limited and failing calls with backoff.
type SpotifyService struct {
	config         *oauth2.Config
	opts           SpotifyOpts
	limiter        *rate.Limiter
	logger         *log.Logger
	mu             sync.RWMutex
	token          *oauth2.Token
	client         *resty.Client
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts SpotifyOpts) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id in credentials", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret in credentials", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.RetryMaxWait < opts.RetryWait {
		opts.RetryMaxWait = 8 * opts.RetryWait
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"user-library-read",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &SpotifyService{
		config:  config,
		opts:    opts,
		limiter: limiter,
		logger:  shared.WithLogger(opts.Logger, "service", "spotify"),
	}, nil
}

// Authenticate performs OAuth2 authentication with Spotify.
//
// Expects either an "access_token" (optionally with "refresh_token") or an "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		return s.OAuthenticate(ctx, &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		})
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code in credentials", shared.ErrMissingCredentials)
}

// OAuthenticate installs token as the session credential. Expired tokens are refreshed transparently
// and reported through the callback registered with [SpotifyService.SetTokenRefreshCallback].
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: empty token", shared.ErrMissingCredentials)
	}

	src := &refreshableTokenSource{
		source:    s.config.TokenSource(context.WithoutCancel(ctx), token),
		lastToken: token.AccessToken,
		callback:  s.tokenRefreshed,
	}
	httpClient := oauth2.NewClient(context.WithoutCancel(ctx), oauth2.ReuseTokenSource(token, src))

	s.mu.Lock()
	s.token = token
	s.client = s.newRestClient(httpClient)
	s.mu.Unlock()
	return nil
}

// SetTokenRefreshCallback registers fn to receive tokens obtained by refresh, typically to persist them.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

// Token returns the most recent token known to the service.
func (s *SpotifyService) Token() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *SpotifyService) tokenRefreshed(token *oauth2.Token) {
	s.mu.Lock()
	s.token = token
	fn := s.onTokenRefresh
	s.mu.Unlock()

	s.logger.Debug("access token refreshed", "expiry", token.Expiry)
	if fn != nil {
		fn(token)
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 configuration used for the callback exchange.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// newRestClient wraps the OAuth2 HTTP client with retry, backoff and rate limiting.
func (s *SpotifyService) newRestClient(httpClient *http.Client) *resty.Client {
	client := resty.NewWithClient(httpClient).
		SetBaseURL(s.opts.BaseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(s.opts.MaxRetries).
		SetRetryWaitTime(s.opts.RetryWait).
		SetRetryMaxWaitTime(s.opts.RetryMaxWait).
		SetRetryAfter(retryAfter).
		AddRetryCondition(shouldRetry).
		AddRetryHook(func(r *resty.Response, err error) {
			if err != nil || r == nil {
				s.logger.Warn("retrying request after error", "error", err)
				return
			}
			s.logger.Warn("retrying request", "attempt", r.Request.Attempt, "status", r.StatusCode(), "url", r.Request.URL)
		})

	if s.limiter != nil {
		client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			return s.limiter.Wait(r.Context())
		})
	}
	return client
}

// shouldRetry retries network failures, rate limiting and server errors.
//
// Writes are not idempotent, so a POST is only retried on 429 or when the connection was never established.
func shouldRetry(r *resty.Response, err error) bool {
	write := r != nil && r.Request != nil && r.Request.Method == http.MethodPost
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return !write || isDialError(err)
	}
	if r == nil {
		return false
	}
	if r.StatusCode() == http.StatusTooManyRequests {
		return true
	}
	return !write && r.StatusCode() >= http.StatusInternalServerError
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// retryAfter honors the Retry-After header (in seconds) when present.
//
// A zero duration tells resty to fall back to exponential backoff.
func retryAfter(_ *resty.Client, r *resty.Response) (time.Duration, error) {
	if r == nil {
		return 0, nil
	}
	raw := r.Header().Get("Retry-After")
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, nil
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d, nil
		}
	}
	return 0, nil
}

func (s *SpotifyService) restClient() (*resty.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}
	return s.client, nil
}

// doRequest performs an authenticated request to the Spotify API and decodes a JSON result.
//
// Failures are classified into the shared error taxonomy so callers can tell transient exhaustion apart from bad requests.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	client, err := s.restClient()
	if err != nil {
		return err
	}

	req := client.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result).ForceContentType("application/json")
	}

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		switch {
		case errors.As(err, &retrieveErr):
			return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("%s %s: %w", method, endpoint, err)
		default:
			return fmt.Errorf("%w: %s %s: %v", shared.ErrTransientAPI, method, endpoint, err)
		}
	}

	return statusError(method, endpoint, resp)
}

func statusError(method, endpoint string, resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case resp.IsSuccess():
		return nil
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s %s", shared.ErrTokenExpired, method, endpoint)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, method, endpoint)
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s %s: status %d after %d attempts", shared.ErrTransientAPI, method, endpoint, code, resp.Request.Attempt)
	default:
		return fmt.Errorf("%w: %s %s: status %d", shared.ErrAPIRequest, method, endpoint, code)
	}
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SavedTracks retrieves one page of the user's saved tracks.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) (*SpotifyPaginatedTracks, error) {
	limit = clampLimit(limit, MaxSavedTracksPage)
	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// UserPlaylists retrieves one page of the current user's playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	limit = clampLimit(limit, MaxPlaylistsPage)
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// PlaylistTracks retrieves one page of a playlist's items.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*SpotifyPaginatedPlaylistTracks, error) {
	limit = clampLimit(limit, MaxPlaylistItemsPage)
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)

	var response SpotifyPaginatedPlaylistTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// AudioFeatures retrieves audio features for up to 100 tracks.
//
// The result is aligned with trackIDs; entries are nil where Spotify has no analysis for a track.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackIDs []string) ([]*SpotifyAudioFeatures, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("%w: no track IDs provided", shared.ErrMissingArgument)
	}
	if len(trackIDs) > MaxAudioFeaturesBatch {
		return nil, fmt.Errorf("%w: maximum %d track IDs allowed", shared.ErrInvalidArgument, MaxAudioFeaturesBatch)
	}

	endpoint := "/audio-features?ids=" + url.QueryEscape(strings.Join(trackIDs, ","))

	var response struct {
		AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return response.AudioFeatures, nil
}

// SeveralTracks retrieves multiple tracks by their IDs (up to 50).
//
// Entries are nil for ids Spotify could not resolve.
func (s *SpotifyService) SeveralTracks(ctx context.Context, trackIDs []string) ([]*SpotifyTrack, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("%w: no track IDs provided", shared.ErrMissingArgument)
	}
	if len(trackIDs) > MaxSeveralTracksBatch {
		return nil, fmt.Errorf("%w: maximum %d track IDs allowed", shared.ErrInvalidArgument, MaxSeveralTracksBatch)
	}

	endpoint := "/tracks?ids=" + url.QueryEscape(strings.Join(trackIDs, ","))

	var response struct {
		Tracks []*SpotifyTrack `json:"tracks"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// CreatePlaylist creates an empty playlist owned by userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*SpotifyPlaylist, error) {
	if userID == "" || name == "" {
		return nil, fmt.Errorf("%w: user id and playlist name are required", shared.ErrMissingArgument)
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// AddTracks appends up to 100 track URIs to a playlist and returns the new snapshot id.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	if len(uris) == 0 {
		return "", fmt.Errorf("%w: no track URIs provided", shared.ErrMissingArgument)
	}
	if len(uris) > MaxAddTracksBatch {
		return "", fmt.Errorf("%w: maximum %d track URIs allowed", shared.ErrInvalidArgument, MaxAddTracksBatch)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	var response struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := s.doRequest(ctx, http.MethodPost, endpoint, map[string]any{"uris": uris}, &response); err != nil {
		return "", err
	}
	return response.SnapshotID, nil
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports every newly minted access token.
type refreshableTokenSource struct {
	source    oauth2.TokenSource
	callback  func(*oauth2.Token)
	mu        sync.Mutex
	lastToken string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.lastToken
	r.lastToken = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}
