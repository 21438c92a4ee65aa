// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/coaster/internal/models"
	"github.com/desertthunder/coaster/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

type followers struct {
	Total int `json:"total"`
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
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
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

// SpotifyPlaybackState represents the /me/player response.
type SpotifyPlaybackState struct {
	IsPlaying bool          `json:"is_playing"`
	Item      *SpotifyTrack `json:"item"`
	Device    struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		IsActive bool   `json:"is_active"`
	} `json:"device"`
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [oauth2] for authentication and provides methods for library and playback operations.
type SpotifyService struct {
	config      *oauth2.Config
	token       *oauth2.Token
	httpClient  *http.Client
	credentials map[string]string
	baseURL     string
	market      string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("missing client_id in credentials")
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("missing client_secret in credentials")
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:8888/callback"
	}

	market, ok := credentials["market"]
	if !ok || market == "" {
		market = "US"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-library-read",
			"user-read-playback-state",
			"user-modify-playback-state",
			"user-read-currently-playing",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		credentials: credentials,
		baseURL:     spotifyBaseURL,
		market:      market,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		token := &oauth2.Token{AccessToken: accessToken}
		if refresh, ok := credentials["refresh_token"]; ok && refresh != "" {
			token.RefreshToken = refresh
		}
		return s.OAuthenticate(ctx, token)
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code in credentials", shared.ErrMissingCredentials)
}

// OAuthenticate authenticates with a previously obtained OAuth2 token.
//
// The token-refreshing client is only installed when a refresh token is
// present, otherwise the bare token is used as-is.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", shared.ErrInvalidCredentials)
	}
	s.token = token
	if token.RefreshToken != "" {
		s.httpClient = s.config.Client(ctx, token)
	}
	return nil
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the underlying OAuth2 configuration.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// request performs an authenticated HTTP request to the Spotify API and
// returns the raw response. Callers own interpretation of the status code.
func (s *SpotifyService) request(ctx context.Context, method, endpoint string) (*http.Response, error) {
	if s.token == nil {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// doRequest performs an authenticated GET against the Spotify API and decodes the JSON response into result.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, result any) error {
	resp, err := s.request(ctx, method, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify returned 401", shared.ErrTokenExpired)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SavedTracks retrieves the user's saved tracks with pagination, most recently saved first.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) (*SpotifyPaginatedTracks, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// TopTracks retrieves an artist's top tracks for the configured market.
func (s *SpotifyService) TopTracks(ctx context.Context, artistID string) ([]SpotifyTrack, error) {
	endpoint := fmt.Sprintf("/artists/%s/top-tracks?market=%s", url.PathEscape(artistID), url.QueryEscape(s.market))

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, &response); err != nil {
		return nil, err
	}

	return response.Tracks, nil
}

// Service interface implementation

// CurrentUser retrieves the authenticated listener's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*models.User, error) {
	user, err := s.UserProfile(ctx)
	if err != nil {
		return nil, err
	}
	return &models.User{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// LikedTracks fetches a page of the listener's saved tracks, newest first.
func (s *SpotifyService) LikedTracks(ctx context.Context, limit, offset int) ([]models.Track, error) {
	page, err := s.SavedTracks(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, item.toModel())
	}
	return tracks, nil
}

// ArtistTopTracks retrieves up to limit of an artist's most popular tracks.
func (s *SpotifyService) ArtistTopTracks(ctx context.Context, artistID string, limit int) ([]models.Track, error) {
	raw, err := s.TopTracks(ctx, artistID)
	if err != nil {
		return nil, err
	}

	if limit > 0 && limit < len(raw) {
		raw = raw[:limit]
	}

	tracks := make([]models.Track, 0, len(raw))
	for _, t := range raw {
		tracks = append(tracks, t.toModel(time.Time{}))
	}
	return tracks, nil
}

// AddToQueue appends a track to the listener's active playback queue.
//
// Spotify answers 404 when the listener has no active device, which maps to
// [shared.ErrNoActivePlayback].
func (s *SpotifyService) AddToQueue(ctx context.Context, trackURI string) error {
	endpoint := fmt.Sprintf("/me/player/queue?uri=%s", url.QueryEscape(trackURI))

	resp, err := s.request(ctx, http.MethodPost, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: start playback on a device and retry", shared.ErrNoActivePlayback)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify returned 401", shared.ErrTokenExpired)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d for %s", shared.ErrQueueFailed, resp.StatusCode, trackURI)
	}

	return nil
}

// Playback retrieves the listener's current playback session.
//
// Spotify answers 204 with no body when nothing is playing.
func (s *SpotifyService) Playback(ctx context.Context) (*models.Playback, error) {
	resp, err := s.request(ctx, http.MethodGet, "/me/player")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return &models.Playback{IsPlaying: false}, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: spotify returned 401", shared.ErrTokenExpired)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: spotify API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var state SpotifyPlaybackState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode playback state: %w", err)
	}

	playback := &models.Playback{IsPlaying: state.IsPlaying}
	if state.Item != nil {
		playback.TrackID = state.Item.ID
		playback.TrackName = state.Item.Name
	}
	return playback, nil
}

// toModel converts a saved-track item, carrying the liked timestamp.
func (st SpotifySavedTrack) toModel() models.Track {
	var addedAt time.Time
	if st.AddedAt != "" {
		if t, err := time.Parse(time.RFC3339, st.AddedAt); err == nil {
			addedAt = t
		}
	}
	return st.Track.toModel(addedAt)
}

func (t SpotifyTrack) toModel(addedAt time.Time) models.Track {
	artists := make([]models.Artist, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, models.Artist{ID: a.ID, Name: a.Name, URI: a.URI})
	}
	return models.Track{
		ID:      t.ID,
		Name:    t.Name,
		URI:     t.URI,
		Artists: artists,
		AddedAt: addedAt,
	}
}
