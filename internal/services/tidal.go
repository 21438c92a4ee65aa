// Tidal API implementation of [Service]
//
// Uses the v1 API with tokens from the device-code flow (the TV-app login).
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/coaster/internal/models"
	"github.com/desertthunder/coaster/internal/shared"
)

const (
	tidalAuthBaseURL = "https://auth.tidal.com/v1/oauth2"
	tidalBaseURL     = "https://api.tidal.com/v1"
	tidalScope       = "r_usr w_usr"
)

// TidalDeviceAuth represents a device authorization grant awaiting user confirmation.
type TidalDeviceAuth struct {
	DeviceCode              string `json:"deviceCode"`
	UserCode                string `json:"userCode"`
	VerificationURI         string `json:"verificationUri"`
	VerificationURIComplete string `json:"verificationUriComplete"`
	ExpiresIn               int    `json:"expiresIn"`
	Interval                int    `json:"interval"`
}

// TidalToken represents a token response from the auth endpoint.
type TidalToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		UserID      int64  `json:"userId"`
		CountryCode string `json:"countryCode"`
	} `json:"user"`
}

// TidalArtist represents a Tidal artist.
type TidalArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// TidalTrack represents a Tidal track.
type TidalTrack struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	Duration int           `json:"duration"`
	Artists  []TidalArtist `json:"artists"`
}

// TidalFavoriteItem wraps a favorited track with its liked timestamp.
type TidalFavoriteItem struct {
	Created string     `json:"created"`
	Item    TidalTrack `json:"item"`
}

// TidalPaginatedFavorites represents a paginated favorites response.
type TidalPaginatedFavorites struct {
	Limit              int                 `json:"limit"`
	Offset             int                 `json:"offset"`
	TotalNumberOfItems int                 `json:"totalNumberOfItems"`
	Items              []TidalFavoriteItem `json:"items"`
}

// TidalService implements the Service interface against the Tidal v1 API.
type TidalService struct {
	clientID    string
	token       string
	userID      string
	countryCode string
	httpClient  *http.Client
	baseURL     string
	authBaseURL string
}

// NewTidalService creates a new Tidal service from stored credentials.
//
// Only client_id is required up front; access_token and user_id arrive via
// Authenticate after the device-code flow completes.
func NewTidalService(credentials map[string]string) (*TidalService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("missing client_id in credentials")
	}

	countryCode, ok := credentials["country_code"]
	if !ok || countryCode == "" {
		countryCode = "US"
	}

	svc := &TidalService{
		clientID:    clientID,
		token:       credentials["access_token"],
		userID:      credentials["user_id"],
		countryCode: countryCode,
		httpClient:  http.DefaultClient,
		baseURL:     tidalBaseURL,
		authBaseURL: tidalAuthBaseURL,
	}

	return svc, nil
}

func (s *TidalService) Name() string {
	return "Tidal"
}

// Authenticate installs a previously obtained access token and user ID.
func (s *TidalService) Authenticate(ctx context.Context, credentials map[string]string) error {
	token, ok := credentials["access_token"]
	if !ok || token == "" {
		return fmt.Errorf("%w: missing access_token, run the device-code flow first", shared.ErrMissingCredentials)
	}
	userID, ok := credentials["user_id"]
	if !ok || userID == "" {
		return fmt.Errorf("%w: missing user_id", shared.ErrMissingCredentials)
	}

	s.token = token
	s.userID = userID
	if cc, ok := credentials["country_code"]; ok && cc != "" {
		s.countryCode = cc
	}
	return nil
}

// StartDeviceAuth begins the device-code flow and returns the verification
// URL and user code to display to the listener.
func (s *TidalService) StartDeviceAuth(ctx context.Context) (*TidalDeviceAuth, error) {
	form := url.Values{
		"client_id": {s.clientID},
		"scope":     {tidalScope},
	}

	var auth TidalDeviceAuth
	if err := s.authRequest(ctx, "/device_authorization", form, &auth); err != nil {
		return nil, err
	}
	if auth.DeviceCode == "" {
		return nil, fmt.Errorf("%w: empty device code", shared.ErrAuthFailed)
	}
	return &auth, nil
}

// PollDeviceToken polls the token endpoint until the listener confirms the
// device code, the grant expires, or ctx is cancelled.
func (s *TidalService) PollDeviceToken(ctx context.Context, auth *TidalDeviceAuth) (*TidalToken, error) {
	interval := time.Duration(auth.Interval) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	deadline := time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second)

	form := url.Values{
		"client_id":   {s.clientID},
		"device_code": {auth.DeviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"scope":       {tidalScope},
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: device code expired", shared.ErrTimeout)
		}

		var token TidalToken
		err := s.authRequest(ctx, "/token", form, &token)
		if err != nil {
			if strings.Contains(err.Error(), "authorization_pending") {
				continue
			}
			return nil, err
		}

		if token.AccessToken != "" {
			s.token = token.AccessToken
			s.userID = strconv.FormatInt(token.User.UserID, 10)
			if token.User.CountryCode != "" {
				s.countryCode = token.User.CountryCode
			}
			return &token, nil
		}
	}
}

// authRequest posts a form to the Tidal auth endpoint and decodes the response.
func (s *TidalService) authRequest(ctx context.Context, endpoint string, form url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authBaseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%w: %s (%s)", shared.ErrAuthFailed, apiErr.Error, apiErr.ErrorDescription)
		}
		return fmt.Errorf("%w: tidal auth error: status %d", shared.ErrAuthFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// doRequest performs an authenticated GET against the Tidal API and decodes the JSON response into result.
func (s *TidalService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.token == "" {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: tidal returned 401", shared.ErrTokenExpired)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: tidal API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Service interface implementation

// CurrentUser returns the listener identified by the stored session.
func (s *TidalService) CurrentUser(ctx context.Context) (*models.User, error) {
	if s.userID == "" {
		return nil, fmt.Errorf("%w: no user session", shared.ErrNotAuthenticated)
	}

	var profile struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	endpoint := fmt.Sprintf("/users/%s?countryCode=%s", url.PathEscape(s.userID), url.QueryEscape(s.countryCode))
	if err := s.doRequest(ctx, endpoint, &profile); err != nil {
		return nil, err
	}

	return &models.User{ID: s.userID, DisplayName: profile.Username}, nil
}

// Favorites retrieves a page of the listener's favorite tracks ordered by
// date descending, so the newest like is always first.
func (s *TidalService) Favorites(ctx context.Context, limit, offset int) (*TidalPaginatedFavorites, error) {
	if s.userID == "" {
		return nil, fmt.Errorf("%w: no user session", shared.ErrNotAuthenticated)
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/users/%s/favorites/tracks?limit=%d&offset=%d&order=DATE&orderDirection=DESC&countryCode=%s",
		url.PathEscape(s.userID), limit, offset, url.QueryEscape(s.countryCode))

	var response TidalPaginatedFavorites
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// LikedTracks fetches a page of the listener's favorite tracks, newest first.
func (s *TidalService) LikedTracks(ctx context.Context, limit, offset int) ([]models.Track, error) {
	page, err := s.Favorites(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, item.toModel())
	}
	return tracks, nil
}

// ArtistTopTracks retrieves up to limit of an artist's top tracks.
func (s *TidalService) ArtistTopTracks(ctx context.Context, artistID string, limit int) ([]models.Track, error) {
	if limit <= 0 {
		limit = 1
	}

	endpoint := fmt.Sprintf("/artists/%s/toptracks?limit=%d&offset=0&countryCode=%s",
		url.PathEscape(artistID), limit, url.QueryEscape(s.countryCode))

	var response struct {
		Items []TidalTrack `json:"items"`
	}
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Items))
	for _, t := range response.Items {
		tracks = append(tracks, t.toModel(""))
	}
	return tracks, nil
}

// AddToQueue appends a track to the listener's playback queue.
//
// Tidal only exposes remote queueing through an active Tidal Connect
// session, which this client does not hold, so this always reports
// [shared.ErrNoActivePlayback].
func (s *TidalService) AddToQueue(ctx context.Context, trackURI string) error {
	if s.token == "" {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}
	return fmt.Errorf("%w: tidal queueing requires an active Tidal Connect session", shared.ErrNoActivePlayback)
}

// Playback reports the listener's playback session.
//
// The v1 API has no playback-state endpoint outside Tidal Connect, so the
// session is reported as inactive.
func (s *TidalService) Playback(ctx context.Context) (*models.Playback, error) {
	if s.token == "" {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}
	return &models.Playback{IsPlaying: false}, nil
}

// toModel converts a favorite item, carrying the liked timestamp.
func (fi TidalFavoriteItem) toModel() models.Track {
	track := fi.Item.toModel(fi.Created)
	return track
}

func (t TidalTrack) toModel(created string) models.Track {
	id := strconv.FormatInt(t.ID, 10)

	artists := make([]models.Artist, 0, len(t.Artists))
	for _, a := range t.Artists {
		artistID := strconv.FormatInt(a.ID, 10)
		artists = append(artists, models.Artist{
			ID:   artistID,
			Name: a.Name,
			URI:  "tidal:artist:" + artistID,
		})
	}

	var addedAt time.Time
	if created != "" {
		// Tidal renders timestamps like "2024-03-01T12:00:00.000+0000"
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-0700"} {
			if parsed, err := time.Parse(layout, created); err == nil {
				addedAt = parsed
				break
			}
		}
	}

	return models.Track{
		ID:      id,
		Name:    t.Title,
		URI:     "tidal:track:" + id,
		Artists: artists,
		AddedAt: addedAt,
	}
}
