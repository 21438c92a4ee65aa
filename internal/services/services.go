// package services defines interface Service for interacting with streaming APIs
//
// Spotify, Tidal
package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/coaster/internal/models"
	"github.com/desertthunder/coaster/internal/shared"
	"golang.org/x/oauth2"
)

// Service defines the interface for music streaming providers (Spotify, Tidal)
// that expose the listener's liked tracks, artist top tracks, and the playback queue.
type Service interface {
	// Name returns the name of the service (e.g., "Spotify", "Tidal")
	Name() string

	// Authenticate performs token-based authentication with the service.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// CurrentUser retrieves the authenticated listener's profile.
	CurrentUser(ctx context.Context) (*models.User, error)

	// LikedTracks fetches a page of the listener's liked tracks, most
	// recently liked first.
	LikedTracks(ctx context.Context, limit, offset int) ([]models.Track, error)

	// ArtistTopTracks retrieves up to limit of an artist's most popular
	// tracks per the service's own ranking.
	ArtistTopTracks(ctx context.Context, artistID string, limit int) ([]models.Track, error)

	// AddToQueue appends a track to the listener's playback queue.
	// Returns [shared.ErrNoActivePlayback] when no device is actively playing.
	AddToQueue(ctx context.Context, trackURI string) error

	// Playback retrieves the listener's current playback session, if any.
	Playback(ctx context.Context) (*models.Playback, error)
}

// OAuthService extends Service for providers using server-side OAuth flows.
type OAuthService interface {
	Service

	// GetAuthURL returns the authorization URL for user login.
	GetAuthURL(state string) string

	// GetOAuthConfig returns the underlying OAuth2 configuration.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate authenticates with a previously obtained token.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}

// likedPageSize is the page size used when walking the liked-tracks
// collection; both providers cap list endpoints at 50 items.
const likedPageSize = 50

// AllLiked fetches the listener's liked tracks up to max, paginating through
// the service's collection most-recent-first.
func AllLiked(ctx context.Context, svc Service, max int) ([]models.Track, error) {
	var tracks []models.Track

	for offset := 0; offset < max; offset += likedPageSize {
		limit := likedPageSize
		if remaining := max - offset; remaining < limit {
			limit = remaining
		}

		batch, err := svc.LikedTracks(ctx, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: page at offset %d: %v", shared.ErrFetchFailed, offset, err)
		}
		if len(batch) == 0 {
			break
		}

		tracks = append(tracks, batch...)
		if len(batch) < limit {
			break
		}
	}

	if len(tracks) > max {
		tracks = tracks[:max]
	}
	return tracks, nil
}

// RecentlyLiked fetches the count most recently liked tracks, newest first.
func RecentlyLiked(ctx context.Context, svc Service, count int) ([]models.Track, error) {
	if count > likedPageSize {
		count = likedPageSize
	}
	return svc.LikedTracks(ctx, count, 0)
}

// NewService constructs the streaming service named by the configuration's
// service selection ("spotify" or "tidal").
func NewService(name string, config *shared.Config) (Service, error) {
	switch name {
	case "spotify":
		return NewSpotifyService(config.Credentials.Spotify.Map())
	case "tidal":
		return NewTidalService(config.Credentials.Tidal.Map())
	default:
		return nil, fmt.Errorf("%w: unknown service %q", shared.ErrInvalidArgument, name)
	}
}
