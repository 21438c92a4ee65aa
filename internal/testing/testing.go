// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/coaster/internal/models"
	"github.com/desertthunder/coaster/internal/shared"
)

// MockService is a configurable test double for [services.Service].
//
// The zero value behaves like an authenticated service with an empty
// library and an active playback device.
type MockService struct {
	User  *models.User
	Liked []models.Track // full liked history, newest first

	// TopTracks maps artist ID to that artist's top tracks.
	TopTracks map[string][]models.Track

	// Errors, when set, are returned by the matching method. QueueErrFor
	// fails AddToQueue for specific URIs only.
	LikedErr    error
	TopErr      error
	QueueErr    error
	QueueErrFor map[string]error

	// Call counters.
	LikedCalls int
	TopCalls   int
	Queued     []string // URIs passed to AddToQueue, in order
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}

func (m *MockService) CurrentUser(ctx context.Context) (*models.User, error) {
	if m.User != nil {
		return m.User, nil
	}
	return &models.User{ID: "mock-user", DisplayName: "Mock User"}, nil
}

func (m *MockService) LikedTracks(ctx context.Context, limit, offset int) ([]models.Track, error) {
	m.LikedCalls++
	if m.LikedErr != nil {
		return nil, m.LikedErr
	}
	if offset >= len(m.Liked) {
		return []models.Track{}, nil
	}
	end := offset + limit
	if end > len(m.Liked) {
		end = len(m.Liked)
	}
	return m.Liked[offset:end], nil
}

func (m *MockService) ArtistTopTracks(ctx context.Context, artistID string, limit int) ([]models.Track, error) {
	m.TopCalls++
	if m.TopErr != nil {
		return nil, m.TopErr
	}
	tops := m.TopTracks[artistID]
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return tops, nil
}

func (m *MockService) AddToQueue(ctx context.Context, trackURI string) error {
	if m.QueueErr != nil {
		return m.QueueErr
	}
	if err := m.QueueErrFor[trackURI]; err != nil {
		return err
	}
	m.Queued = append(m.Queued, trackURI)
	return nil
}

func (m *MockService) Playback(ctx context.Context) (*models.Playback, error) {
	return &models.Playback{IsPlaying: true}, nil
}

// Like prepends a track to the liked history, newest first.
func (m *MockService) Like(track models.Track) {
	m.Liked = append([]models.Track{track}, m.Liked...)
}

// NoPlaybackService wraps [MockService] so queue calls fail the way a
// service with no active device does.
type NoPlaybackService struct {
	MockService
}

func (s *NoPlaybackService) AddToQueue(ctx context.Context, trackURI string) error {
	return shared.ErrNoActivePlayback
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading a response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
