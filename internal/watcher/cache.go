package watcher

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/coaster/internal/models"
)

// Store persists the known-artist index and seen-track set to SQLite so
// restarts skip the full liked-tracks rescan.
//
// Rows are scoped by (service, user) so a cache built for another account
// or streaming service is never reused. Store failures are advisory: the
// watcher degrades to a full rescan rather than failing.
type Store struct {
	db      *sql.DB
	service string
	userID  string
}

// NewStore creates a cache store scoped to the given service and user.
func NewStore(db *sql.DB, service, userID string) *Store {
	return &Store{db: db, service: service, userID: userID}
}

// KnownArtists loads the cached known-artist identifiers.
func (s *Store) KnownArtists() ([]string, error) {
	rows, err := s.db.Query(
		"SELECT artist_id FROM known_artists WHERE service = ? AND user_id = ?",
		s.service, s.userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load known artists: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan artist row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SeenTracks loads the cached seen-track identifiers.
func (s *Store) SeenTracks() ([]string, error) {
	rows, err := s.db.Query(
		"SELECT track_id FROM seen_tracks WHERE service = ? AND user_id = ?",
		s.service, s.userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load seen tracks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveArtists inserts artist identifiers, ignoring duplicates.
func (s *Store) SaveArtists(artists []models.Artist) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR IGNORE INTO known_artists (service, user_id, artist_id, artist_name) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, artist := range artists {
		if _, err := stmt.Exec(s.service, s.userID, artist.ID, artist.Name); err != nil {
			return fmt.Errorf("failed to insert artist %s: %w", artist.ID, err)
		}
	}

	return tx.Commit()
}

// SaveArtistIDs inserts bare artist identifiers, ignoring duplicates.
func (s *Store) SaveArtistIDs(ids []string) error {
	artists := make([]models.Artist, len(ids))
	for i, id := range ids {
		artists[i] = models.Artist{ID: id}
	}
	return s.SaveArtists(artists)
}

// SaveTrack records a track as seen, ignoring duplicates.
func (s *Store) SaveTrack(trackID string, likedAt time.Time) error {
	var liked any
	if !likedAt.IsZero() {
		liked = likedAt.UTC().Format(time.RFC3339)
	}

	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO seen_tracks (service, user_id, track_id, liked_at) VALUES (?, ?, ?, ?)",
		s.service, s.userID, trackID, liked,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track %s: %w", trackID, err)
	}
	return nil
}

// SaveTracks records every track as seen along with its credited artists.
func (s *Store) SaveTracks(tracks []models.Track) error {
	for _, track := range tracks {
		if err := s.SaveTrack(track.ID, track.AddedAt); err != nil {
			return err
		}
		if err := s.SaveArtists(track.Artists); err != nil {
			return err
		}
	}
	return nil
}

// Counts returns the cached known-artist and seen-track counts.
func (s *Store) Counts() (artists int, tracks int, err error) {
	err = s.db.QueryRow(
		"SELECT COUNT(*) FROM known_artists WHERE service = ? AND user_id = ?",
		s.service, s.userID,
	).Scan(&artists)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count known artists: %w", err)
	}

	err = s.db.QueryRow(
		"SELECT COUNT(*) FROM seen_tracks WHERE service = ? AND user_id = ?",
		s.service, s.userID,
	).Scan(&tracks)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count seen tracks: %w", err)
	}

	return artists, tracks, nil
}

// Clear removes all cached rows for this service and user.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM known_artists WHERE service = ? AND user_id = ?", s.service, s.userID); err != nil {
		return fmt.Errorf("failed to clear known artists: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM seen_tracks WHERE service = ? AND user_id = ?", s.service, s.userID); err != nil {
		return fmt.Errorf("failed to clear seen tracks: %w", err)
	}
	return nil
}
