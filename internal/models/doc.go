// Package models holds the service-agnostic data model shared by the
// streaming adapters, the rules engine, and the watcher.
//
// Both streaming implementations convert provider-specific JSON responses
// into [Track] and [Artist] values:
//   - Spotify: saved-track items map added_at → Track.AddedAt and carry
//     spotify:track:/spotify:artist: URIs
//   - Tidal: favorite items use numeric IDs rendered as strings and
//     synthesized tidal:track:/tidal:artist: URIs
//
// Values here are snapshots: nothing downstream mutates a Track after it
// has been observed.
package models
