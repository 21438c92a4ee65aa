// Package services defines the [Service] interface for music streaming providers and implements it for Spotify and Tidal.
//
// # Service Interface
//
// All providers implement a common abstraction so the watcher core can poll liked tracks, fetch artist top tracks, and enqueue playback uniformly.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Client] automatically refreshes expired tokens using the refresh token.
//
// # Tidal Implementation
//
// [TidalService] authenticates with tokens obtained through Tidal's device-code flow (the TV-app style login).
// Favorites are requested ordered by DATE descending so the newest like is always first.
// Remote queueing requires an active Tidal Connect session; without one AddToQueue fails with [shared.ErrNoActivePlayback].
//
// # OAuth Service Extension
//
// The [OAuthService] interface extends Service for OAuth providers.
//
// [SpotifyService] implements this for the server-side OAuth flow used by the CLI.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token expired, reauthorization needed
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrNoActivePlayback] : enqueue attempted with no active device
package services
