// package watcher implements the liked-songs poll loop.
//
// A [Watcher] owns three pieces of state: a [KnownArtistIndex] of every
// artist appearing in the listener's liked history, a [PollState] tracking
// which likes have been processed, and the current loop [Phase]. On each
// cycle it fetches the most recent likes, evaluates the unseen ones through
// a rules engine, and queues top tracks for artists the listener has not
// liked before.
//
// The optional [Store] persists the index and seen set in sqlite, scoped by
// service and user, so restarts skip the full library scan.
package watcher
