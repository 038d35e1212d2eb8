// Package mediastream provides network-backed media stream sources for the
// fetch pipeline. A source hands out at most one live stream at a time and
// reopens on the next use after invalidation, so a failed or finished
// attempt never reuses a stale transport.
package mediastream
