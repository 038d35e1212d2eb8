// Package fetch implements the streaming fetch and pacing pipeline.
//
// A background Worker reads fixed-size chunks from a sized media stream,
// attributes playable duration to the newly arrived bytes, and publishes
// timed segments to a bounded queue. A foreground Scheduler consumes the
// segments in order, writes them to a downstream audio consumer and keeps
// the delivery clock honest: it detects network stalls, compensates for
// late arrivals and drains the estimated remaining playback time before
// closing the consumer. BulkFetch is the non-real-time variant that drains
// the same kind of stream into a single buffer.
package fetch
