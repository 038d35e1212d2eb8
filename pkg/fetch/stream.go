package fetch

// MediaStream is a transient handle on a remote elementary stream whose total
// size is fixed once the stream opens. Read fills p with up to len(p) bytes
// and reports how many were available; a zero count with a nil error means no
// data is currently available, which is not necessarily end of stream. Only
// the fetch worker or the bulk fetcher reads a given stream, never both.
type MediaStream interface {
	Size() int64
	Read(p []byte) (int, error)
}

// Source hands out media streams for one logical piece of media. Stream
// returns the current handle, opening a fresh one if none is cached.
// Invalidate discards the cached handle so the next Stream call reopens;
// the fetch pipeline invalidates on every session exit, so a handle is never
// reused across attempts.
type Source interface {
	ID() string
	Stream() (MediaStream, error)
	Invalidate()
}
