// Package ogg probes Ogg Vorbis byte buffers for their decodable duration.
//
// The probe understands just enough of the container to serve the fetch
// pipeline: the Vorbis identification header supplies the sample rate and
// every complete page's granule position marks how many samples are
// decodable up to that point. CRC checksums are not verified.
package ogg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrMalformed reports data that cannot be an Ogg Vorbis stream, as opposed
// to a buffer that is merely incomplete.
var ErrMalformed = errors.New("malformed ogg vorbis data")

var (
	capturePattern = []byte("OggS")
	vorbisPattern  = []byte("vorbis")
)

const (
	pageHeaderSize = 27
	idHeaderSize   = 30
	// noPacketEnds is the granule position of a page on which no packet
	// ends.
	noPacketEnds = -1
)

// Probe implements the duration probe the fetch pipeline consumes.
type Probe struct{}

// TotalDuration reports the decodable duration of buf, the byte accumulation
// of an Ogg Vorbis stream from its first byte. ok is false while the buffer
// does not yet contain the complete identification header. Data that can
// never parse returns ErrMalformed.
func (Probe) TotalDuration(buf []byte) (time.Duration, bool, error) {
	first, n, err := parsePage(buf)
	if err != nil {
		if errors.Is(err, errTruncated) {
			return 0, false, nil
		}
		return 0, false, err
	}

	rate, err := identificationRate(first.body)
	if err != nil {
		return 0, false, err
	}

	var granule int64
	rest := buf[n:]
	for len(rest) > 0 {
		pg, size, err := parsePage(rest)
		if err != nil {
			if errors.Is(err, errTruncated) {
				// The final page is still accumulating; everything before it
				// is decodable.
				break
			}
			return 0, false, err
		}
		if pg.granule != noPacketEnds && pg.granule > granule {
			granule = pg.granule
		}
		rest = rest[size:]
	}

	seconds := float64(granule) / float64(rate)
	return time.Duration(seconds * float64(time.Second)), true, nil
}

// errTruncated marks a page that extends past the end of the buffer.
var errTruncated = errors.New("truncated page")

type page struct {
	granule int64
	body    []byte
}

func parsePage(b []byte) (page, int, error) {
	if len(b) < pageHeaderSize {
		return page{}, 0, errTruncated
	}
	if !bytes.Equal(b[:4], capturePattern) {
		return page{}, 0, fmt.Errorf("%w: bad capture pattern %q", ErrMalformed, b[:4])
	}
	if b[4] != 0 {
		return page{}, 0, fmt.Errorf("%w: unsupported page version %d", ErrMalformed, b[4])
	}
	segments := int(b[26])
	if len(b) < pageHeaderSize+segments {
		return page{}, 0, errTruncated
	}
	bodyLen := 0
	for _, s := range b[pageHeaderSize : pageHeaderSize+segments] {
		bodyLen += int(s)
	}
	total := pageHeaderSize + segments + bodyLen
	if len(b) < total {
		return page{}, 0, errTruncated
	}
	return page{
		granule: int64(binary.LittleEndian.Uint64(b[6:14])),
		body:    b[pageHeaderSize+segments : total],
	}, total, nil
}

// identificationRate extracts the sample rate from the Vorbis identification
// header, which is the single packet of the first page.
func identificationRate(body []byte) (uint32, error) {
	if len(body) < idHeaderSize {
		return 0, fmt.Errorf("%w: identification header too short", ErrMalformed)
	}
	if body[0] != 0x01 || !bytes.Equal(body[1:7], vorbisPattern) {
		return 0, fmt.Errorf("%w: missing vorbis identification header", ErrMalformed)
	}
	rate := binary.LittleEndian.Uint32(body[12:16])
	if rate == 0 {
		return 0, fmt.Errorf("%w: zero sample rate", ErrMalformed)
	}
	return rate, nil
}
