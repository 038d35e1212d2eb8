package ogg_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacecast/pacecast/pkg/ogg"
)

// buildPage assembles a minimal Ogg page: one lacing segment per 255 bytes
// of body, no CRC.
func buildPage(granule int64, body []byte) []byte {
	var lacing []byte
	remaining := len(body)
	for remaining >= 255 {
		lacing = append(lacing, 255)
		remaining -= 255
	}
	lacing = append(lacing, byte(remaining))

	page := make([]byte, 0, 27+len(lacing)+len(body))
	page = append(page, 'O', 'g', 'g', 'S', 0, 0)
	page = binary.LittleEndian.AppendUint64(page, uint64(granule))
	page = append(page, make([]byte, 12)...) // serial, sequence, crc
	page = append(page, byte(len(lacing)))
	page = append(page, lacing...)
	return append(page, body...)
}

// identificationHeader builds the 30-byte Vorbis identification packet with
// the given sample rate.
func identificationHeader(rate uint32) []byte {
	body := make([]byte, 30)
	body[0] = 0x01
	copy(body[1:7], "vorbis")
	binary.LittleEndian.PutUint32(body[12:16], rate)
	return body
}

func vorbisStream(rate uint32, granules ...int64) []byte {
	buf := buildPage(0, identificationHeader(rate))
	for _, g := range granules {
		buf = append(buf, buildPage(g, []byte{0xaa, 0xbb, 0xcc})...)
	}
	return buf
}

func TestProbe_DurationFromGranulePosition(t *testing.T) {
	// 88,200 samples at 44.1kHz is exactly two seconds.
	buf := vorbisStream(44100, 44100, 88200)

	d, ok, err := ogg.Probe{}.TotalDuration(buf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, d)
}

func TestProbe_IncompleteHeaderIsNotAnError(t *testing.T) {
	buf := vorbisStream(44100, 44100)

	for _, cut := range []int{0, 3, 20, len(buildPage(0, identificationHeader(44100))) - 1} {
		d, ok, err := ogg.Probe{}.TotalDuration(buf[:cut])
		require.NoError(t, err, "cut at %d bytes", cut)
		assert.False(t, ok, "cut at %d bytes", cut)
		assert.Zero(t, d)
	}
}

func TestProbe_TruncatedFinalPageIgnored(t *testing.T) {
	full := vorbisStream(44100, 22050)
	next := buildPage(44100, []byte{0x01, 0x02})
	buf := append(append([]byte{}, full...), next[:len(next)-1]...)

	d, ok, err := ogg.Probe{}.TotalDuration(buf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, d, "only complete pages count")
}

func TestProbe_ContinuationGranuleSkipped(t *testing.T) {
	buf := vorbisStream(44100, 44100)
	// A page on which no packet ends carries granule -1 and must not win.
	buf = append(buf, buildPage(-1, []byte{0x7f})...)

	d, ok, err := ogg.Probe{}.TotalDuration(buf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Second, d)
}

func TestProbe_BadCapturePattern(t *testing.T) {
	buf := vorbisStream(44100, 44100)
	copy(buf, "MPEG")

	_, _, err := ogg.Probe{}.TotalDuration(buf)
	assert.ErrorIs(t, err, ogg.ErrMalformed)
}

func TestProbe_CorruptMidStreamPage(t *testing.T) {
	buf := vorbisStream(44100, 44100)
	buf = append(buf, buildPage(88200, []byte{0x01})...)
	// Stomp the second audio page's capture pattern.
	idx := len(vorbisStream(44100, 44100))
	copy(buf[idx:], "junk")

	_, _, err := ogg.Probe{}.TotalDuration(buf)
	assert.ErrorIs(t, err, ogg.ErrMalformed)
}

func TestProbe_NotVorbis(t *testing.T) {
	body := identificationHeader(44100)
	copy(body[1:7], "theora")
	buf := buildPage(0, body)

	_, _, err := ogg.Probe{}.TotalDuration(buf)
	assert.ErrorIs(t, err, ogg.ErrMalformed)
}

func TestProbe_ZeroSampleRate(t *testing.T) {
	buf := buildPage(0, identificationHeader(0))

	_, _, err := ogg.Probe{}.TotalDuration(buf)
	assert.ErrorIs(t, err, ogg.ErrMalformed)
}

func TestProbe_UnsupportedPageVersion(t *testing.T) {
	buf := buildPage(0, identificationHeader(44100))
	buf[4] = 1

	_, _, err := ogg.Probe{}.TotalDuration(buf)
	assert.ErrorIs(t, err, ogg.ErrMalformed)
}
