package mp3parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mpeg1Header(mode int, protected bool) MP3FrameHeader {
	return MP3FrameHeader{
		VersionID:      VersionMPEG1,
		Layer:          LayerIII,
		Protected:      protected,
		BitrateIndex:   9, // 128 kbit/s
		FrequencyIndex: 0, // 44.1 kHz
		ChannelMode:    mode,
	}
}

func mpeg2Header(mode int, protected bool) MP3FrameHeader {
	return MP3FrameHeader{
		VersionID:      VersionMPEG2,
		Layer:          LayerIII,
		Protected:      protected,
		BitrateIndex:   8, // 64 kbit/s
		FrequencyIndex: 0, // 22.05 kHz
		ChannelMode:    mode,
	}
}

// buildFrame returns the bytes of a frame whose gain fields all hold gain.
func buildFrame(t *testing.T, h MP3FrameHeader, gain uint8) []byte {
	t.Helper()
	h.Size = FrameSize(h.VersionID, h.FrequencyIndex, h.BitrateIndex, h.Padding)
	b := make([]byte, h.Size)
	copy(b, EncodeHeader(h))

	c := NewBitCursor(b)
	for _, l := range GainLoci(&h) {
		require.NoError(t, c.Seek(l.Bit))
		require.NoError(t, c.WriteBits(8, uint32(gain)))
	}
	if h.Protected {
		require.NoError(t, NewFrame(h, b).RepairCRC())
	}
	return b
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
