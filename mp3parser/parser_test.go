package mp3parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mp3gain-go/models"
)

func TestFrameSize(t *testing.T) {
	tests := []struct {
		name                        string
		version, freq, bitrateIndex int
		padding                     bool
		want                        int
	}{
		{"mpeg1 128k 44.1k", VersionMPEG1, 0, 9, false, 417},
		{"mpeg1 128k 44.1k padded", VersionMPEG1, 0, 9, true, 418},
		{"mpeg1 320k 48k", VersionMPEG1, 1, 14, false, 960},
		{"mpeg1 32k 32k", VersionMPEG1, 2, 1, false, 144},
		{"mpeg2 64k 22.05k", VersionMPEG2, 0, 8, false, 208},
		{"mpeg2.5 8k 8k", VersionMPEG25, 2, 1, false, 72},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FrameSize(tt.version, tt.freq, tt.bitrateIndex, tt.padding))
		})
	}
}

func TestReadFrameHeader(t *testing.T) {
	h := mpeg1Header(ModeJointStereo, true)
	h.Padding = true
	got, err := ReadFrameHeader(EncodeHeader(h))
	require.NoError(t, err)
	assert.Equal(t, VersionMPEG1, got.VersionID)
	assert.Equal(t, LayerIII, got.Layer)
	assert.True(t, got.Protected)
	assert.Equal(t, 9, got.BitrateIndex)
	assert.Equal(t, ModeJointStereo, got.ChannelMode)
	assert.Equal(t, 418, got.Size)
	assert.Equal(t, 128, got.Bitrate())
	assert.Equal(t, 44100, got.SampleRate())
	assert.Equal(t, 6, got.SideInfoStart())
	assert.Equal(t, 38, got.SideInfoEnd())
}

func TestReadFrameHeaderRejects(t *testing.T) {
	valid := mpeg1Header(ModeStereo, false)

	tests := []struct {
		name   string
		mutate func(h *MP3FrameHeader)
		want   error
	}{
		{"reserved version", func(h *MP3FrameHeader) { h.VersionID = VersionReserved }, ErrReservedVersion},
		{"bad bitrate", func(h *MP3FrameHeader) { h.BitrateIndex = 15 }, ErrBadBitrate},
		{"free format", func(h *MP3FrameHeader) { h.BitrateIndex = 0 }, models.ErrFreeFormat},
		{"reserved frequency", func(h *MP3FrameHeader) { h.FrequencyIndex = 3 }, ErrReservedFrequency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := valid
			tt.mutate(&h)
			_, err := ReadFrameHeader(EncodeHeader(h))
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	_, err := ReadFrameHeader([]byte{0xFF, 0x0F, 0x90, 0x00})
	assert.ErrorIs(t, err, ErrNoSync)
}

func TestReadID3v2(t *testing.T) {
	b := []byte{'I', 'D', '3', 4, 0, 0, 0x00, 0x00, 0x02, 0x01}
	h := ReadID3v2(b)
	require.NotNil(t, h)
	assert.Equal(t, 257, h.Size)
	assert.Equal(t, 267, h.TotalSize())

	b[3] = 0xFF
	assert.Nil(t, ReadID3v2(b))
	assert.Nil(t, ReadID3v2([]byte("TAG")))
}
