package mp3parser

import (
	"encoding/binary"
	"errors"
	"fmt"

	"mp3gain-go/models"
)

// Header validation failures. Free format is reported as models.ErrFreeFormat.
var (
	ErrNoSync            = errors.New("no frame sync")
	ErrReservedVersion   = errors.New("reserved MPEG version")
	ErrBadBitrate        = errors.New("bad bitrate index")
	ErrReservedFrequency = errors.New("reserved sampling frequency")
)

// kbit/s, indexed by raw version ID then bitrate index. Index 0 is free format.
var bitrateTable = [4][16]int{
	VersionMPEG25: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
	VersionMPEG2:  {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
	VersionMPEG1:  {0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
}

// kHz, indexed by raw version ID then frequency index.
var frequencyTable = [4][4]float64{
	VersionMPEG25: {11.025, 12, 8},
	VersionMPEG2:  {22.05, 24, 16},
	VersionMPEG1:  {44.1, 48, 32},
}

// read syncsafe int for ID3v2 size
func syncSafeToInt(b []byte) int {
	return int(b[0]&0x7F)<<21 |
		int(b[1]&0x7F)<<14 |
		int(b[2]&0x7F)<<7 |
		int(b[3]&0x7F)
}

// ReadID3v2 parses a 10-byte ID3v2 tag header. It returns nil when b does
// not start one.
func ReadID3v2(b []byte) *ID3v2Header {
	if len(b) < 10 || string(b[:3]) != "ID3" || b[3] == 0xFF || b[4] == 0xFF {
		return nil
	}
	return &ID3v2Header{
		Version: [2]byte{b[3], b[4]},
		Flags:   b[5],
		Size:    syncSafeToInt(b[6:10]),
	}
}

// TotalSize is the number of bytes the tag occupies, header included.
func (h *ID3v2Header) TotalSize() int {
	return h.Size + 10
}

// FrameSize returns the length of a whole frame, header included.
func FrameSize(versionID, freqIndex, bitrateIndex int, padding bool) int {
	khz := frequencyTable[versionID][freqIndex]
	if khz == 0 {
		return 0
	}
	base := 576
	if versionID == VersionMPEG1 {
		base = 1152
	}
	size := int(float64(base*bitrateTable[versionID][bitrateIndex])/khz) / 8
	return size + btoi(padding)
}

// ReadFrameHeader parses and validates the 4 header bytes at the start of b.
// The layer is returned as found; callers decide what to do with non Layer III
// headers.
func ReadFrameHeader(b []byte) (MP3FrameHeader, error) {
	if len(b) < headerSize {
		return MP3FrameHeader{}, ErrNoSync
	}
	header := binary.BigEndian.Uint32(b)

	// check sync
	if (header & 0xFFE00000) != 0xFFE00000 {
		return MP3FrameHeader{}, ErrNoSync
	}

	h := MP3FrameHeader{
		VersionID:      int((header >> 19) & 0x3),
		Layer:          int((header >> 17) & 0x3),
		Protected:      ((header >> 16) & 0x1) == 0,
		BitrateIndex:   int((header >> 12) & 0xF),
		FrequencyIndex: int((header >> 10) & 0x3),
		Padding:        ((header >> 9) & 0x1) == 1,
		ChannelMode:    int((header >> 6) & 0x3),
	}

	switch {
	case h.VersionID == VersionReserved:
		return h, ErrReservedVersion
	case h.BitrateIndex == 15:
		return h, ErrBadBitrate
	case h.BitrateIndex == 0:
		return h, models.ErrFreeFormat
	case h.FrequencyIndex == 3:
		return h, ErrReservedFrequency
	}
	h.Size = FrameSize(h.VersionID, h.FrequencyIndex, h.BitrateIndex, h.Padding)
	return h, nil
}

// LayerName is used in unsupported layer errors.
func LayerName(layer int) string {
	switch layer {
	case LayerI:
		return "Layer I"
	case LayerII:
		return "Layer II"
	case LayerIII:
		return "Layer III"
	}
	return fmt.Sprintf("reserved layer %d", layer)
}

// EncodeHeader builds the 4 header bytes for h.
func EncodeHeader(h MP3FrameHeader) []byte {
	v := uint32(0xFFE00000)
	v |= uint32(h.VersionID&0x3) << 19
	v |= uint32(h.Layer&0x3) << 17
	if !h.Protected {
		v |= 1 << 16
	}
	v |= uint32(h.BitrateIndex&0xF) << 12
	v |= uint32(h.FrequencyIndex&0x3) << 10
	v |= uint32(btoi(h.Padding)) << 9
	v |= uint32(h.ChannelMode&0x3) << 6
	b := make([]byte, headerSize)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
