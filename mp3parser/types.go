package mp3parser

// Raw values of the 2-bit version field.
const (
	VersionMPEG25   = 0
	VersionReserved = 1
	VersionMPEG2    = 2
	VersionMPEG1    = 3
)

// Raw values of the 2-bit layer field.
const (
	LayerReserved = 0
	LayerIII      = 1
	LayerII       = 2
	LayerI        = 3
)

// Channel modes.
const (
	ModeStereo      = 0
	ModeJointStereo = 1
	ModeDualChannel = 2
	ModeMono        = 3
)

const headerSize = 4

// ID3v2Header represents ID3v2 tag header
type ID3v2Header struct {
	Version [2]byte
	Flags   byte
	Size    int
}

// MP3FrameHeader represents an MP3 frame header
type MP3FrameHeader struct {
	VersionID      int
	Layer          int
	Protected      bool // a CRC-16 follows the header
	BitrateIndex   int
	FrequencyIndex int
	Padding        bool
	ChannelMode    int
	Offset         int64 // absolute position of the frame in the stream
	Size           int   // whole frame, header included
}

// IsMPEG1 reports whether the frame belongs to the two-granule family.
func (h *MP3FrameHeader) IsMPEG1() bool {
	return h.VersionID == VersionMPEG1
}

// Channels is 1 for mono frames and 2 otherwise.
func (h *MP3FrameHeader) Channels() int {
	if h.ChannelMode == ModeMono {
		return 1
	}
	return 2
}

// Granules is 2 for MPEG-1 and 1 for MPEG-2/2.5.
func (h *MP3FrameHeader) Granules() int {
	if h.IsMPEG1() {
		return 2
	}
	return 1
}

// SideInfoStart is the byte offset of the side information in the frame.
func (h *MP3FrameHeader) SideInfoStart() int {
	if h.Protected {
		return headerSize + 2
	}
	return headerSize
}

// SideInfoSize is the length of the side information in bytes.
func (h *MP3FrameHeader) SideInfoSize() int {
	if h.IsMPEG1() {
		if h.ChannelMode == ModeMono {
			return 17
		}
		return 32
	}
	if h.ChannelMode == ModeMono {
		return 9
	}
	return 17
}

// SideInfoEnd is the offset just past the side information.
func (h *MP3FrameHeader) SideInfoEnd() int {
	return h.SideInfoStart() + h.SideInfoSize()
}

// SampleRate in Hz.
func (h *MP3FrameHeader) SampleRate() int {
	return int(frequencyTable[h.VersionID][h.FrequencyIndex] * 1000)
}

// Bitrate in kbit/s.
func (h *MP3FrameHeader) Bitrate() int {
	return int(bitrateTable[h.VersionID][h.BitrateIndex])
}

// Frame is a frame located by the Scanner. Data aliases the scanner's working
// buffer and is only valid until the next call to Next or Drain.
type Frame struct {
	Header MP3FrameHeader
	Data   []byte

	hook func(off int64, b []byte) error
}

// NewFrame wraps raw frame bytes; writes made through the frame only touch data.
func NewFrame(h MP3FrameHeader, data []byte) *Frame {
	return &Frame{Header: h, Data: data}
}
