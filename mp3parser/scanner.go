package mp3parser

import (
	"errors"
	"io"

	"mp3gain-go/models"
)

// DefaultBufferSize is the scanner working buffer used when none is given.
const DefaultBufferSize = 1 << 20

const minBufferSize = 8192

// Scanner walks the Layer III frames of a stream through a bounded,
// refillable buffer.
//
// Bytes that leave the buffer, either because the scan moved past them or at
// Drain, are passed to the retire hook in stream order, with any changes made
// through Frame.ApplyGain already applied.
type Scanner struct {
	r    io.Reader
	buf  []byte
	n    int   // valid bytes in buf
	pos  int   // scan position in buf
	base int64 // stream offset of buf[0]
	eof  bool

	retire    func([]byte) error
	writeHook func(off int64, b []byte) error

	assumeLayer3 bool
	confirmed    bool
	sawFree      bool

	latched   bool
	versionID int
	freqIndex int
	sizes     [16]int

	cur *Frame
}

// NewScanner creates a scanner reading from r. bufSize is raised to a sane
// minimum; zero selects DefaultBufferSize.
func NewScanner(r io.Reader, bufSize int) *Scanner {
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}
	if bufSize < minBufferSize {
		bufSize = minBufferSize
	}
	return &Scanner{r: r, buf: make([]byte, bufSize)}
}

// SetRetire installs the hook receiving bytes that leave the buffer.
func (s *Scanner) SetRetire(fn func([]byte) error) { s.retire = fn }

// SetWriteHook installs the hook told about every byte range a frame
// mutation changed, as an absolute stream offset.
func (s *Scanner) SetWriteHook(fn func(off int64, b []byte) error) { s.writeHook = fn }

// AssumeLayer3 treats the stream as confirmed Layer III from the start, so a
// Layer I or II header is skipped as corruption rather than rejected.
func (s *Scanner) AssumeLayer3(v bool) { s.assumeLayer3 = v }

// Offset returns the stream offset of the scan position.
func (s *Scanner) Offset() int64 { return s.base + int64(s.pos) }

// Latched returns the version and frequency index fixed by the first frame.
func (s *Scanner) Latched() (versionID, freqIndex int, ok bool) {
	return s.versionID, s.freqIndex, s.latched
}

// First skips a leading ID3v2 tag and returns the first audio frame. A
// Xing/Info frame directly at the start is skipped. It fails with
// models.ErrNoFrames (or ErrFreeFormat) when the stream has no usable frame
// and returns io.EOF when the only frame is a VBR index frame.
func (s *Scanner) First() (*Frame, error) {
	ok, err := s.ensure(10)
	if err != nil {
		return nil, err
	}
	if ok {
		if tag := ReadID3v2(s.buf[s.pos : s.pos+10]); tag != nil {
			if err := s.skip(tag.TotalSize()); err != nil {
				return nil, err
			}
		}
	}

	f, err := s.search()
	if errors.Is(err, io.EOF) {
		if s.sawFree {
			return nil, &models.Error{Kind: models.KindFreeFormat, Offset: -1}
		}
		return nil, &models.Error{Kind: models.KindNoFrames, Offset: -1}
	}
	if err != nil {
		return nil, err
	}
	if f.IsInfoFrame() {
		return s.Next()
	}
	return f, nil
}

// Next returns the frame following the current one, or io.EOF.
func (s *Scanner) Next() (*Frame, error) {
	if s.cur != nil {
		s.pos += s.cur.Header.Size
		s.cur = nil
	}
	return s.search()
}

// Drain passes every remaining byte of the stream, buffered or not, to the
// retire hook. It is a no-op without one.
func (s *Scanner) Drain() error {
	s.cur = nil
	if s.retire == nil {
		return nil
	}
	if err := s.retire(s.buf[:s.n]); err != nil {
		return err
	}
	s.base += int64(s.n)
	s.pos, s.n = 0, 0
	for !s.eof {
		m, err := io.ReadFull(s.r, s.buf)
		if m > 0 {
			if rerr := s.retire(s.buf[:m]); rerr != nil {
				return rerr
			}
			s.base += int64(m)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			s.eof = true
		} else if err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) search() (*Frame, error) {
	for {
		ok, err := s.ensure(headerSize)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, io.EOF
		}

		h, accepted, err := s.check(s.buf[s.pos : s.pos+headerSize])
		if err != nil {
			return nil, err
		}
		if !accepted {
			s.pos++
			continue
		}

		ok, err = s.ensure(h.Size)
		if err != nil {
			return nil, err
		}
		if !ok {
			// truncated last frame
			return nil, io.EOF
		}

		if !s.latched {
			s.latch(h)
		}
		s.confirmed = true
		h.Offset = s.Offset()
		s.cur = &Frame{Header: h, Data: s.buf[s.pos : s.pos+h.Size], hook: s.writeHook}
		return s.cur, nil
	}
}

// check validates a candidate header against the latched stream properties.
// A non-nil error is fatal for the stream.
func (s *Scanner) check(b []byte) (MP3FrameHeader, bool, error) {
	h, err := ReadFrameHeader(b)
	if err != nil {
		if errors.Is(err, models.ErrFreeFormat) {
			s.sawFree = true
		}
		return h, false, nil
	}
	if h.Layer != LayerIII {
		if !s.confirmed && !s.assumeLayer3 && h.Layer != LayerReserved {
			return h, false, &models.Error{
				Kind:   models.KindUnsupportedLayer,
				Offset: s.Offset(),
				Detail: LayerName(h.Layer),
			}
		}
		return h, false, nil
	}
	if s.latched {
		if h.VersionID != s.versionID || h.FrequencyIndex != s.freqIndex {
			return h, false, nil
		}
		h.Size = s.sizes[h.BitrateIndex] + btoi(h.Padding)
	}
	if h.Size <= h.SideInfoEnd() {
		return h, false, nil
	}
	return h, true, nil
}

func (s *Scanner) latch(h MP3FrameHeader) {
	s.latched = true
	s.versionID = h.VersionID
	s.freqIndex = h.FrequencyIndex
	for i := range s.sizes {
		s.sizes[i] = FrameSize(h.VersionID, h.FrequencyIndex, i, false)
	}
}

// ensure makes at least need bytes available from pos, refilling as needed.
// It returns false when the stream ends first.
func (s *Scanner) ensure(need int) (bool, error) {
	if s.n-s.pos >= need {
		return true, nil
	}
	if need > len(s.buf) {
		return false, nil
	}
	if err := s.refill(); err != nil {
		return false, err
	}
	return s.n-s.pos >= need, nil
}

// refill retires everything before pos, slides the rest to the front and
// reads until the buffer is full or the stream ends.
func (s *Scanner) refill() error {
	if s.pos > 0 {
		if s.retire != nil {
			if err := s.retire(s.buf[:s.pos]); err != nil {
				return err
			}
		}
		copy(s.buf, s.buf[s.pos:s.n])
		s.base += int64(s.pos)
		s.n -= s.pos
		s.pos = 0
	}
	if s.eof {
		return nil
	}
	m, err := io.ReadFull(s.r, s.buf[s.n:])
	s.n += m
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		s.eof = true
		return nil
	}
	return err
}

// skip moves the scan position forward by k bytes, which may exceed the
// buffer.
func (s *Scanner) skip(k int) error {
	for {
		if s.n-s.pos >= k {
			s.pos += k
			return nil
		}
		k -= s.n - s.pos
		s.pos = s.n
		if s.eof {
			return nil
		}
		if err := s.refill(); err != nil {
			return err
		}
	}
}
