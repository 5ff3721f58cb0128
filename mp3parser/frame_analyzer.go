// Package mp3parser locates MPEG audio Layer III frames in a byte stream and
// reads or rewrites the global_gain fields of their side information.
package mp3parser

import (
	"fmt"
	"io"
)

// BitCursor reads and writes MSB-first bit fields over a byte slice.
type BitCursor struct {
	data []byte
	pos  int // bit position

	// OnWrite, if set, is told which bytes a WriteBits call touched.
	OnWrite func(byteOff, n int) error
}

func NewBitCursor(data []byte) *BitCursor {
	return &BitCursor{data: data}
}

// Pos returns the bit position.
func (c *BitCursor) Pos() int { return c.pos }

// ByteOffset and BitOffset split Pos into its byte and in-byte parts.
func (c *BitCursor) ByteOffset() int { return c.pos / 8 }
func (c *BitCursor) BitOffset() int  { return c.pos % 8 }

// Seek moves to an absolute bit position.
func (c *BitCursor) Seek(bit int) error {
	if bit < 0 || bit > len(c.data)*8 {
		return fmt.Errorf("seek to bit %d: %w", bit, io.ErrUnexpectedEOF)
	}
	c.pos = bit
	return nil
}

func (c *BitCursor) check(n int) error {
	if n <= 0 || n > 32 {
		return fmt.Errorf("invalid bit count %d", n)
	}
	if c.pos+n > len(c.data)*8 {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// PeekBits reads n bits without moving the cursor.
func (c *BitCursor) PeekBits(n int) (uint32, error) {
	if err := c.check(n); err != nil {
		return 0, err
	}
	var val uint32
	for i := 0; i < n; i++ {
		p := c.pos + i
		bit := (c.data[p/8] >> (7 - p%8)) & 1
		val = (val << 1) | uint32(bit)
	}
	return val, nil
}

func (c *BitCursor) ReadBits(n int) (uint32, error) {
	val, err := c.PeekBits(n)
	if err != nil {
		return 0, err
	}
	c.pos += n
	return val, nil
}

func (c *BitCursor) SkipBits(n int) error {
	if n < 0 || c.pos+n > len(c.data)*8 {
		return io.ErrUnexpectedEOF
	}
	c.pos += n
	return nil
}

// WriteBits stores the low n bits of v at the cursor without moving it.
func (c *BitCursor) WriteBits(n int, v uint32) error {
	if err := c.check(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		p := c.pos + i
		mask := byte(1) << (7 - p%8)
		if (v>>(n-1-i))&1 == 1 {
			c.data[p/8] |= mask
		} else {
			c.data[p/8] &^= mask
		}
	}
	if c.OnWrite != nil {
		first := c.pos / 8
		last := (c.pos + n - 1) / 8
		return c.OnWrite(first, last-first+1)
	}
	return nil
}

type GranuleChannelInfo struct {
	Part23Length uint32
	BigValues    uint32
	GlobalGain   uint32
}

// ParseSideInfo reads the leading fields of every granule/channel entry of a
// frame. frame holds the whole frame, header included.
func ParseSideInfo(frameHeader *MP3FrameHeader, frame []byte) ([][]GranuleChannelInfo, error) {
	if len(frame) < frameHeader.SideInfoEnd() {
		return nil, fmt.Errorf("frame data too short: %d bytes", len(frame))
	}
	c := NewBitCursor(frame)

	result := make([][]GranuleChannelInfo, frameHeader.Granules())
	for gr := range result {
		result[gr] = make([]GranuleChannelInfo, frameHeader.Channels())
	}
	for _, l := range GainLoci(frameHeader) {
		if err := c.Seek(l.Bit - 21); err != nil {
			return nil, err
		}
		p23, _ := c.ReadBits(12)
		bv, _ := c.ReadBits(9)
		gg, err := c.ReadBits(8)
		if err != nil {
			return nil, err
		}
		result[l.Granule][l.Channel] = GranuleChannelInfo{
			Part23Length: p23,
			BigValues:    bv,
			GlobalGain:   gg,
		}
	}
	return result, nil
}
