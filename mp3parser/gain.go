package mp3parser

import (
	"bytes"

	"mp3gain-go/models"
)

// GainLocus is the position of one global_gain field within a frame.
type GainLocus struct {
	Granule int
	Channel int
	Bit     int // from the first byte of the frame header
}

// ByteOffset and BitOffset locate the first bit of the field.
func (l GainLocus) ByteOffset() int { return l.Bit / 8 }
func (l GainLocus) BitOffset() int  { return l.Bit % 8 }

// GainLoci lists the gain fields of a frame in bitstream order.
func GainLoci(h *MP3FrameHeader) []GainLocus {
	nch := h.Channels()
	bit := h.SideInfoStart() * 8

	var stride int
	if h.IsMPEG1() {
		bit += 9 // main_data_begin
		if nch == 1 {
			bit += 5
		} else {
			bit += 3
		}
		bit += 4 * nch // scfsi
		stride = 38
	} else {
		bit += 8
		if nch == 1 {
			bit++
		} else {
			bit += 2
		}
		stride = 42
	}

	loci := make([]GainLocus, 0, h.Granules()*nch)
	for gr := 0; gr < h.Granules(); gr++ {
		for ch := 0; ch < nch; ch++ {
			bit += 21 // part2_3_length, big_values
			loci = append(loci, GainLocus{Granule: gr, Channel: ch, Bit: bit})
			bit += stride // gain field and the rest of the entry
		}
	}
	return loci
}

// GainPolicy selects the arithmetic used when a gain field overflows.
type GainPolicy int

const (
	// Clamp saturates to 0..255 and leaves zero fields alone.
	Clamp GainPolicy = iota
	// Wrap adds modulo 256.
	Wrap
)

// AdjustGain applies delta to a gain field value.
func AdjustGain(g uint8, delta int, policy GainPolicy) uint8 {
	if policy == Wrap {
		return uint8((int(g) + delta) & 0xFF)
	}
	if g == 0 {
		return 0
	}
	v := int(g) + delta
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Gains returns the global_gain values of the frame in bitstream order.
func (f *Frame) Gains() ([]uint8, error) {
	info, err := ParseSideInfo(&f.Header, f.Data)
	if err != nil {
		return nil, err
	}
	var gains []uint8
	for _, gr := range info {
		for _, ch := range gr {
			gains = append(gains, uint8(ch.GlobalGain))
		}
	}
	return gains, nil
}

// ApplyGain adds delta[0] to the left channel fields and delta[1] to the right
// ones, then repairs the CRC of protected frames. In mono frames only delta[0]
// is used. Every modified byte range is passed to the frame's write hook.
func (f *Frame) ApplyGain(delta [2]int, policy GainPolicy) error {
	if delta[0] == 0 && delta[1] == 0 {
		return nil
	}
	if delta[0] != delta[1] && f.Header.ChannelMode&1 == 1 {
		return &models.Error{
			Kind:   models.KindSingleChannel,
			Offset: f.Header.Offset,
		}
	}

	c := NewBitCursor(f.Data)
	c.OnWrite = f.written
	for _, l := range GainLoci(&f.Header) {
		d := delta[l.Channel]
		if d == 0 {
			continue
		}
		if err := c.Seek(l.Bit); err != nil {
			return err
		}
		g, err := c.PeekBits(8)
		if err != nil {
			return err
		}
		if err := c.WriteBits(8, uint32(AdjustGain(uint8(g), d, policy))); err != nil {
			return err
		}
	}

	if f.Header.Protected {
		return f.RepairCRC()
	}
	return nil
}

// RepairCRC recomputes and stores the CRC-16 of a protected frame.
func (f *Frame) RepairCRC() error {
	if !f.Header.Protected || len(f.Data) < f.Header.SideInfoEnd() {
		return nil
	}
	crc := CRC16(&f.Header, f.Data)
	f.Data[4] = byte(crc >> 8)
	f.Data[5] = byte(crc)
	return f.written(4, 2)
}

// CheckCRC reports whether the stored CRC matches the frame contents.
// Unprotected frames always pass.
func (f *Frame) CheckCRC() bool {
	if !f.Header.Protected {
		return true
	}
	if len(f.Data) < f.Header.SideInfoEnd() {
		return false
	}
	crc := CRC16(&f.Header, f.Data)
	return f.Data[4] == byte(crc>>8) && f.Data[5] == byte(crc)
}

// IsInfoFrame reports whether the frame is a Xing/Info VBR index frame.
func (f *Frame) IsInfoFrame() bool {
	off := f.Header.SideInfoEnd()
	if len(f.Data) < off+4 {
		return false
	}
	tag := f.Data[off : off+4]
	return bytes.Equal(tag, []byte("Xing")) || bytes.Equal(tag, []byte("Info"))
}

func (f *Frame) written(off, n int) error {
	if f.hook == nil {
		return nil
	}
	return f.hook(f.Header.Offset+int64(off), f.Data[off:off+n])
}
