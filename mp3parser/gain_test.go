package mp3parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mp3gain-go/models"
)

func TestGainLoci(t *testing.T) {
	tests := []struct {
		name string
		h    MP3FrameHeader
		want []int
	}{
		{"mpeg1 stereo", mpeg1Header(ModeStereo, false), []int{73, 132, 191, 250}},
		{"mpeg1 stereo crc", mpeg1Header(ModeStereo, true), []int{89, 148, 207, 266}},
		{"mpeg1 mono", mpeg1Header(ModeMono, false), []int{71, 130}},
		{"mpeg2 stereo crc", mpeg2Header(ModeStereo, true), []int{79, 142}},
		{"mpeg2 mono", mpeg2Header(ModeMono, false), []int{62}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loci := GainLoci(&tt.h)
			require.Len(t, loci, len(tt.want))
			for i, l := range loci {
				assert.Equal(t, tt.want[i], l.Bit)
				assert.Equal(t, i/tt.h.Channels(), l.Granule)
				assert.Equal(t, i%tt.h.Channels(), l.Channel)
			}
			// the last entry ends exactly at the end of the side information
			last := loci[len(loci)-1].Bit
			if tt.h.IsMPEG1() {
				last += 38
			} else {
				last += 42
			}
			assert.Equal(t, tt.h.SideInfoEnd()*8, last)
		})
	}
}

func TestAdjustGain(t *testing.T) {
	tests := []struct {
		name   string
		g      uint8
		delta  int
		policy GainPolicy
		want   uint8
	}{
		{"clamp up", 100, 20, Clamp, 120},
		{"clamp back", 120, -20, Clamp, 100},
		{"clamp zero stays", 0, 5, Clamp, 0},
		{"clamp high", 250, 10, Clamp, 255},
		{"clamp low", 5, -10, Clamp, 0},
		{"clamp big negative", 150, -200, Clamp, 0},
		{"wrap high", 250, 10, Wrap, 4},
		{"wrap zero", 0, 5, Wrap, 5},
		{"wrap low", 3, -5, Wrap, 254},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdjustGain(tt.g, tt.delta, tt.policy))
		})
	}
}

func TestAdjustGainRoundTrip(t *testing.T) {
	for g := 1; g < 256; g++ {
		for _, d := range []int{1, 5, 20, 60} {
			up := AdjustGain(uint8(g), d, Clamp)
			if int(g)+d > 255 {
				continue
			}
			assert.Equal(t, uint8(g), AdjustGain(up, -d, Clamp), "g=%d d=%d", g, d)
		}
	}
}

func TestApplyGainEndToEnd(t *testing.T) {
	h := mpeg1Header(ModeStereo, true)
	data := buildFrame(t, h, 150)
	h, err := ReadFrameHeader(data)
	require.NoError(t, err)

	f := NewFrame(h, data)
	require.True(t, f.CheckCRC())

	require.NoError(t, f.ApplyGain([2]int{10, 10}, Clamp))
	gains, err := f.Gains()
	require.NoError(t, err)
	assert.Equal(t, []uint8{160, 160, 160, 160}, gains)
	assert.True(t, f.CheckCRC())

	require.NoError(t, f.ApplyGain([2]int{-200, -200}, Clamp))
	gains, err = f.Gains()
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0, 0, 0}, gains)
	assert.True(t, f.CheckCRC())
}

func TestApplyGainSingleChannel(t *testing.T) {
	t.Run("stereo", func(t *testing.T) {
		h := mpeg2Header(ModeStereo, false)
		data := buildFrame(t, h, 100)
		h, _ = ReadFrameHeader(data)
		f := NewFrame(h, data)
		require.NoError(t, f.ApplyGain([2]int{0, -3}, Clamp))
		gains, err := f.Gains()
		require.NoError(t, err)
		assert.Equal(t, []uint8{100, 97}, gains)
	})

	for _, mode := range []int{ModeJointStereo, ModeMono} {
		h := mpeg1Header(mode, false)
		data := buildFrame(t, h, 100)
		h, _ = ReadFrameHeader(data)
		before := append([]byte(nil), data...)
		err := NewFrame(h, data).ApplyGain([2]int{2, 0}, Clamp)
		assert.ErrorIs(t, err, models.ErrSingleChannel)
		assert.Equal(t, before, data)
	}
}

func TestApplyGainWriteHook(t *testing.T) {
	h := mpeg1Header(ModeMono, true)
	data := buildFrame(t, h, 80)
	h, _ = ReadFrameHeader(data)
	h.Offset = 1000

	type write struct {
		off int64
		b   []byte
	}
	var writes []write
	f := &Frame{Header: h, Data: data, hook: func(off int64, b []byte) error {
		writes = append(writes, write{off, append([]byte(nil), b...)})
		return nil
	}}
	require.NoError(t, f.ApplyGain([2]int{1, 1}, Clamp))

	loci := GainLoci(&h)
	require.Len(t, writes, len(loci)+1)
	for i, l := range loci {
		assert.Equal(t, 1000+int64(l.ByteOffset()), writes[i].off)
		assert.Len(t, writes[i].b, 2) // both fields straddle a byte boundary
	}
	crc := writes[len(writes)-1]
	assert.Equal(t, int64(1004), crc.off)
	assert.Equal(t, data[4:6], crc.b)
}

func TestCRCDetectsChange(t *testing.T) {
	h := mpeg2Header(ModeMono, true)
	data := buildFrame(t, h, 42)
	h, _ = ReadFrameHeader(data)
	f := NewFrame(h, data)
	require.True(t, f.CheckCRC())
	data[8] ^= 0x10
	assert.False(t, f.CheckCRC())
}

func TestIsInfoFrame(t *testing.T) {
	h := mpeg1Header(ModeStereo, false)
	data := buildFrame(t, h, 0)
	h, _ = ReadFrameHeader(data)
	assert.False(t, NewFrame(h, data).IsInfoFrame())
	copy(data[h.SideInfoEnd():], "Info")
	assert.True(t, NewFrame(h, data).IsInfoFrame())
}

func TestBitCursor(t *testing.T) {
	data := []byte{0b10110011, 0b01011100, 0xFF}
	c := NewBitCursor(data)

	v, err := c.PeekBits(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b101), v)
	assert.Equal(t, 0, c.Pos())

	require.NoError(t, c.SkipBits(6))
	v, err = c.ReadBits(5)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b11010), v)
	assert.Equal(t, 1, c.ByteOffset())
	assert.Equal(t, 3, c.BitOffset())

	// reading a field and writing it back leaves the bytes unchanged
	before := append([]byte(nil), data...)
	require.NoError(t, c.Seek(5))
	v, err = c.PeekBits(8)
	require.NoError(t, err)
	require.NoError(t, c.WriteBits(8, v))
	assert.Equal(t, before, data)

	require.NoError(t, c.WriteBits(8, 0))
	assert.Equal(t, []byte{0b10110000, 0b00000100, 0xFF}, data)

	require.NoError(t, c.Seek(20))
	_, err = c.ReadBits(5)
	assert.Error(t, err)
	assert.Error(t, c.Seek(25))
}
