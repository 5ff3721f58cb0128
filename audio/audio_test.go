package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmBytes(samples ...int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

func TestNewDecoder(t *testing.T) {
	for _, name := range []string{"minimp3", "gomp3", "MiniMP3"} {
		d, err := NewDecoder(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, d.Name())
	}
	_, err := NewDecoder("lame")
	assert.ErrorContains(t, err, "minimp3")
	assert.Equal(t, []string{"gomp3", "minimp3"}, Names())
}

func TestPCMStreamRead(t *testing.T) {
	data := pcmBytes(1, -1, 32767, -32768, 100, 200, 7)
	s := newPCMStream(bytes.NewReader(data), 44100, 2)
	buf := &audio.IntBuffer{Data: make([]int, 4)}

	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int{1, -1, 32767, -32768}, buf.Data)
	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, 44100, buf.Format.SampleRate)

	// the dangling half frame is dropped
	n, err = s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{100, 200}, buf.Data[:n])

	_, err = s.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, s.Close())
}

func TestPeakMeter(t *testing.T) {
	var p PeakMeter
	p.Add(&audio.IntBuffer{Data: []int{10, -16384, 200}})
	assert.Equal(t, 0.5, p.Peak())
	p.Add(&audio.IntBuffer{Data: []int{-32768}})
	assert.Equal(t, 1.0, p.Peak())
	p.Reset()
	assert.Zero(t, p.Peak())

	assert.InDelta(t, -6.0206, PeakDB(0.5), 1e-4)
	assert.True(t, math.IsInf(PeakDB(0), -1))
}

func TestWAVWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "wav")
	w := NewWAVWriter(dir)
	format := &audio.Format{NumChannels: 2, SampleRate: 22050}
	wf, err := w.Create("/music/song.mp3", format)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "song.wav"), wf.Path)

	samples := []int{0, 1, -1, 1000, -1000, 32767, -32768, 5}
	require.NoError(t, wf.Write(&audio.IntBuffer{Format: format, Data: samples, SourceBitDepth: BitDepth}))
	require.NoError(t, wf.Close())

	f, err := os.Open(wf.Path)
	require.NoError(t, err)
	defer f.Close()
	d := wav.NewDecoder(f)
	require.True(t, d.IsValidFile())
	buf, err := d.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, samples, buf.Data)
	assert.Equal(t, 22050, buf.Format.SampleRate)
	assert.Equal(t, 2, buf.Format.NumChannels)
}
