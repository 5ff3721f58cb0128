// Package audio decodes Layer III streams to PCM for loudness analysis.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-audio/audio"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/tosone/minimp3"

	"mp3gain-go/models"
)

// BitDepth of every decoded stream.
const BitDepth = 16

// Stream yields interleaved 16-bit PCM.
type Stream interface {
	Format() *audio.Format
	// Read fills buf.Data from the start and returns the number of samples
	// stored. It returns io.EOF once the stream is exhausted.
	Read(buf *audio.IntBuffer) (int, error)
	Close() error
}

// Decoder opens PCM streams over concatenated Layer III frames.
type Decoder interface {
	Name() string
	Open(r io.Reader) (Stream, error)
}

var decoders = map[string]func() Decoder{
	"minimp3": func() Decoder { return &MiniMP3Decoder{} },
	"gomp3":   func() Decoder { return &GoMP3Decoder{} },
}

// Names lists the available decoders.
func Names() []string {
	names := make([]string, 0, len(decoders))
	for n := range decoders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewDecoder returns the decoder registered under name.
func NewDecoder(name string) (Decoder, error) {
	mk, ok := decoders[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown decoder %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return mk(), nil
}

// MiniMP3Decoder decodes a whole stream at once with minimp3.
type MiniMP3Decoder struct{}

func (d *MiniMP3Decoder) Name() string { return "minimp3" }

func (d *MiniMP3Decoder) Open(r io.Reader) (Stream, error) {
	mp3Data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read MP3 data: %w", err)
	}
	if len(mp3Data) == 0 {
		return nil, models.NewError(models.KindDecode, "", io.ErrUnexpectedEOF)
	}

	decoder, data, err := minimp3.DecodeFull(mp3Data)
	if err != nil {
		return nil, models.NewError(models.KindDecode, "", err)
	}
	defer decoder.Close()

	if decoder.Channels < 1 || decoder.SampleRate <= 0 {
		return nil, models.NewError(models.KindDecode, "", fmt.Errorf("no audio decoded"))
	}
	return newPCMStream(bytes.NewReader(data), decoder.SampleRate, decoder.Channels), nil
}

// GoMP3Decoder streams with the pure Go decoder. Its output is always stereo.
type GoMP3Decoder struct{}

func (d *GoMP3Decoder) Name() string { return "gomp3" }

func (d *GoMP3Decoder) Open(r io.Reader) (Stream, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, models.NewError(models.KindDecode, "", err)
	}
	return newPCMStream(dec, dec.SampleRate(), 2), nil
}

// pcmStream converts little endian 16-bit PCM bytes to IntBuffer samples.
type pcmStream struct {
	r      io.Reader
	format *audio.Format
	raw    []byte
}

func newPCMStream(r io.Reader, rate, channels int) *pcmStream {
	return &pcmStream{
		r:      r,
		format: &audio.Format{NumChannels: channels, SampleRate: rate},
	}
}

func (s *pcmStream) Format() *audio.Format { return s.format }

func (s *pcmStream) Read(buf *audio.IntBuffer) (int, error) {
	if len(buf.Data) == 0 {
		return 0, fmt.Errorf("empty buffer")
	}
	// whole sample frames only
	want := len(buf.Data) - len(buf.Data)%s.format.NumChannels
	if cap(s.raw) < want*2 {
		s.raw = make([]byte, want*2)
	}
	raw := s.raw[:want*2]

	n, err := io.ReadFull(s.r, raw)
	n -= n % (2 * s.format.NumChannels)
	for i := 0; i < n/2; i++ {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}
	buf.Format = s.format
	buf.SourceBitDepth = BitDepth

	switch {
	case n > 0 && (err == io.EOF || err == io.ErrUnexpectedEOF):
		return n / 2, nil
	case err == io.ErrUnexpectedEOF:
		return 0, io.EOF
	case err != nil && err != io.EOF:
		return n / 2, models.NewError(models.KindDecode, "", err)
	}
	return n / 2, err
}

func (s *pcmStream) Close() error {
	s.raw = nil
	return nil
}
