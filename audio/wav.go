package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVWriter dumps decoded audio to WAV files in a directory.
type WAVWriter struct {
	dir string
}

func NewWAVWriter(dir string) *WAVWriter {
	return &WAVWriter{dir: dir}
}

// WAVFile is one WAV file being written.
type WAVFile struct {
	f    *os.File
	enc  *wav.Encoder
	Path string
}

// Create starts a WAV file named after the source file.
func (w *WAVWriter) Create(source string, format *audio.Format) (*WAVFile, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create WAV directory: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	path := filepath.Join(w.dir, base+".wav")

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}
	enc := wav.NewEncoder(f, format.SampleRate, BitDepth, format.NumChannels, 1)
	return &WAVFile{f: f, enc: enc, Path: path}, nil
}

func (w *WAVFile) Write(buf *audio.IntBuffer) error {
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("failed to encode WAV: %w", err)
	}
	return nil
}

func (w *WAVFile) Close() error {
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to close WAV encoder: %w", err)
	}
	return w.f.Close()
}
