package processor

import (
	"errors"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/sirupsen/logrus"

	"mp3gain-go/audio"
	"mp3gain-go/gain"
	"mp3gain-go/models"
	"mp3gain-go/mp3parser"
)

// bufferSamples is the size of one PCM block handed to the analyzer.
const bufferSamples = 4096

// frameSource feeds the audio frames of a scanner to a decoder as one byte
// stream and records the global_gain range on the way.
type frameSource struct {
	s       *mp3parser.Scanner
	pending []byte
	buf     []byte
	err     error

	frames     int
	minGain    uint8
	maxGain    uint8
	haveGains  bool
	onProgress func(frames int)
}

func newFrameSource(s *mp3parser.Scanner, first *mp3parser.Frame) *frameSource {
	fs := &frameSource{s: s}
	fs.add(first)
	return fs
}

func (fs *frameSource) add(f *mp3parser.Frame) {
	fs.frames++
	if g, err := f.Gains(); err == nil {
		for _, v := range g {
			if !fs.haveGains || v < fs.minGain {
				fs.minGain = v
			}
			if !fs.haveGains || v > fs.maxGain {
				fs.maxGain = v
			}
			fs.haveGains = true
		}
	}
	// frame data lives in the scanner buffer until the next call
	fs.buf = append(fs.buf[:0], f.Data...)
	fs.pending = fs.buf
	if fs.onProgress != nil && fs.frames%progressFrames == 0 {
		fs.onProgress(fs.frames)
	}
}

func (fs *frameSource) Read(p []byte) (int, error) {
	for len(fs.pending) == 0 {
		if fs.err != nil {
			return 0, fs.err
		}
		f, err := fs.s.Next()
		if err != nil {
			fs.err = err
			continue
		}
		fs.add(f)
	}
	n := copy(p, fs.pending)
	fs.pending = fs.pending[n:]
	return n, nil
}

// scanErr returns the scanner failure that ended the stream, if any.
func (fs *frameSource) scanErr() error {
	if fs.err == nil || errors.Is(fs.err, io.EOF) {
		return nil
	}
	return fs.err
}

// measurement is what one analysis pass found for a file.
type measurement struct {
	gain.Measurement
	frames int
}

// openFrames opens path and positions a scanner on its first audio frame.
func (p *Processor) openFrames(path string) (*os.File, *mp3parser.Scanner, *mp3parser.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, models.NewError(models.KindOpen, path, err)
	}
	s := mp3parser.NewScanner(f, 0)
	s.AssumeLayer3(p.cfg.AssumeLayer3)
	first, err := s.First()
	if errors.Is(err, io.EOF) {
		f.Close()
		return nil, nil, nil, models.NewError(models.KindNotEnoughSamples, path, nil)
	}
	if err != nil {
		f.Close()
		return nil, nil, nil, models.Attribute(err, path, models.KindOpen)
	}
	return f, s, first, nil
}

// scanGains reads the global_gain range of path without decoding.
func (p *Processor) scanGains(path string) (measurement, error) {
	f, s, first, err := p.openFrames(path)
	if err != nil {
		return measurement{}, err
	}
	defer f.Close()

	size := fileSize(f)
	src := newFrameSource(s, first)
	src.onProgress = func(int) { p.reportProgress(path, s.Offset(), size) }
	if _, err := io.Copy(io.Discard, src); err != nil {
		return measurement{}, models.Attribute(err, path, models.KindOpen)
	}
	p.reportProgress(path, size, size)

	var m measurement
	m.frames = src.frames
	m.MinGain, m.MaxGain, m.HaveMinMax = src.minGain, src.maxGain, src.haveGains
	return m, nil
}

// decodeAndAnalyze decodes path, measuring the peak and, when withLoudness is
// set, the track loudness. A measured track joins the album histogram; a
// failed one leaves the analyzer as it found it.
func (p *Processor) decodeAndAnalyze(path string, withLoudness bool) (measurement, error) {
	log := logrus.WithFields(logrus.Fields{
		"function": "decodeAndAnalyze",
		"file":     path,
		"decoder":  p.decoder.Name(),
	})

	f, s, first, err := p.openFrames(path)
	if err != nil {
		return measurement{}, err
	}
	defer f.Close()

	size := fileSize(f)
	src := newFrameSource(s, first)
	src.onProgress = func(int) { p.reportProgress(path, s.Offset(), size) }

	stream, err := p.decoder.Open(src)
	if err != nil {
		return measurement{}, models.Attribute(err, path, models.KindDecode)
	}
	defer stream.Close()

	format := stream.Format()
	measured := false
	if withLoudness {
		p.analyzer.Reset(format.SampleRate)
		defer func() {
			if !measured {
				p.analyzer.DiscardTrack()
			}
		}()
	}
	log.WithFields(logrus.Fields{
		"sample_rate": format.SampleRate,
		"channels":    format.NumChannels,
		"filter_rate": p.analyzer.Rate(),
	}).Debug("Decoding")

	var dump *audio.WAVFile
	if p.wav != nil {
		if dump, err = p.wav.Create(path, format); err != nil {
			log.WithError(err).Warn("Could not create WAV dump")
		}
		defer func() {
			if dump != nil {
				dump.Close()
			}
		}()
	}

	var meter audio.PeakMeter
	buf := &goaudio.IntBuffer{Format: format, Data: make([]int, bufferSamples), SourceBitDepth: audio.BitDepth}
	samples := 0
	for {
		n, rerr := stream.Read(buf)
		if n > 0 {
			block := &goaudio.IntBuffer{Format: format, Data: buf.Data[:n], SourceBitDepth: audio.BitDepth}
			meter.Add(block)
			samples += n
			if withLoudness {
				if err := p.analyzer.AccumulateBuffer(block); err != nil {
					return measurement{}, models.NewError(models.KindDecode, path, err)
				}
			}
			if dump != nil {
				if err := dump.Write(block); err != nil {
					log.WithError(err).Warn("WAV dump failed")
					dump.Close()
					dump = nil
				}
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			// keep what was decoded
			log.WithError(rerr).WithField("samples", samples).Warn("Decoding stopped early")
			break
		}
	}
	// every frame still counts for min/max
	if _, err := io.Copy(io.Discard, src); err != nil {
		return measurement{}, models.Attribute(err, path, models.KindOpen)
	}
	if err := src.scanErr(); err != nil {
		return measurement{}, models.Attribute(err, path, models.KindOpen)
	}
	p.reportProgress(path, size, size)

	m := measurement{frames: src.frames}
	m.MinGain, m.MaxGain, m.HaveMinMax = src.minGain, src.maxGain, src.haveGains
	m.Peak, m.HavePeak = meter.Peak(), true
	if withLoudness {
		db, err := p.analyzer.TrackResult()
		measured = true
		if err != nil {
			return measurement{}, models.Attribute(err, path, models.KindNotEnoughSamples)
		}
		m.DB, m.HaveDB = db, true
	}
	log.WithFields(logrus.Fields{
		"frames":  m.frames,
		"samples": samples,
		"peak_db": audio.PeakDB(m.Peak),
	}).Debug("Analysis finished")
	return m, nil
}

func fileSize(f *os.File) int64 {
	info, err := f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}
