// Package filetx commits global_gain changes to MP3 files, either by
// patching the file in place or by writing a modified copy and swapping it in.
package filetx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"mp3gain-go/models"
	"mp3gain-go/mp3parser"
)

// Strategy selects how a change reaches the disk.
type Strategy int

const (
	// InPlace overwrites the changed bytes of the original file.
	InPlace Strategy = iota
	// CopySwap writes a full modified copy next to the original and renames
	// it over the original once its length has been verified.
	CopySwap
)

func (s Strategy) String() string {
	if s == CopySwap {
		return "copy-swap"
	}
	return "in-place"
}

// progressInterval is the number of frames between progress callbacks.
const progressInterval = 200

// Options control a gain change.
type Options struct {
	Strategy     Strategy
	Policy       mp3parser.GainPolicy
	PreserveTime bool
	AssumeLayer3 bool

	BufferSize int // scanner buffer, mp3parser.DefaultBufferSize when 0
	QueueSize  int // in-place write queue, DefaultQueueSize when 0

	// Progress, if set, receives the bytes scanned and the file size.
	Progress func(done, total int64)
}

// Result describes a committed change.
type Result struct {
	Frames int
	Bytes  int64
}

type output interface {
	io.WriteCloser
	Name() string
}

// createOutput opens the temporary copy for CopySwap.
var createOutput = func(dir string) (output, error) {
	return os.CreateTemp(dir, ".mp3gain-*.tmp")
}

var rename = os.Rename

// ChangeGain adds left and right steps to every gain field of the file at
// path. A change that differs between channels is refused for files with
// joint stereo or mono frames before anything is written.
func ChangeGain(path string, left, right int, opts Options) (Result, error) {
	log := logrus.WithFields(logrus.Fields{
		"function": "ChangeGain",
		"file":     path,
		"left":     left,
		"right":    right,
		"strategy": opts.Strategy.String(),
	})
	if left == 0 && right == 0 {
		log.Debug("No change requested")
		return Result{}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return Result{}, models.NewError(models.KindOpen, path, err)
	}

	if left != right {
		if err := checkChannelModes(path, opts); err != nil {
			return Result{}, models.Attribute(err, path, models.KindOpen)
		}
	}

	var res Result
	switch opts.Strategy {
	case CopySwap:
		res, err = copySwap(path, info, [2]int{left, right}, opts)
	default:
		res, err = inPlace(path, info, [2]int{left, right}, opts)
	}
	if err != nil {
		return res, models.Attribute(err, path, models.KindModify)
	}

	if opts.PreserveTime {
		mtime := info.ModTime()
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			log.WithError(err).Warn("Could not restore modification time")
		}
	}
	log.WithField("frames", res.Frames).Info("Gain change committed")
	return res, nil
}

func inPlace(path string, info os.FileInfo, delta [2]int, opts Options) (Result, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Result{}, models.NewError(models.KindOpen, path, err)
	}
	defer f.Close()

	q := NewWriteQueue(f, opts.QueueSize)
	s := newScanner(f, opts)
	s.SetWriteHook(q.Add)

	res, err := walk(s, delta, info.Size(), opts)
	if err != nil {
		q.Discard()
		return res, err
	}
	if err := q.Flush(); err != nil {
		return res, models.NewError(models.KindModify, path, err)
	}
	if err := f.Close(); err != nil {
		return res, models.NewError(models.KindModify, path, err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "inPlace",
		"file":     path,
		"flushes":  q.Flushes(),
	}).Debug("Write queue flushed")
	res.Bytes = info.Size()
	return res, nil
}

func copySwap(path string, info os.FileInfo, delta [2]int, opts Options) (Result, error) {
	in, err := os.Open(path)
	if err != nil {
		return Result{}, models.NewError(models.KindOpen, path, err)
	}
	defer in.Close()

	out, err := createOutput(filepath.Dir(path))
	if err != nil {
		return Result{}, models.NewError(models.KindTempCreate, path, err)
	}
	tmp := out.Name()
	committed := false
	defer func() {
		if !committed {
			out.Close()
			os.Remove(tmp)
		}
	}()

	var written int64
	s := newScanner(in, opts)
	s.SetRetire(func(b []byte) error {
		n, err := out.Write(b)
		written += int64(n)
		return err
	})

	res, err := walk(s, delta, info.Size(), opts)
	if err != nil {
		return res, models.Attribute(err, path, models.KindInsufficientSpace)
	}
	if err := s.Drain(); err != nil {
		return res, models.NewError(models.KindInsufficientSpace, path, err)
	}
	if err := out.Close(); err != nil {
		return res, models.NewError(models.KindInsufficientSpace, path, err)
	}
	if oi, err := os.Stat(tmp); err != nil || oi.Size() != info.Size() || written != info.Size() {
		return res, &models.Error{
			Kind:   models.KindInsufficientSpace,
			File:   path,
			Offset: -1,
			Detail: fmt.Sprintf("copy is not %d bytes long", info.Size()),
			Err:    err,
		}
	}
	in.Close()

	if err := os.Chmod(tmp, info.Mode().Perm()); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "copySwap",
			"file":     path,
		}).WithError(err).Warn("Could not copy file permissions")
	}
	if err := os.Remove(path); err != nil {
		return res, models.NewError(models.KindModify, path, err)
	}
	committed = true
	if err := rename(tmp, path); err != nil {
		return res, &models.Error{Kind: models.KindRename, File: path, Offset: -1, Detail: "new file left at " + tmp, Err: err}
	}
	res.Bytes = written
	return res, nil
}

func newScanner(r io.Reader, opts Options) *mp3parser.Scanner {
	s := mp3parser.NewScanner(r, opts.BufferSize)
	s.AssumeLayer3(opts.AssumeLayer3)
	return s
}

// walk applies delta to every frame the scanner yields.
func walk(s *mp3parser.Scanner, delta [2]int, total int64, opts Options) (Result, error) {
	var res Result
	f, err := s.First()
	for err == nil {
		if err := f.ApplyGain(delta, opts.Policy); err != nil {
			return res, err
		}
		res.Frames++
		if opts.Progress != nil && res.Frames%progressInterval == 0 {
			opts.Progress(s.Offset(), total)
		}
		f, err = s.Next()
	}
	if !errors.Is(err, io.EOF) {
		return res, err
	}
	if opts.Progress != nil {
		opts.Progress(total, total)
	}
	return res, nil
}

// checkChannelModes fails when any frame carries joint stereo or mono.
func checkChannelModes(path string, opts Options) error {
	f, err := os.Open(path)
	if err != nil {
		return models.NewError(models.KindOpen, path, err)
	}
	defer f.Close()

	s := newScanner(f, opts)
	fr, err := s.First()
	for err == nil {
		if fr.Header.ChannelMode&1 == 1 {
			return &models.Error{Kind: models.KindSingleChannel, File: path, Offset: fr.Header.Offset}
		}
		fr, err = s.Next()
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
