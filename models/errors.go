package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a per-file failure.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota

	// Format errors.
	KindUnsupportedLayer
	KindFreeFormat
	KindNoFrames
	KindSingleChannel

	// I/O errors.
	KindOpen
	KindTempCreate
	KindInsufficientSpace
	KindRename
	KindModify

	// Analysis errors.
	KindNotEnoughSamples
	KindDecode

	// Tag errors.
	KindTag
	KindNoUndo
)

var kindNames = map[ErrorKind]string{
	KindUnknown:           "unknown error",
	KindUnsupportedLayer:  "unsupported layer",
	KindFreeFormat:        "free format bitrate not supported",
	KindNoFrames:          "no valid MP3 frames",
	KindSingleChannel:     "cannot adjust a single channel of mono or joint stereo",
	KindOpen:              "cannot open file",
	KindTempCreate:        "cannot create temp file",
	KindInsufficientSpace: "not enough temp space",
	KindRename:            "cannot rename temp file",
	KindModify:            "cannot modify file",
	KindNotEnoughSamples:  "not enough samples to do analysis",
	KindDecode:            "decoding failed",
	KindTag:               "tag update failed",
	KindNoUndo:            "no undo information",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// IsFormat reports whether the kind describes an unsupported or unreadable stream.
func (k ErrorKind) IsFormat() bool {
	return k >= KindUnsupportedLayer && k <= KindSingleChannel
}

// IsIO reports whether the kind is a file system failure.
func (k ErrorKind) IsIO() bool {
	return k >= KindOpen && k <= KindModify
}

// Error is a per-file failure with its classification and context.
type Error struct {
	Kind   ErrorKind
	File   string
	Offset int64 // byte offset in File, -1 when not meaningful
	Detail string
	Err    error
}

// Sentinel errors for errors.Is comparisons; they match any *Error of the same kind.
var (
	ErrUnsupportedLayer  = &Error{Kind: KindUnsupportedLayer, Offset: -1}
	ErrFreeFormat        = &Error{Kind: KindFreeFormat, Offset: -1}
	ErrNoFrames          = &Error{Kind: KindNoFrames, Offset: -1}
	ErrSingleChannel     = &Error{Kind: KindSingleChannel, Offset: -1}
	ErrOpen              = &Error{Kind: KindOpen, Offset: -1}
	ErrTempCreate        = &Error{Kind: KindTempCreate, Offset: -1}
	ErrInsufficientSpace = &Error{Kind: KindInsufficientSpace, Offset: -1}
	ErrRename            = &Error{Kind: KindRename, Offset: -1}
	ErrModify            = &Error{Kind: KindModify, Offset: -1}
	ErrNotEnoughSamples  = &Error{Kind: KindNotEnoughSamples, Offset: -1}
	ErrDecode            = &Error{Kind: KindDecode, Offset: -1}
	ErrTag               = &Error{Kind: KindTag, Offset: -1}
	ErrNoUndo            = &Error{Kind: KindNoUndo, Offset: -1}
)

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, file string, err error) *Error {
	return &Error{Kind: kind, File: file, Offset: -1, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// WithFile returns a copy of e attributed to file.
func (e *Error) WithFile(file string) *Error {
	c := *e
	c.File = file
	return &c
}

// KindOf extracts the kind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Attribute sets the file name on err when it is an *Error without one,
// and wraps any other error with the given fallback kind.
func Attribute(err error, file string, fallback ErrorKind) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.File == "" {
			return e.WithFile(file)
		}
		return e
	}
	return NewError(fallback, file, err)
}
