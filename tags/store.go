package tags

import (
	"os"

	"mp3gain-go/models"
)

// Store reads and writes the gain information of a file.
type Store interface {
	Read(path string) (*models.TrackTag, error)
	Write(path string, tag *models.TrackTag) error
	Remove(path string) error
}

// NewStore returns the store for format. With preserveTime set, writes
// restore the modification time the file had before.
func NewStore(format models.TagFormat, preserveTime bool) Store {
	var s Store
	if format == models.TagID3 {
		s = &ID3Store{}
	} else {
		s = &APEStore{}
	}
	if preserveTime {
		s = &timePreserving{Store: s}
	}
	return s
}

type timePreserving struct {
	Store
}

func (t *timePreserving) Write(path string, tag *models.TrackTag) error {
	return keepModTime(path, func() error { return t.Store.Write(path, tag) })
}

func (t *timePreserving) Remove(path string) error {
	return keepModTime(path, func() error { return t.Store.Remove(path) })
}

func keepModTime(path string, fn func() error) error {
	info, err := os.Stat(path)
	if err != nil {
		return models.NewError(models.KindOpen, path, err)
	}
	if err := fn(); err != nil {
		return err
	}
	mtime := info.ModTime()
	return os.Chtimes(path, mtime, mtime)
}
