package tags

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"mp3gain-go/models"
)

const (
	apePreamble   = "APETAGEX"
	apeVersion    = 2000
	apeFooterSize = 32
	id3v1Size     = 128

	apeFlagHasHeader = 1 << 31
	apeFlagIsHeader  = 1 << 29
)

// apeTag is the APEv2 tag found at the end of a file.
type apeTag struct {
	items []Item
	start int64 // offset of the header, or of the first item without one
	end   int64 // offset just past the footer
}

// APEStore keeps gain information in an APEv2 tag at the end of the file,
// before an ID3v1 trailer when there is one. Items it does not manage are
// preserved.
type APEStore struct{}

func (s *APEStore) Read(path string) (*models.TrackTag, error) {
	t, err := readAPE(path)
	if err != nil {
		return nil, models.Attribute(err, path, models.KindTag)
	}
	if t == nil {
		return &models.TrackTag{}, nil
	}
	return Decode(t.items), nil
}

func (s *APEStore) Write(path string, tag *models.TrackTag) error {
	if err := s.rewrite(path, Encode(tag)); err != nil {
		return models.Attribute(err, path, models.KindTag)
	}
	return nil
}

func (s *APEStore) Remove(path string) error {
	if err := s.rewrite(path, nil); err != nil {
		return models.Attribute(err, path, models.KindTag)
	}
	return nil
}

// rewrite replaces the gain items of the tag with gain, keeping the rest.
func (s *APEStore) rewrite(path string, gain []Item) error {
	t, err := readAPE(path)
	if err != nil {
		return err
	}

	var items []Item
	if t != nil {
		for _, it := range t.items {
			if !IsGainKey(it.Key) {
				items = append(items, it)
			}
		}
	}
	items = append(items, gain...)
	if t == nil && len(items) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	start, end := info.Size(), info.Size()
	if t != nil {
		start, end = t.start, t.end
	} else if trailer, err := hasID3v1(f, info.Size()); err != nil {
		return err
	} else if trailer {
		start, end = info.Size()-id3v1Size, info.Size()-id3v1Size
	}

	tail := make([]byte, info.Size()-end)
	if _, err := f.ReadAt(tail, end); err != nil && err != io.EOF {
		return err
	}

	var out bytes.Buffer
	if len(items) > 0 {
		out.Write(encodeAPE(items))
	}
	out.Write(tail)

	if err := f.Truncate(start); err != nil {
		return err
	}
	if _, err := f.WriteAt(out.Bytes(), start); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "APEStore.rewrite",
		"file":     path,
		"items":    len(items),
	}).Debug("APE tag written")
	return f.Close()
}

func hasID3v1(r io.ReaderAt, size int64) (bool, error) {
	if size < id3v1Size {
		return false, nil
	}
	b := make([]byte, 3)
	if _, err := r.ReadAt(b, size-id3v1Size); err != nil {
		return false, err
	}
	return string(b) == "TAG", nil
}

// readAPE locates and parses the APE tag of path. It returns nil when the
// file has none.
func readAPE(path string) (*apeTag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewError(models.KindOpen, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()

	footerEnd := size
	trailer, err := hasID3v1(f, size)
	if err != nil {
		return nil, err
	}
	if trailer {
		footerEnd -= id3v1Size
	}
	if footerEnd < apeFooterSize {
		return nil, nil
	}

	footer := make([]byte, apeFooterSize)
	if _, err := f.ReadAt(footer, footerEnd-apeFooterSize); err != nil {
		return nil, err
	}
	if string(footer[:8]) != apePreamble {
		return nil, nil
	}
	tagSize := int64(binary.LittleEndian.Uint32(footer[12:]))
	count := int(binary.LittleEndian.Uint32(footer[16:]))
	flags := binary.LittleEndian.Uint32(footer[20:])
	if tagSize < apeFooterSize || tagSize > footerEnd {
		return nil, fmt.Errorf("corrupt APE tag size %d", tagSize)
	}

	itemsStart := footerEnd - tagSize
	data := make([]byte, tagSize-apeFooterSize)
	if _, err := f.ReadAt(data, itemsStart); err != nil {
		return nil, err
	}
	items, err := decodeAPEItems(data, count)
	if err != nil {
		return nil, err
	}

	start := itemsStart
	if flags&apeFlagHasHeader != 0 && start >= apeFooterSize {
		start -= apeFooterSize
	}
	return &apeTag{items: items, start: start, end: footerEnd}, nil
}

func decodeAPEItems(data []byte, count int) ([]Item, error) {
	items := make([]Item, 0, count)
	for i := 0; i < count; i++ {
		if len(data) < 9 {
			return nil, fmt.Errorf("truncated APE item %d", i)
		}
		valueLen := int(binary.LittleEndian.Uint32(data))
		data = data[8:]
		nul := bytes.IndexByte(data, 0)
		if nul < 0 || nul+1+valueLen > len(data) {
			return nil, fmt.Errorf("corrupt APE item %d", i)
		}
		items = append(items, Item{
			Key:   string(data[:nul]),
			Value: string(data[nul+1 : nul+1+valueLen]),
		})
		data = data[nul+1+valueLen:]
	}
	return items, nil
}

// encodeAPE builds a complete tag with header and footer.
func encodeAPE(items []Item) []byte {
	var body bytes.Buffer
	for _, it := range items {
		var hdr [8]byte
		binary.LittleEndian.PutUint32(hdr[:], uint32(len(it.Value)))
		body.Write(hdr[:])
		body.WriteString(it.Key)
		body.WriteByte(0)
		body.WriteString(it.Value)
	}

	size := uint32(body.Len() + apeFooterSize)
	var out bytes.Buffer
	out.Write(apeFrame(size, len(items), apeFlagHasHeader|apeFlagIsHeader))
	out.Write(body.Bytes())
	out.Write(apeFrame(size, len(items), apeFlagHasHeader))
	return out.Bytes()
}

func apeFrame(size uint32, count int, flags uint32) []byte {
	b := make([]byte, apeFooterSize)
	copy(b, apePreamble)
	binary.LittleEndian.PutUint32(b[8:], apeVersion)
	binary.LittleEndian.PutUint32(b[12:], size)
	binary.LittleEndian.PutUint32(b[16:], uint32(count))
	binary.LittleEndian.PutUint32(b[20:], flags)
	return b
}
