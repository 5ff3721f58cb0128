package tags

import (
	"github.com/bogem/id3v2/v2"
	"github.com/sirupsen/logrus"

	"mp3gain-go/models"
)

const userTextFrameID = "TXXX"

// ID3Store keeps gain information in ID3v2 TXXX frames. Values left in an
// APE tag by earlier runs are read too and moved over on the next write.
type ID3Store struct {
	ape APEStore
}

func (s *ID3Store) Read(path string) (*models.TrackTag, error) {
	tag, err := s.ape.Read(path)
	if err != nil {
		return nil, err
	}
	if tag.HasGainData() {
		tag.Dirty = true
	}

	items, err := readUserText(path)
	if err != nil {
		return nil, models.NewError(models.KindTag, path, err)
	}
	tag.Merge(Decode(items))
	return tag, nil
}

func (s *ID3Store) Write(path string, tag *models.TrackTag) error {
	if err := s.rewrite(path, Encode(tag)); err != nil {
		return models.NewError(models.KindTag, path, err)
	}
	return s.ape.Remove(path)
}

func (s *ID3Store) Remove(path string) error {
	if err := s.rewrite(path, nil); err != nil {
		return models.NewError(models.KindTag, path, err)
	}
	return s.ape.Remove(path)
}

func readUserText(path string) ([]Item, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, err
	}
	defer tag.Close()

	var items []Item
	for _, f := range tag.GetFrames(userTextFrameID) {
		udtf, ok := f.(id3v2.UserDefinedTextFrame)
		if !ok {
			continue
		}
		items = append(items, Item{Key: udtf.Description, Value: udtf.Value})
	}
	return items, nil
}

// rewrite replaces the gain TXXX frames with gain, keeping every other frame.
func (s *ID3Store) rewrite(path string, gain []Item) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	var keep []id3v2.UserDefinedTextFrame
	removed := 0
	for _, f := range tag.GetFrames(userTextFrameID) {
		udtf, ok := f.(id3v2.UserDefinedTextFrame)
		if !ok {
			continue
		}
		if IsGainKey(udtf.Description) {
			removed++
			continue
		}
		keep = append(keep, udtf)
	}
	if removed == 0 && len(gain) == 0 {
		return nil
	}

	tag.DeleteFrames(userTextFrameID)
	for _, f := range keep {
		tag.AddUserDefinedTextFrame(f)
	}
	for _, it := range gain {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: it.Key,
			Value:       it.Value,
		})
	}

	logrus.WithFields(logrus.Fields{
		"function": "ID3Store.rewrite",
		"file":     path,
		"frames":   len(gain),
	}).Debug("Saving ID3v2 tag")
	return tag.Save()
}
