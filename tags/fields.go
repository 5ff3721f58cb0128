// Package tags persists gain information in APEv2 or ID3v2 tags.
package tags

import (
	"fmt"
	"strconv"
	"strings"

	"mp3gain-go/models"
)

// Item keys, stored upper case.
const (
	KeyTrackGain   = "REPLAYGAIN_TRACK_GAIN"
	KeyTrackPeak   = "REPLAYGAIN_TRACK_PEAK"
	KeyAlbumGain   = "REPLAYGAIN_ALBUM_GAIN"
	KeyAlbumPeak   = "REPLAYGAIN_ALBUM_PEAK"
	KeyMinMax      = "MP3GAIN_MINMAX"
	KeyAlbumMinMax = "MP3GAIN_ALBUM_MINMAX"
	KeyUndo        = "MP3GAIN_UNDO"
)

var gainKeys = []string{KeyTrackGain, KeyTrackPeak, KeyAlbumGain, KeyAlbumPeak, KeyMinMax, KeyAlbumMinMax, KeyUndo}

// IsGainKey reports whether key is one of the keys this package manages.
func IsGainKey(key string) bool {
	for _, k := range gainKeys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// Item is one key/value pair in stored order.
type Item struct {
	Key   string
	Value string
}

// Encode renders the present fields of tag.
func Encode(tag *models.TrackTag) []Item {
	var items []Item
	if tag.HaveTrackGain {
		items = append(items, Item{KeyTrackGain, formatGain(tag.TrackGain)})
	}
	if tag.HaveTrackPeak {
		items = append(items, Item{KeyTrackPeak, formatPeak(tag.TrackPeak)})
	}
	if tag.HaveAlbumGain {
		items = append(items, Item{KeyAlbumGain, formatGain(tag.AlbumGain)})
	}
	if tag.HaveAlbumPeak {
		items = append(items, Item{KeyAlbumPeak, formatPeak(tag.AlbumPeak)})
	}
	if tag.HaveMinMaxGain {
		items = append(items, Item{KeyMinMax, formatMinMax(tag.MinGain, tag.MaxGain)})
	}
	if tag.HaveAlbumMinMaxGain {
		items = append(items, Item{KeyAlbumMinMax, formatMinMax(tag.AlbumMinGain, tag.AlbumMaxGain)})
	}
	if tag.HaveUndo {
		items = append(items, Item{KeyUndo, formatUndo(tag.UndoLeft, tag.UndoRight, tag.UndoWrap)})
	}
	return items
}

// Decode parses the gain fields among items. Keys match case-insensitively;
// unparsable values are treated as absent.
func Decode(items []Item) *models.TrackTag {
	tag := &models.TrackTag{}
	for _, it := range items {
		v := strings.TrimSpace(it.Value)
		switch strings.ToUpper(it.Key) {
		case KeyTrackGain:
			tag.TrackGain, tag.HaveTrackGain = parseGain(v)
		case KeyTrackPeak:
			tag.TrackPeak, tag.HaveTrackPeak = parsePeak(v)
		case KeyAlbumGain:
			tag.AlbumGain, tag.HaveAlbumGain = parseGain(v)
		case KeyAlbumPeak:
			tag.AlbumPeak, tag.HaveAlbumPeak = parsePeak(v)
		case KeyMinMax:
			tag.MinGain, tag.MaxGain, tag.HaveMinMaxGain = parseMinMax(v)
		case KeyAlbumMinMax:
			tag.AlbumMinGain, tag.AlbumMaxGain, tag.HaveAlbumMinMaxGain = parseMinMax(v)
		case KeyUndo:
			tag.UndoLeft, tag.UndoRight, tag.UndoWrap, tag.HaveUndo = parseUndo(v)
		}
	}
	return tag
}

func formatGain(db float64) string { return fmt.Sprintf("%+.6f dB", db) }
func formatPeak(p float64) string  { return fmt.Sprintf("%.6f", p) }

func formatMinMax(lo, hi uint8) string { return fmt.Sprintf("%03d,%03d", lo, hi) }

func formatUndo(left, right int, wrap bool) string {
	w := "N"
	if wrap {
		w = "W"
	}
	return fmt.Sprintf("%+04d,%+04d,%s", left, right, w)
}

func parseGain(v string) (float64, bool) {
	if len(v) > 2 && strings.EqualFold(v[len(v)-2:], "dB") {
		v = strings.TrimSpace(v[:len(v)-2])
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

func parsePeak(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

func parseMinMax(v string) (uint8, uint8, bool) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, err1 := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 8)
	hi, err2 := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 8)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return uint8(lo), uint8(hi), true
}

func parseUndo(v string) (int, int, bool, bool) {
	parts := strings.Split(v, ",")
	if len(parts) < 2 {
		return 0, 0, false, false
	}
	left, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	right, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false, false
	}
	wrap := len(parts) > 2 && strings.EqualFold(strings.TrimSpace(parts[2]), "W")
	return left, right, wrap, true
}
