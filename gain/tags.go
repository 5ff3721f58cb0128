package gain

import (
	"math"

	"mp3gain-go/models"
	"mp3gain-go/mp3parser"
)

// Differences smaller than these do not mark a tag dirty.
const (
	gainTolerance      = 0.01
	trackPeakTolerance = 3.3 / 32768
	albumPeakTolerance = 0.0001
)

// Measurement holds freshly computed values for a track or an album. Only
// fields with their Have flag set are applied.
type Measurement struct {
	DB     float64
	HaveDB bool

	Peak     float64
	HavePeak bool

	MinGain    uint8
	MaxGain    uint8
	HaveMinMax bool
}

// Album aggregates per-track measurements: maximum peak, lowest minimum and
// highest maximum gain field. DB is left to the album loudness histogram.
func Album(tracks []Measurement) Measurement {
	var a Measurement
	for _, t := range tracks {
		if t.HavePeak {
			if !a.HavePeak || t.Peak > a.Peak {
				a.Peak = t.Peak
			}
			a.HavePeak = true
		}
		if t.HaveMinMax {
			if !a.HaveMinMax {
				a.MinGain, a.MaxGain = t.MinGain, t.MaxGain
			} else {
				a.MinGain = min(a.MinGain, t.MinGain)
				a.MaxGain = max(a.MaxGain, t.MaxGain)
			}
			a.HaveMinMax = true
		}
	}
	return a
}

// UpdateTrack stores a track measurement, marking the tag dirty when a value
// is new or moved beyond tolerance.
func UpdateTrack(tag *models.TrackTag, m Measurement) {
	if m.HaveDB && (!tag.HaveTrackGain || math.Abs(tag.TrackGain-m.DB) >= gainTolerance) {
		tag.TrackGain, tag.HaveTrackGain = m.DB, true
		tag.Dirty = true
	}
	if m.HavePeak && (!tag.HaveTrackPeak || math.Abs(tag.TrackPeak-m.Peak) >= trackPeakTolerance) {
		tag.TrackPeak, tag.HaveTrackPeak = m.Peak, true
		tag.Dirty = true
	}
	if m.HaveMinMax && (!tag.HaveMinMaxGain || tag.MinGain != m.MinGain || tag.MaxGain != m.MaxGain) {
		tag.MinGain, tag.MaxGain, tag.HaveMinMaxGain = m.MinGain, m.MaxGain, true
		tag.Dirty = true
	}
}

// UpdateAlbum stores an album measurement the same way.
func UpdateAlbum(tag *models.TrackTag, m Measurement) {
	if m.HaveDB && (!tag.HaveAlbumGain || math.Abs(tag.AlbumGain-m.DB) >= gainTolerance) {
		tag.AlbumGain, tag.HaveAlbumGain = m.DB, true
		tag.Dirty = true
	}
	if m.HavePeak && (!tag.HaveAlbumPeak || math.Abs(tag.AlbumPeak-m.Peak) >= albumPeakTolerance) {
		tag.AlbumPeak, tag.HaveAlbumPeak = m.Peak, true
		tag.Dirty = true
	}
	if m.HaveMinMax && (!tag.HaveAlbumMinMaxGain || tag.AlbumMinGain != m.MinGain || tag.AlbumMaxGain != m.MaxGain) {
		tag.AlbumMinGain, tag.AlbumMaxGain, tag.HaveAlbumMinMaxGain = m.MinGain, m.MaxGain, true
		tag.Dirty = true
	}
}

// RecordChange books a committed change of left/right steps: the undo deltas
// accumulate its inverse, and stored gains, peaks and min/max gain fields are
// moved analytically. Gains and peaks are only adjusted for symmetric changes.
func RecordChange(tag *models.TrackTag, left, right int, wrap bool) {
	if left == 0 && right == 0 {
		return
	}
	if !tag.HaveUndo {
		tag.UndoLeft, tag.UndoRight = 0, 0
	}
	tag.UndoLeft -= left
	tag.UndoRight -= right
	tag.UndoWrap = wrap
	tag.HaveUndo = true
	tag.Dirty = true

	if left == right {
		db := float64(left) * DBPerStep
		scale := math.Pow(2, float64(left)/4)
		if tag.HaveTrackGain {
			tag.TrackGain -= db
		}
		if tag.HaveAlbumGain {
			tag.AlbumGain -= db
		}
		if tag.HaveTrackPeak {
			tag.TrackPeak *= scale
		}
		if tag.HaveAlbumPeak {
			tag.AlbumPeak *= scale
		}
	}

	if tag.HaveMinMaxGain {
		tag.MinGain, tag.MaxGain, tag.HaveMinMaxGain = shiftMinMax(tag.MinGain, tag.MaxGain, left, right, wrap)
	}
	if tag.HaveAlbumMinMaxGain {
		tag.AlbumMinGain, tag.AlbumMaxGain, tag.HaveAlbumMinMaxGain = shiftMinMax(tag.AlbumMinGain, tag.AlbumMaxGain, left, right, wrap)
	}
}

// shiftMinMax moves a min/max gain field range by each channel's change.
// Under wrap a range leaving 0..255 cannot be tracked and is dropped.
func shiftMinMax(lo, hi uint8, left, right int, wrap bool) (uint8, uint8, bool) {
	newLo, newHi := -1, -1
	for _, d := range []int{left, right} {
		var l, h int
		if wrap {
			l, h = int(lo)+d, int(hi)+d
			if l < 0 || h > 255 {
				return 0, 0, false
			}
		} else {
			l = int(mp3parser.AdjustGain(lo, d, mp3parser.Clamp))
			h = int(mp3parser.AdjustGain(hi, d, mp3parser.Clamp))
		}
		if newLo < 0 || l < newLo {
			newLo = l
		}
		if h > newHi {
			newHi = h
		}
	}
	return uint8(newLo), uint8(newHi), true
}
