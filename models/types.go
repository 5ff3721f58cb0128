// Package models contain needed models
package models

// Mode selects what a batch run does with its files.
type Mode int

const (
	// ModeAnalyze reports recommended changes and refreshes stored tags.
	ModeAnalyze Mode = iota
	// ModeApplyTrack applies each file's own track gain.
	ModeApplyTrack
	// ModeApplyAlbum applies one album gain to every file.
	ModeApplyAlbum
	// ModeDirectGain applies DirectGain steps to both channels without analysis.
	ModeDirectGain
	// ModeDirectChannelGain applies DirectGain steps to one channel only.
	ModeDirectChannelGain
	// ModeUndo reverts the changes recorded in the stored undo field.
	ModeUndo
	// ModeCheckTags only prints stored tag values.
	ModeCheckTags
	// ModeDeleteTags removes stored tag values.
	ModeDeleteTags
)

// ClipPolicy decides what happens when a gain change would clip.
type ClipPolicy int

const (
	// ClipPrompt asks before applying a change that may clip.
	ClipPrompt ClipPolicy = iota
	// ClipAuto lowers the change to the largest one that does not clip.
	ClipAuto
	// ClipIgnore applies the change as computed.
	ClipIgnore
)

// TagFormat selects the persisted metadata format.
type TagFormat int

const (
	// TagAPE stores gain information in an APEv2 tag (default).
	TagAPE TagFormat = iota
	// TagID3 stores gain information in ID3v2 TXXX frames.
	TagID3
)

// Config holds all processing options for a batch
type Config struct {
	Mode Mode

	// Direct gain in steps; Channel is 0 (left) or 1 (right) for ModeDirectChannelGain.
	DirectGain int
	Channel    int

	// Adjustments added to the recommended change.
	DBOffset   float64
	StepOffset int

	Clip       ClipPolicy
	Wrap       bool
	TrackOnly  bool
	MaxAmpOnly bool

	// File handling
	UseTemp      bool
	PreserveTime bool
	AssumeLayer3 bool

	// Tags
	TagFormat   TagFormat
	SkipTags    bool
	ForceRecalc bool
	ForceUpdate bool

	// Output
	Quiet          bool
	DatabaseFormat bool

	Decoder string
	WAVDir  string
}

// DefaultConfig returns the options used when no flags are given.
func DefaultConfig() *Config {
	return &Config{
		Mode:      ModeAnalyze,
		Clip:      ClipPrompt,
		TagFormat: TagAPE,
		Decoder:   "minimp3",
	}
}

// Recalc flags mark which stored values have to be recomputed for a file.
type Recalc int

const (
	RecalcFull   Recalc = 1 << iota // loudness analysis (needs decoding)
	RecalcAmp                       // peak amplitude (needs decoding)
	RecalcMinMax                    // min/max global gain (scan only)
)

// NeedsDecode reports whether the flags require decoding audio.
func (r Recalc) NeedsDecode() bool {
	return r&(RecalcFull|RecalcAmp) != 0
}

// TrackTag mirrors the gain information persisted for one file.
// The Have flags tell an absent value from a zero value.
type TrackTag struct {
	TrackGain     float64
	HaveTrackGain bool
	TrackPeak     float64 // linear, 1.0 is full scale
	HaveTrackPeak bool

	MinGain        uint8
	MaxGain        uint8
	HaveMinMaxGain bool

	AlbumGain     float64
	HaveAlbumGain bool
	AlbumPeak     float64
	HaveAlbumPeak bool

	AlbumMinGain        uint8
	AlbumMaxGain        uint8
	HaveAlbumMinMaxGain bool

	UndoLeft  int
	UndoRight int
	UndoWrap  bool
	HaveUndo  bool

	Dirty  bool
	Recalc Recalc
}

// HasGainData reports whether any gain related field is present.
func (t *TrackTag) HasGainData() bool {
	return t.HaveTrackGain || t.HaveTrackPeak || t.HaveAlbumGain || t.HaveAlbumPeak ||
		t.HaveMinMaxGain || t.HaveAlbumMinMaxGain || t.HaveUndo
}

// Merge copies every present field of other into t.
func (t *TrackTag) Merge(other *TrackTag) {
	if other == nil {
		return
	}
	if other.HaveTrackGain {
		t.TrackGain, t.HaveTrackGain = other.TrackGain, true
	}
	if other.HaveTrackPeak {
		t.TrackPeak, t.HaveTrackPeak = other.TrackPeak, true
	}
	if other.HaveMinMaxGain {
		t.MinGain, t.MaxGain, t.HaveMinMaxGain = other.MinGain, other.MaxGain, true
	}
	if other.HaveAlbumGain {
		t.AlbumGain, t.HaveAlbumGain = other.AlbumGain, true
	}
	if other.HaveAlbumPeak {
		t.AlbumPeak, t.HaveAlbumPeak = other.AlbumPeak, true
	}
	if other.HaveAlbumMinMaxGain {
		t.AlbumMinGain, t.AlbumMaxGain, t.HaveAlbumMinMaxGain = other.AlbumMinGain, other.AlbumMaxGain, true
	}
	if other.HaveUndo {
		t.UndoLeft, t.UndoRight, t.UndoWrap, t.HaveUndo = other.UndoLeft, other.UndoRight, other.UndoWrap, true
	}
}

// ClearComputed drops every recomputable field, keeping undo information.
// It returns true when something was dropped.
func (t *TrackTag) ClearComputed() bool {
	had := t.HaveTrackGain || t.HaveTrackPeak || t.HaveAlbumGain || t.HaveAlbumPeak ||
		t.HaveMinMaxGain || t.HaveAlbumMinMaxGain
	t.HaveTrackGain = false
	t.HaveTrackPeak = false
	t.HaveAlbumGain = false
	t.HaveAlbumPeak = false
	t.HaveMinMaxGain = false
	t.HaveAlbumMinMaxGain = false
	return had
}

// GainResponse is returned by the analyze endpoint
type GainResponse struct {
	Success   bool    `json:"success"`
	Message   string  `json:"message"`
	TrackGain float64 `json:"track_gain_db,omitempty"`
	Steps     int     `json:"steps"`
	Peak      float64 `json:"peak,omitempty"`
	MinGain   int     `json:"min_global_gain"`
	MaxGain   int     `json:"max_global_gain"`
	WouldClip bool    `json:"would_clip"`
}

// ApplyRequest holds the form fields of the apply endpoint
type ApplyRequest struct {
	Mode  string `form:"mode"`
	Steps int    `form:"steps"`
	Wrap  bool   `form:"wrap"`
	Clip  string `form:"clip"`
}
