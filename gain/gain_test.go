package gain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"mp3gain-go/models"
)

func TestStepsFromDB(t *testing.T) {
	tests := []struct {
		db   float64
		want int
	}{
		{0, 0},
		{1.505, 1},
		{-1.505, -1},
		{3.0, 2},
		{-3.0, -2},
		{0.75, 0}, // 0.498 steps
		{-0.75, 0},
		{DBPerStep / 2, 1},
		{-DBPerStep / 2, -1},
		{10 * DBPerStep, 10},
		{7.9, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StepsFromDB(tt.db), "dB %v", tt.db)
	}
}

func TestRecommend(t *testing.T) {
	assert.Equal(t, 2, Recommend(3.0, 0, 0))
	assert.Equal(t, 3, Recommend(3.0, 1.505, 0))
	assert.Equal(t, 0, Recommend(3.0, 0, -2))
}

func TestMaxNoClipSteps(t *testing.T) {
	assert.Equal(t, 0, MaxNoClipSteps(1.0))
	assert.Equal(t, 4, MaxNoClipSteps(0.5))
	assert.Equal(t, 2, MaxNoClipSteps(0.6))
	assert.Equal(t, -1, MaxNoClipSteps(1.1))
	assert.Equal(t, 255, MaxNoClipSteps(0))

	for _, peak := range []float64{0.1, 0.37, 0.8, 0.99} {
		n := MaxNoClipSteps(peak)
		assert.False(t, WouldClip(peak, n), "peak %v", peak)
		assert.True(t, WouldClip(peak, n+1), "peak %v", peak)
	}
}

func TestDecide(t *testing.T) {
	always := ConfirmFunc(func(string, int, float64) bool { return true })
	never := ConfirmFunc(func(string, int, float64) bool { return false })

	tests := []struct {
		name    string
		steps   int
		peak    float64
		policy  models.ClipPolicy
		confirm Confirmer
		want    Decision
	}{
		{"no clip", 2, 0.5, models.ClipPrompt, never, Decision{Steps: 2, Proposed: 2}},
		{"auto caps", 6, 0.5, models.ClipAuto, nil, Decision{Steps: 4, Proposed: 6, WouldClip: true, Capped: true}},
		{"prompt accepted", 6, 0.5, models.ClipPrompt, always, Decision{Steps: 6, Proposed: 6, WouldClip: true}},
		{"prompt declined", 6, 0.5, models.ClipPrompt, never, Decision{Steps: 0, Proposed: 6, WouldClip: true, Declined: true}},
		{"prompt without confirmer", 6, 0.5, models.ClipPrompt, nil, Decision{Steps: 0, Proposed: 6, WouldClip: true, Declined: true}},
		{"ignore", 6, 0.5, models.ClipIgnore, nil, Decision{Steps: 6, Proposed: 6, WouldClip: true}},
		{"auto already clipping source", 2, 1.2, models.ClipAuto, nil, Decision{Steps: -2, Proposed: 2, WouldClip: true, Capped: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide("a.mp3", tt.steps, tt.peak, tt.policy, tt.confirm))
		})
	}
}

func TestAlbum(t *testing.T) {
	tracks := []Measurement{
		{Peak: 0.5, HavePeak: true, MinGain: 120, MaxGain: 180, HaveMinMax: true},
		{Peak: 0.8, HavePeak: true, MinGain: 100, MaxGain: 170, HaveMinMax: true},
		{Peak: 0.3, HavePeak: true, MinGain: 130, MaxGain: 200, HaveMinMax: true},
	}
	a := Album(tracks)
	assert.Equal(t, 0.8, a.Peak)
	assert.True(t, a.HavePeak)
	assert.Equal(t, uint8(100), a.MinGain)
	assert.Equal(t, uint8(200), a.MaxGain)
	assert.True(t, a.HaveMinMax)

	assert.False(t, Album(nil).HavePeak)
}

func TestUpdateTrackTolerances(t *testing.T) {
	tag := &models.TrackTag{}
	UpdateTrack(tag, Measurement{DB: 2.5, HaveDB: true, Peak: 0.7, HavePeak: true, MinGain: 90, MaxGain: 190, HaveMinMax: true})
	assert.True(t, tag.Dirty)
	assert.True(t, tag.HaveTrackGain)
	assert.Equal(t, uint8(190), tag.MaxGain)

	tag.Dirty = false
	UpdateTrack(tag, Measurement{DB: 2.505, HaveDB: true, Peak: 0.7 + 1.0/32768, HavePeak: true})
	assert.False(t, tag.Dirty)
	assert.Equal(t, 2.5, tag.TrackGain)

	UpdateTrack(tag, Measurement{DB: 2.52, HaveDB: true})
	assert.True(t, tag.Dirty)
	assert.Equal(t, 2.52, tag.TrackGain)

	tag.Dirty = false
	UpdateAlbum(tag, Measurement{Peak: 0.9, HavePeak: true})
	assert.True(t, tag.Dirty)
	tag.Dirty = false
	UpdateAlbum(tag, Measurement{Peak: 0.90005, HavePeak: true})
	assert.False(t, tag.Dirty)
}

func TestRecordChange(t *testing.T) {
	tag := &models.TrackTag{
		TrackGain: 6.0, HaveTrackGain: true,
		TrackPeak: 0.25, HaveTrackPeak: true,
		AlbumGain: 3.0, HaveAlbumGain: true,
		MinGain: 0, MaxGain: 200, HaveMinMaxGain: true,
		AlbumMinGain: 50, AlbumMaxGain: 250, HaveAlbumMinMaxGain: true,
	}
	RecordChange(tag, 4, 4, false)

	assert.True(t, tag.HaveUndo)
	assert.Equal(t, -4, tag.UndoLeft)
	assert.Equal(t, -4, tag.UndoRight)
	assert.True(t, tag.Dirty)
	assert.InDelta(t, 6.0-4*DBPerStep, tag.TrackGain, 1e-9)
	assert.InDelta(t, 3.0-4*DBPerStep, tag.AlbumGain, 1e-9)
	assert.InDelta(t, 0.5, tag.TrackPeak, 1e-9)
	assert.Equal(t, uint8(0), tag.MinGain)
	assert.Equal(t, uint8(204), tag.MaxGain)
	assert.Equal(t, uint8(54), tag.AlbumMinGain)
	assert.Equal(t, uint8(254), tag.AlbumMaxGain)

	// undo composes
	RecordChange(tag, -1, -1, false)
	assert.Equal(t, -3, tag.UndoLeft)
	assert.Equal(t, -3, tag.UndoRight)
}

func TestRecordChangeAsymmetric(t *testing.T) {
	tag := &models.TrackTag{
		TrackGain: 6.0, HaveTrackGain: true,
		TrackPeak: 0.25, HaveTrackPeak: true,
		MinGain: 100, MaxGain: 200, HaveMinMaxGain: true,
	}
	RecordChange(tag, 3, 0, false)
	assert.Equal(t, 6.0, tag.TrackGain)
	assert.Equal(t, 0.25, tag.TrackPeak)
	assert.Equal(t, -3, tag.UndoLeft)
	assert.Equal(t, 0, tag.UndoRight)
	assert.Equal(t, uint8(100), tag.MinGain)
	assert.Equal(t, uint8(203), tag.MaxGain)
}

func TestRecordChangeWrapDropsMinMax(t *testing.T) {
	tag := &models.TrackTag{MinGain: 10, MaxGain: 250, HaveMinMaxGain: true}
	RecordChange(tag, 10, 10, true)
	assert.False(t, tag.HaveMinMaxGain)
	assert.True(t, tag.UndoWrap)

	tag = &models.TrackTag{MinGain: 10, MaxGain: 240, HaveMinMaxGain: true}
	RecordChange(tag, 10, 10, true)
	assert.True(t, tag.HaveMinMaxGain)
	assert.Equal(t, uint8(20), tag.MinGain)
	assert.Equal(t, uint8(250), tag.MaxGain)
}

func TestPeakAfter(t *testing.T) {
	assert.InDelta(t, 0.5*math.Sqrt2, PeakAfter(0.5, 2), 1e-12)
}
