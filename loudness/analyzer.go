// Package loudness estimates perceived loudness of PCM audio and the gain
// that brings it to the 89 dB SPL reference level.
package loudness

import (
	"fmt"
	"math"

	"github.com/go-audio/audio"

	"mp3gain-go/models"
)

const (
	// PinkRef is the result for a signal already at the reference level.
	PinkRef = 64.82

	stepsPerDB    = 100
	maxDB         = 120
	histogramSize = stepsPerDB * maxDB
	rmsPercentile = 0.95
	windowSeconds = 0.05
)

type channelFilter struct {
	x [yuleOrder]float64 // input history, most recent first
	y [yuleOrder]float64 // equal-loudness output history
	z [butterOrder]float64
}

func (f *channelFilter) process(s float64, yule *[2*yuleOrder + 1]float64, butter *[2*butterOrder + 1]float64) float64 {
	y := 1e-10 + yule[0]*s
	for i := 0; i < yuleOrder; i++ {
		y += yule[2*i+2]*f.x[i] - yule[2*i+1]*f.y[i]
	}
	z := butter[0]*y - butter[1]*f.z[0] + butter[2]*f.y[0] - butter[3]*f.z[1] + butter[4]*f.y[1]

	copy(f.x[1:], f.x[:yuleOrder-1])
	f.x[0] = s
	copy(f.y[1:], f.y[:yuleOrder-1])
	f.y[0] = y
	f.z[1] = f.z[0]
	f.z[0] = z
	return z
}

// Analyzer accumulates the loudness of a track and of the album it belongs
// to. Samples are expected in 16-bit scale (±32768).
type Analyzer struct {
	rate   int
	yule   *[2*yuleOrder + 1]float64
	butter *[2*butterOrder + 1]float64

	left, right channelFilter

	window     int // samples per channel in one RMS window
	count      int
	lsum, rsum float64

	track, album [histogramSize]uint32

	scratchL, scratchR []float64
}

// New returns an analyzer for the supported rate nearest to rate.
func New(rate int) *Analyzer {
	a := &Analyzer{}
	a.Reset(rate)
	return a
}

// NearestRate returns the supported sample rate closest to rate.
func NearestRate(rate int) int {
	_, r := nearest(rate)
	return r
}

func nearest(rate int) (int, int) {
	best := 0
	for i, r := range SupportedRates {
		if abs(r-rate) < abs(SupportedRates[best]-rate) {
			best = i
		}
	}
	return best, SupportedRates[best]
}

// Reset selects the filters for rate and clears filter memory and the
// pending window. Both histograms are kept.
func (a *Analyzer) Reset(rate int) {
	idx, r := nearest(rate)
	a.rate = r
	a.yule = &abYule[idx]
	a.butter = &abButter[idx]
	a.left = channelFilter{}
	a.right = channelFilter{}
	a.window = int(math.Ceil(float64(r) * windowSeconds))
	a.count = 0
	a.lsum, a.rsum = 0, 0
}

// Rate returns the sample rate the filters are currently set up for.
func (a *Analyzer) Rate() int { return a.rate }

// Accumulate feeds one block of samples. right may be nil for mono input.
func (a *Analyzer) Accumulate(left, right []float64) error {
	if right != nil && len(right) != len(left) {
		return fmt.Errorf("channel length mismatch: %d left, %d right", len(left), len(right))
	}
	for i, l := range left {
		fl := a.left.process(l, a.yule, a.butter)
		a.lsum += fl * fl
		if right != nil {
			fr := a.right.process(right[i], a.yule, a.butter)
			a.rsum += fr * fr
		} else {
			a.rsum += fl * fl
		}

		a.count++
		if a.count == a.window {
			a.closeWindow()
		}
	}
	return nil
}

// AccumulateBuffer feeds an interleaved PCM block. Only the first two
// channels are used.
func (a *Analyzer) AccumulateBuffer(buf *audio.IntBuffer) error {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return fmt.Errorf("buffer without format")
	}
	nch := buf.Format.NumChannels
	frames := len(buf.Data) / nch
	if cap(a.scratchL) < frames {
		a.scratchL = make([]float64, frames)
		a.scratchR = make([]float64, frames)
	}
	left := a.scratchL[:frames]
	var right []float64
	if nch > 1 {
		right = a.scratchR[:frames]
	}
	for i := 0; i < frames; i++ {
		left[i] = float64(buf.Data[i*nch])
		if right != nil {
			right[i] = float64(buf.Data[i*nch+1])
		}
	}
	return a.Accumulate(left, right)
}

func (a *Analyzer) closeWindow() {
	val := stepsPerDB * 10 * math.Log10((a.lsum+a.rsum)/float64(a.count)*0.5+1e-37)
	ival := 0
	if val > 0 {
		ival = int(val)
	}
	if ival >= histogramSize {
		ival = histogramSize - 1
	}
	a.track[ival]++
	a.count = 0
	a.lsum, a.rsum = 0, 0
}

// TrackResult returns the recommended change in dB for the samples fed since
// the last call, then clears the track histogram and the filter memory. The
// track's windows join the album histogram.
func (a *Analyzer) TrackResult() (float64, error) {
	res, err := result(&a.track)
	for i, c := range a.track {
		a.album[i] += c
	}
	a.DiscardTrack()
	return res, err
}

// DiscardTrack drops the samples fed since the last TrackResult without
// adding them to the album.
func (a *Analyzer) DiscardTrack() {
	a.track = [histogramSize]uint32{}
	a.Reset(a.rate)
}

// AlbumResult returns the recommended change in dB over every track whose
// TrackResult was taken since the last ResetAlbum.
func (a *Analyzer) AlbumResult() (float64, error) {
	return result(&a.album)
}

// ResetAlbum clears the album histogram.
func (a *Analyzer) ResetAlbum() {
	a.album = [histogramSize]uint32{}
}

func result(h *[histogramSize]uint32) (float64, error) {
	var elems uint64
	for _, c := range h {
		elems += uint64(c)
	}
	if elems == 0 {
		return 0, &models.Error{Kind: models.KindNotEnoughSamples, Offset: -1}
	}

	upper := int64(math.Ceil(float64(elems) * (1 - rmsPercentile)))
	i := histogramSize
	for i > 0 {
		i--
		upper -= int64(h[i])
		if upper <= 0 {
			break
		}
	}
	return PinkRef - float64(i)/stepsPerDB, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
