package audio

import (
	"math"

	"github.com/go-audio/audio"
)

// FullScale is the magnitude of a full scale 16-bit sample.
const FullScale = 32768.0

// PeakMeter tracks the largest sample magnitude seen.
type PeakMeter struct {
	max int
}

// Add scans the samples of buf.
func (p *PeakMeter) Add(buf *audio.IntBuffer) {
	for _, s := range buf.Data {
		if s < 0 {
			s = -s
		}
		if s > p.max {
			p.max = s
		}
	}
}

// Peak returns the largest magnitude relative to full scale.
func (p *PeakMeter) Peak() float64 {
	return float64(p.max) / FullScale
}

// Reset forgets every sample seen.
func (p *PeakMeter) Reset() { p.max = 0 }

// PeakDB converts a linear peak to dB relative to full scale.
func PeakDB(peak float64) float64 {
	if peak <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(peak)
}
