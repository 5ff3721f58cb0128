// Package gain turns loudness measurements into global_gain step changes and
// keeps the stored gain information in step with the changes applied.
package gain

import (
	"math"

	"github.com/sirupsen/logrus"

	"mp3gain-go/models"
)

// DBPerStep is the loudness change of one global_gain step, 20*log10(2^0.25).
const DBPerStep = 1.50514997831990597606

// maxSteps bounds any change; the gain field is 8 bits wide.
const maxSteps = 255

// StepsFromDB converts a change in dB to whole steps. A fractional part of
// |steps| below one half is truncated, anything else rounds away from zero.
func StepsFromDB(db float64) int {
	steps := db / DBPerStep
	whole, frac := math.Modf(math.Abs(steps))
	n := int(whole)
	if frac >= 0.5 {
		n++
	}
	if steps < 0 {
		return -n
	}
	return n
}

// Recommend converts a measured change plus the user offsets into steps.
func Recommend(db, dbOffset float64, stepOffset int) int {
	return StepsFromDB(db+dbOffset) + stepOffset
}

// MaxNoClipSteps is the largest change that keeps peak within full scale.
func MaxNoClipSteps(peak float64) int {
	if peak <= 0 {
		return maxSteps
	}
	steps := int(math.Floor(4 * math.Log10(1/peak) / math.Log10(2)))
	if steps > maxSteps {
		return maxSteps
	}
	return steps
}

// WouldClip reports whether applying steps to a signal with the given peak
// exceeds full scale.
func WouldClip(peak float64, steps int) bool {
	return peak*math.Pow(2, float64(steps)/4) > 1.0
}

// PeakAfter scales a peak by a change of steps.
func PeakAfter(peak float64, steps int) float64 {
	return peak * math.Pow(2, float64(steps)/4)
}

// Confirmer asks whether a change that clips should still be applied.
type Confirmer interface {
	ConfirmClip(file string, steps int, peak float64) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(file string, steps int, peak float64) bool

func (f ConfirmFunc) ConfirmClip(file string, steps int, peak float64) bool {
	return f(file, steps, peak)
}

// Decision is the outcome of applying a clip policy to a proposed change.
type Decision struct {
	Steps     int
	Proposed  int
	WouldClip bool
	Capped    bool // lowered by ClipAuto
	Declined  bool // refused at the prompt
}

// Decide applies the clip policy to a proposed change. A nil confirm under
// ClipPrompt declines every clipping change.
func Decide(file string, steps int, peak float64, policy models.ClipPolicy, confirm Confirmer) Decision {
	d := Decision{Steps: steps, Proposed: steps, WouldClip: WouldClip(peak, steps)}
	if !d.WouldClip {
		return d
	}

	log := logrus.WithFields(logrus.Fields{
		"function": "Decide",
		"file":     file,
		"steps":    steps,
		"peak":     peak,
	})

	switch policy {
	case models.ClipAuto:
		if limit := MaxNoClipSteps(peak); steps > limit {
			d.Steps = limit
			d.Capped = true
			log.WithField("capped_to", limit).Info("Lowering gain change to avoid clipping")
		}
	case models.ClipPrompt:
		if confirm == nil || !confirm.ConfirmClip(file, steps, peak) {
			d.Steps = 0
			d.Declined = true
			log.Info("Clipping change declined")
		}
	default:
		log.Warn("Applying gain change that will clip")
	}
	return d
}
