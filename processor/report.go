package processor

import (
	"fmt"
	"io"

	"mp3gain-go/audio"
	"mp3gain-go/gain"
	"mp3gain-go/models"
)

// reporter prints results either as readable text or as one tab separated
// row per file.
type reporter struct {
	w        io.Writer
	tabbed   bool
	maxAmp   bool
	headered bool
	dbOffset float64
}

func newReporter(w io.Writer, cfg *models.Config) *reporter {
	if w == nil {
		w = io.Discard
	}
	return &reporter{w: w, tabbed: cfg.DatabaseFormat, maxAmp: cfg.MaxAmpOnly, dbOffset: cfg.DBOffset}
}

func (r *reporter) header() {
	if !r.tabbed || r.headered {
		return
	}
	r.headered = true
	if r.maxAmp {
		fmt.Fprintln(r.w, "File\tMax Amplitude\tMax global_gain\tMin global_gain")
		return
	}
	fmt.Fprintln(r.w, "File\tMP3 gain\tdB gain\tMax Amplitude\tMax global_gain\tMin global_gain")
}

func (r *reporter) track(path string, tag *models.TrackTag, steps int, clip bool, cfg *models.Config) {
	db := tag.TrackGain + cfg.DBOffset
	amp := tag.TrackPeak * audio.FullScale
	if r.tabbed {
		fmt.Fprintf(r.w, "%s\t%d\t%f\t%f\t%d\t%d\n", path, steps, db, amp, tag.MaxGain, tag.MinGain)
		return
	}
	fmt.Fprintln(r.w, path)
	fmt.Fprintf(r.w, "Recommended \"Track\" dB change: %f\n", db)
	fmt.Fprintf(r.w, "Recommended \"Track\" mp3 gain change: %d\n", steps)
	if clip {
		fmt.Fprintln(r.w, "WARNING: some clipping may occur with this gain change!")
	}
	fmt.Fprintf(r.w, "Max PCM sample at current gain: %f\n", amp)
	if tag.HaveMinMaxGain {
		fmt.Fprintf(r.w, "Max mp3 global gain field: %d\n", tag.MaxGain)
		fmt.Fprintf(r.w, "Min mp3 global gain field: %d\n", tag.MinGain)
	}
	fmt.Fprintln(r.w)
}

func (r *reporter) maxAmplitude(path string, tag *models.TrackTag) {
	amp := tag.TrackPeak * audio.FullScale
	if r.tabbed {
		fmt.Fprintf(r.w, "%s\t%f\t%d\t%d\n", path, amp, tag.MaxGain, tag.MinGain)
		return
	}
	fmt.Fprintln(r.w, path)
	fmt.Fprintf(r.w, "Max Amplitude: %f (%.2f dBFS)\n", amp, audio.PeakDB(tag.TrackPeak))
	fmt.Fprintf(r.w, "Max global_gain: %d\n", tag.MaxGain)
	fmt.Fprintf(r.w, "Min global_gain: %d\n\n", tag.MinGain)
}

func (r *reporter) album(res *Result, minGain, maxGain uint8, haveMinMax bool) {
	db := res.AlbumDB + r.dbOffset
	amp := res.AlbumPeak * audio.FullScale
	if r.tabbed {
		fmt.Fprintf(r.w, "\"Album\"\t%d\t%f\t%f\t%d\t%d\n", res.AlbumSteps, db, amp, maxGain, minGain)
		return
	}
	fmt.Fprintf(r.w, "Recommended \"Album\" dB change for all files: %f\n", db)
	fmt.Fprintf(r.w, "Recommended \"Album\" mp3 gain change for all files: %d\n", res.AlbumSteps)
	if res.AlbumClip {
		fmt.Fprintln(r.w, "WARNING: with this global gain change, some clipping may occur in at least one of the files!")
	}
	if haveMinMax {
		fmt.Fprintf(r.w, "Max mp3 global gain field (album): %d\n", maxGain)
		fmt.Fprintf(r.w, "Min mp3 global gain field (album): %d\n", minGain)
	}
	fmt.Fprintln(r.w)
}

// stored prints the values kept in a file's tag.
func (r *reporter) stored(path string, tag *models.TrackTag, cfg *models.Config) {
	steps := 0
	if tag.HaveTrackGain {
		steps = gain.Recommend(tag.TrackGain, cfg.DBOffset, cfg.StepOffset)
	}
	if r.tabbed {
		fmt.Fprintf(r.w, "%s\t%d\t%f\t%f\t%d\t%d\n", path, steps, tag.TrackGain+cfg.DBOffset,
			tag.TrackPeak*audio.FullScale, tag.MaxGain, tag.MinGain)
		return
	}
	fmt.Fprintln(r.w, path)
	if !tag.HasGainData() {
		fmt.Fprintln(r.w, "No gain information stored")
		fmt.Fprintln(r.w)
		return
	}
	if tag.HaveTrackGain {
		fmt.Fprintf(r.w, "Recommended \"Track\" dB change: %f\n", tag.TrackGain+cfg.DBOffset)
		fmt.Fprintf(r.w, "Recommended \"Track\" mp3 gain change: %d\n", steps)
	}
	if tag.HaveTrackPeak {
		fmt.Fprintf(r.w, "Max PCM sample at current gain: %f\n", tag.TrackPeak*audio.FullScale)
	}
	if tag.HaveMinMaxGain {
		fmt.Fprintf(r.w, "Max mp3 global gain field: %d\n", tag.MaxGain)
		fmt.Fprintf(r.w, "Min mp3 global gain field: %d\n", tag.MinGain)
	}
	if tag.HaveUndo {
		fmt.Fprintf(r.w, "Undo: left %+d, right %+d, wrap %t\n", tag.UndoLeft, tag.UndoRight, tag.UndoWrap)
	}
	fmt.Fprintln(r.w)
}

func (r *reporter) applying(path string, left, right int, quiet bool) {
	if quiet || r.tabbed {
		return
	}
	if left == right {
		fmt.Fprintf(r.w, "Applying mp3 gain change of %d to %s...\n", left, path)
		return
	}
	fmt.Fprintf(r.w, "Applying mp3 gain change of %d (left) and %d (right) to %s...\n", left, right, path)
}

func (r *reporter) noChange(path string, quiet bool) {
	if quiet || r.tabbed {
		return
	}
	fmt.Fprintf(r.w, "No changes to %s are necessary\n", path)
}

func (r *reporter) deleted(path string) {
	if r.tabbed {
		return
	}
	fmt.Fprintf(r.w, "Deleting gain information from %s\n", path)
}
