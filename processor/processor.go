// Package processor runs a batch of files through analysis, gain decisions,
// bitstream changes and tag bookkeeping.
package processor

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"mp3gain-go/audio"
	"mp3gain-go/filetx"
	"mp3gain-go/gain"
	"mp3gain-go/loudness"
	"mp3gain-go/models"
	"mp3gain-go/mp3parser"
	"mp3gain-go/tags"
)

// progressFrames is the number of frames between progress reports.
const progressFrames = 200

// ProgressFunc receives the bytes handled so far for a file and its size.
type ProgressFunc func(path string, done, total int64)

// FileResult is the outcome for one file of the batch.
type FileResult struct {
	Path string
	Tag  *models.TrackTag

	// Steps recommended for the track, after offsets.
	Steps     int
	WouldClip bool
	// Applied holds the left/right change committed to the file.
	Applied [2]int

	Err error
}

// Result is the outcome of a batch.
type Result struct {
	Files []*FileResult

	HaveAlbum  bool
	AlbumDB    float64
	AlbumPeak  float64
	AlbumSteps int
	AlbumClip  bool
}

// Failed returns the number of files that ended with an error.
func (r *Result) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Processor carries the collaborators of a batch run.
type Processor struct {
	cfg      *models.Config
	store    tags.Store
	decoder  audio.Decoder
	analyzer *loudness.Analyzer
	report   *reporter
	confirm  gain.Confirmer
	progress ProgressFunc
	wav      *audio.WAVWriter
}

// Option customizes a Processor.
type Option func(*Processor)

// WithStore replaces the tag store chosen from the configuration.
func WithStore(s tags.Store) Option {
	return func(p *Processor) { p.store = s }
}

// WithDecoder replaces the decoder chosen from the configuration.
func WithDecoder(d audio.Decoder) Option {
	return func(p *Processor) { p.decoder = d }
}

// WithConfirmer sets who is asked about clipping changes under ClipPrompt.
func WithConfirmer(c gain.Confirmer) Option {
	return func(p *Processor) { p.confirm = c }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Processor) { p.progress = fn }
}

// New creates a processor writing its report to out.
func New(cfg *models.Config, out io.Writer, opts ...Option) (*Processor, error) {
	p := &Processor{
		cfg:      cfg,
		analyzer: loudness.New(44100),
		report:   newReporter(out, cfg),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.store == nil {
		p.store = tags.NewStore(cfg.TagFormat, cfg.PreserveTime)
	}
	if p.decoder == nil {
		d, err := audio.NewDecoder(cfg.Decoder)
		if err != nil {
			return nil, err
		}
		p.decoder = d
	}
	if cfg.WAVDir != "" {
		p.wav = audio.NewWAVWriter(cfg.WAVDir)
	}
	return p, nil
}

// Run processes paths according to the configured mode. Failures are
// recorded per file and never stop the batch.
func (p *Processor) Run(paths []string) *Result {
	res := &Result{Files: make([]*FileResult, len(paths))}
	for i, path := range paths {
		res.Files[i] = &FileResult{Path: path}
	}

	switch p.cfg.Mode {
	case models.ModeCheckTags:
		p.checkTags(res)
	case models.ModeDeleteTags:
		p.each(res, p.deleteTags)
	case models.ModeUndo:
		p.each(res, p.undo)
	case models.ModeDirectGain, models.ModeDirectChannelGain:
		p.each(res, p.directGain)
	default:
		p.analyzeAndApply(res)
	}

	for _, f := range res.Files {
		if f.Err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Run",
				"file":     f.Path,
				"kind":     models.KindOf(f.Err).String(),
			}).Error(f.Err)
		}
	}
	return res
}

func (p *Processor) each(res *Result, fn func(*FileResult) error) {
	for _, f := range res.Files {
		f.Err = fn(f)
	}
}

func (p *Processor) readTag(path string) (*models.TrackTag, error) {
	if p.cfg.SkipTags {
		return &models.TrackTag{}, nil
	}
	return p.store.Read(path)
}

func (p *Processor) writeTag(f *FileResult) error {
	if p.cfg.SkipTags || f.Tag == nil {
		return nil
	}
	if !f.Tag.Dirty && !p.cfg.ForceUpdate {
		return nil
	}
	if err := p.store.Write(f.Path, f.Tag); err != nil {
		return models.Attribute(err, f.Path, models.KindTag)
	}
	f.Tag.Dirty = false
	return nil
}

func (p *Processor) filetxOptions(path string, wrap bool) filetx.Options {
	opts := filetx.Options{
		PreserveTime: p.cfg.PreserveTime,
		AssumeLayer3: p.cfg.AssumeLayer3,
		Policy:       mp3parser.Clamp,
	}
	if p.cfg.UseTemp {
		opts.Strategy = filetx.CopySwap
	}
	if wrap {
		opts.Policy = mp3parser.Wrap
	}
	if p.progress != nil {
		opts.Progress = func(done, total int64) { p.progress(path, done, total) }
	}
	return opts
}

// change commits left/right steps to f and books them in its tag.
func (p *Processor) change(f *FileResult, left, right int, wrap bool) error {
	if left == 0 && right == 0 {
		p.report.noChange(f.Path, p.cfg.Quiet)
		return nil
	}
	p.report.applying(f.Path, left, right, p.cfg.Quiet)
	if _, err := filetx.ChangeGain(f.Path, left, right, p.filetxOptions(f.Path, wrap)); err != nil {
		return err
	}
	f.Applied[0] += left
	f.Applied[1] += right
	if f.Tag != nil {
		gain.RecordChange(f.Tag, left, right, wrap)
	}
	return nil
}

func (p *Processor) directGain(f *FileResult) error {
	tag, err := p.readTag(f.Path)
	if err != nil {
		return err
	}
	f.Tag = tag

	left, right := p.cfg.DirectGain, p.cfg.DirectGain
	if p.cfg.Mode == models.ModeDirectChannelGain {
		if p.cfg.Channel == 0 {
			right = 0
		} else {
			left = 0
		}
	}
	if err := p.change(f, left, right, p.cfg.Wrap); err != nil {
		return err
	}
	return p.writeTag(f)
}

func (p *Processor) undo(f *FileResult) error {
	tag, err := p.readTag(f.Path)
	if err != nil {
		return err
	}
	f.Tag = tag
	if !tag.HaveUndo {
		return models.NewError(models.KindNoUndo, f.Path, nil)
	}
	if err := p.change(f, tag.UndoLeft, tag.UndoRight, tag.UndoWrap); err != nil {
		return err
	}
	return p.writeTag(f)
}

func (p *Processor) deleteTags(f *FileResult) error {
	if err := p.store.Remove(f.Path); err != nil {
		return models.Attribute(err, f.Path, models.KindTag)
	}
	if !p.cfg.Quiet {
		p.report.deleted(f.Path)
	}
	return nil
}

func (p *Processor) checkTags(res *Result) {
	p.report.header()
	var stored []*FileResult
	for _, f := range res.Files {
		tag, err := p.store.Read(f.Path)
		if err != nil {
			f.Err = err
			continue
		}
		f.Tag = tag
		p.report.stored(f.Path, tag, p.cfg)
		stored = append(stored, f)
	}
	if len(stored) == 0 {
		return
	}
	for _, f := range stored {
		if !f.Tag.HaveAlbumGain || f.Tag.AlbumGain != stored[0].Tag.AlbumGain {
			return
		}
	}
	first := stored[0].Tag
	res.HaveAlbum = true
	res.AlbumDB = first.AlbumGain
	res.AlbumPeak = first.AlbumPeak
	res.AlbumSteps = gain.Recommend(first.AlbumGain, p.cfg.DBOffset, p.cfg.StepOffset)
	p.report.album(res, first.AlbumMinGain, first.AlbumMaxGain, first.HaveAlbumMinMaxGain)
}

// albumWanted reports whether the batch computes album values.
func (p *Processor) albumWanted() bool {
	if p.cfg.TrackOnly {
		return false
	}
	return p.cfg.Mode == models.ModeAnalyze || p.cfg.Mode == models.ModeApplyAlbum
}

// recalcFlags decides which values of tag have to be measured again.
func (p *Processor) recalcFlags(tag *models.TrackTag) models.Recalc {
	var r models.Recalc
	if !p.cfg.MaxAmpOnly && !tag.HaveTrackGain {
		r |= models.RecalcFull
	}
	if !tag.HaveTrackPeak {
		r |= models.RecalcAmp
	}
	if !tag.HaveMinMaxGain {
		r |= models.RecalcMinMax
	}
	return r
}

// albumStale reports whether stored album values are missing or disagree.
func albumStale(files []*FileResult) bool {
	var ref *models.TrackTag
	for _, f := range files {
		if f.Tag == nil {
			continue
		}
		if !f.Tag.HaveAlbumGain || !f.Tag.HaveAlbumPeak {
			return true
		}
		if ref == nil {
			ref = f.Tag
		} else if ref.AlbumGain != f.Tag.AlbumGain {
			return true
		}
	}
	return false
}

func (p *Processor) analyzeAndApply(res *Result) {
	wantAlbum := p.albumWanted()

	for _, f := range res.Files {
		tag, err := p.readTag(f.Path)
		if err != nil {
			f.Err = err
			continue
		}
		if p.cfg.ForceRecalc && tag.ClearComputed() {
			tag.Dirty = true
		}
		f.Tag = tag
	}

	albumRecalc := wantAlbum && !p.cfg.MaxAmpOnly && albumStale(res.Files)
	if albumRecalc {
		p.analyzer.ResetAlbum()
	}

	p.report.header()
	var tracks []gain.Measurement
	var analyzed []*FileResult
	for _, f := range res.Files {
		if f.Err != nil {
			continue
		}
		m, err := p.measure(f, albumRecalc)
		if err != nil {
			f.Err = err
			continue
		}
		tracks = append(tracks, m)
		analyzed = append(analyzed, f)

		if p.cfg.MaxAmpOnly {
			p.report.maxAmplitude(f.Path, f.Tag)
		} else {
			f.Steps = gain.Recommend(f.Tag.TrackGain, p.cfg.DBOffset, p.cfg.StepOffset)
			f.WouldClip = gain.WouldClip(f.Tag.TrackPeak, f.Steps)
			p.report.track(f.Path, f.Tag, f.Steps, f.WouldClip, p.cfg)
		}

		if p.cfg.Mode == models.ModeApplyTrack && !p.cfg.MaxAmpOnly {
			d := gain.Decide(f.Path, f.Steps, f.Tag.TrackPeak, p.cfg.Clip, p.confirm)
			if err := p.change(f, d.Steps, d.Steps, p.cfg.Wrap); err != nil {
				f.Err = err
				continue
			}
		}
		if !wantAlbum {
			if err := p.writeTag(f); err != nil {
				f.Err = err
			}
		}
	}

	if !wantAlbum || len(analyzed) == 0 {
		return
	}
	p.albumPhase(res, analyzed, tracks, albumRecalc)
}

// measure brings the stored values of f up to date, decoding only when a
// loudness or peak value is missing.
func (p *Processor) measure(f *FileResult, albumRecalc bool) (gain.Measurement, error) {
	tag := f.Tag
	tag.Recalc = p.recalcFlags(tag)
	if albumRecalc {
		tag.Recalc |= models.RecalcFull
	}

	log := logrus.WithFields(logrus.Fields{
		"function": "measure",
		"file":     f.Path,
		"recalc":   int(tag.Recalc),
	})

	var m measurement
	var err error
	switch {
	case tag.Recalc.NeedsDecode():
		log.Debug("Full decode")
		m, err = p.decodeAndAnalyze(f.Path, tag.Recalc&models.RecalcFull != 0)
	case tag.Recalc&models.RecalcMinMax != 0:
		log.Debug("Gain field scan")
		m, err = p.scanGains(f.Path)
	default:
		log.Debug("Using stored values")
	}
	if err != nil {
		return gain.Measurement{}, err
	}

	gain.UpdateTrack(tag, m.Measurement)
	tag.Recalc = 0
	return gain.Measurement{
		DB: tag.TrackGain, HaveDB: tag.HaveTrackGain,
		Peak: tag.TrackPeak, HavePeak: tag.HaveTrackPeak,
		MinGain: tag.MinGain, MaxGain: tag.MaxGain, HaveMinMax: tag.HaveMinMaxGain,
	}, nil
}

func (p *Processor) albumPhase(res *Result, files []*FileResult, tracks []gain.Measurement, recalc bool) {
	album := gain.Album(tracks)
	switch {
	case p.cfg.MaxAmpOnly:
	case recalc:
		db, err := p.analyzer.AlbumResult()
		if err != nil {
			for _, f := range files {
				f.Err = models.Attribute(err, f.Path, models.KindNotEnoughSamples)
			}
			return
		}
		album.DB, album.HaveDB = db, true
	default:
		album.DB, album.HaveDB = files[0].Tag.AlbumGain, true
	}

	for _, f := range files {
		gain.UpdateAlbum(f.Tag, album)
	}

	res.HaveAlbum = album.HaveDB
	res.AlbumDB = album.DB
	res.AlbumPeak = album.Peak
	if album.HaveDB {
		res.AlbumSteps = gain.Recommend(album.DB, p.cfg.DBOffset, p.cfg.StepOffset)
		res.AlbumClip = gain.WouldClip(album.Peak, res.AlbumSteps)
		p.report.album(res, album.MinGain, album.MaxGain, album.HaveMinMax)
	}

	if p.cfg.Mode == models.ModeApplyAlbum && album.HaveDB {
		d := gain.Decide(fmt.Sprintf("album of %d files", len(files)), res.AlbumSteps, album.Peak, p.cfg.Clip, p.confirm)
		for _, f := range files {
			if f.Err != nil {
				continue
			}
			if err := p.change(f, d.Steps, d.Steps, p.cfg.Wrap); err != nil {
				f.Err = err
			}
		}
	}

	for _, f := range files {
		if f.Err != nil {
			continue
		}
		if err := p.writeTag(f); err != nil {
			f.Err = err
		}
	}
}

func (p *Processor) reportProgress(path string, done, total int64) {
	if p.progress != nil {
		p.progress(path, done, total)
	}
}
