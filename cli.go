package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"mp3gain-go/audio"
	"mp3gain-go/models"
)

const version = "1.0.0"

// errVersion asks main to print the version and stop.
var errVersion = errors.New("version requested")

// cliOptions holds the raw flag values before they become a models.Config.
type cliOptions struct {
	applyTrack   bool
	applyAlbum   bool
	directGain   int
	channelGain  string
	stepOffset   int
	dbOffset     float64
	ignoreClip   bool
	autoClip     bool
	database     bool
	useTemp      bool
	quiet        bool
	preserveTime bool
	maxAmpOnly   bool
	trackOnly    bool
	wrap         bool
	undo         bool
	assumeLayer3 bool
	tagModes     string
	showVersion  bool
	decoder      string
	wavDir       string
	logLevel     string
}

func newFlagSet(o *cliOptions, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("mp3gain", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.BoolVar(&o.applyTrack, "r", false, "apply track gain automatically (all files set to equal loudness)")
	fs.BoolVar(&o.applyAlbum, "a", false, "apply album gain automatically (files are all from the same album)")
	fs.IntVar(&o.directGain, "g", 0, "apply gain `i` to every file without doing any analysis")
	fs.StringVar(&o.channelGain, "l", "", "apply gain to one channel only, as `channel:gain` (0 left, 1 right)")
	fs.IntVar(&o.stepOffset, "m", 0, "modify suggested gain by integer `i` steps")
	fs.Float64Var(&o.dbOffset, "d", 0, "modify suggested dB gain by floating point `n`")
	fs.BoolVar(&o.ignoreClip, "c", false, "ignore clipping warnings when applying gain")
	fs.BoolVar(&o.autoClip, "k", false, "automatically lower track/album gain to not clip audio")
	fs.BoolVar(&o.database, "o", false, "output is a tab delimited list")
	fs.BoolVar(&o.useTemp, "t", false, "write the modified file to a temp file, then replace the original")
	fs.BoolVar(&o.quiet, "q", false, "quiet mode: no status messages")
	fs.BoolVar(&o.preserveTime, "p", false, "preserve original file timestamp")
	fs.BoolVar(&o.maxAmpOnly, "x", false, "only find max amplitude of file")
	fs.BoolVar(&o.trackOnly, "e", false, "skip album analysis, even if multiple files listed")
	fs.BoolVar(&o.wrap, "w", false, "wrap gain change if gain+change > 255 or gain+change < 0")
	fs.BoolVar(&o.undo, "u", false, "undo changes made (based on stored tag info)")
	fs.BoolVar(&o.assumeLayer3, "f", false, "assume input file is an MPEG 2 Layer III file")
	fs.StringVar(&o.tagModes, "s", "", "stored tag handling: c check, d delete, s skip, r recalc, u update, i use ID3v2, a use APEv2")
	fs.BoolVar(&o.showVersion, "v", false, "show version number")
	fs.StringVar(&o.decoder, "decoder", "minimp3", "decoder used for analysis ("+strings.Join(audio.Names(), ", ")+")")
	fs.StringVar(&o.wavDir, "wav", "", "write decoded audio of every analyzed file to `dir`")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return fs
}

// parseArgs turns command line arguments into a configuration and the list
// of files to process.
func parseArgs(args []string, out io.Writer) (*models.Config, []string, logrus.Level, error) {
	var o cliOptions
	fs := newFlagSet(&o, out)
	if err := fs.Parse(args); err != nil {
		return nil, nil, 0, err
	}
	if o.showVersion {
		return nil, nil, 0, errVersion
	}

	level, err := logrus.ParseLevel(o.logLevel)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("invalid log level: %w", err)
	}
	if o.quiet && level > logrus.WarnLevel {
		level = logrus.WarnLevel
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg := models.DefaultConfig()
	cfg.DBOffset = o.dbOffset
	cfg.StepOffset = o.stepOffset
	cfg.Wrap = o.wrap
	cfg.TrackOnly = o.trackOnly
	cfg.MaxAmpOnly = o.maxAmpOnly
	cfg.UseTemp = o.useTemp
	cfg.PreserveTime = o.preserveTime
	cfg.AssumeLayer3 = o.assumeLayer3
	cfg.Quiet = o.quiet
	cfg.DatabaseFormat = o.database
	cfg.Decoder = o.decoder
	cfg.WAVDir = o.wavDir

	switch {
	case o.ignoreClip:
		cfg.Clip = models.ClipIgnore
	case o.autoClip:
		cfg.Clip = models.ClipAuto
	}

	modes := 0
	pick := func(m models.Mode) {
		cfg.Mode = m
		modes++
	}
	if o.applyTrack {
		pick(models.ModeApplyTrack)
	}
	if o.applyAlbum {
		pick(models.ModeApplyAlbum)
	}
	if set["g"] {
		pick(models.ModeDirectGain)
		cfg.DirectGain = o.directGain
	}
	if set["l"] {
		ch, g, err := parseChannelGain(o.channelGain)
		if err != nil {
			return nil, nil, 0, err
		}
		pick(models.ModeDirectChannelGain)
		cfg.Channel, cfg.DirectGain = ch, g
	}
	if o.undo {
		pick(models.ModeUndo)
	}

	for _, m := range o.tagModes {
		switch m {
		case 'c':
			pick(models.ModeCheckTags)
		case 'd':
			pick(models.ModeDeleteTags)
		case 's':
			cfg.SkipTags = true
		case 'r':
			cfg.ForceRecalc = true
		case 'u':
			cfg.ForceUpdate = true
		case 'i':
			cfg.TagFormat = models.TagID3
		case 'a':
			cfg.TagFormat = models.TagAPE
		default:
			return nil, nil, 0, fmt.Errorf("unknown stored tag mode %q", m)
		}
	}
	if modes > 1 {
		return nil, nil, 0, fmt.Errorf("only one of -r, -a, -g, -l, -u, -s c and -s d may be given")
	}
	if cfg.Mode == models.ModeUndo && cfg.SkipTags {
		return nil, nil, 0, fmt.Errorf("undo needs the stored tag information, it cannot be combined with -s s")
	}
	if _, err := audio.NewDecoder(cfg.Decoder); err != nil {
		return nil, nil, 0, err
	}

	files := fs.Args()
	if len(files) == 0 {
		return nil, nil, 0, fmt.Errorf("no files given")
	}
	return cfg, files, level, nil
}

// parseChannelGain reads the "channel:gain" argument of -l.
func parseChannelGain(v string) (int, int, error) {
	ch, g, ok := strings.Cut(v, ":")
	if !ok {
		return 0, 0, fmt.Errorf("-l expects channel:gain, got %q", v)
	}
	channel, err := strconv.Atoi(strings.TrimSpace(ch))
	if err != nil || (channel != 0 && channel != 1) {
		return 0, 0, fmt.Errorf("-l channel must be 0 (left) or 1 (right), got %q", ch)
	}
	steps, err := strconv.Atoi(strings.TrimSpace(g))
	if err != nil {
		return 0, 0, fmt.Errorf("-l gain must be an integer: %w", err)
	}
	return channel, steps, nil
}
