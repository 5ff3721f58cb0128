package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"mp3gain-go/audio"
	"mp3gain-go/gain"
	"mp3gain-go/handlers"
	"mp3gain-go/processor"
)

func main() {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(os.Args) > 1 && os.Args[1] == "serve" {
		os.Exit(serve(os.Args[2:]))
	}
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run processes the files named on the command line and returns the exit
// status: 1 when any file failed.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, files, level, err := parseArgs(args, stderr)
	switch {
	case errors.Is(err, errVersion):
		fmt.Fprintf(stdout, "mp3gain version %s\n", version)
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case err != nil:
		fmt.Fprintf(stderr, "mp3gain: %v\n", err)
		return 1
	}
	logrus.SetLevel(level)

	var bars *progressBars
	opts := []processor.Option{
		processor.WithConfirmer(promptConfirmer(stdin, stderr)),
	}
	if !cfg.Quiet {
		bars = newProgressBars(stderr)
		opts = append(opts, processor.WithProgress(bars.update))
	}

	p, err := processor.New(cfg, stdout, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "mp3gain: %v\n", err)
		return 1
	}
	res := p.Run(files)
	if bars != nil {
		bars.wait()
	}

	for _, f := range res.Files {
		if f.Err != nil {
			fmt.Fprintf(stderr, "mp3gain: %v\n", f.Err)
		}
	}
	if res.Failed() > 0 {
		return 1
	}
	return 0
}

// promptConfirmer asks on the terminal whether a clipping change should go
// ahead.
func promptConfirmer(in io.Reader, out io.Writer) gain.Confirmer {
	r := bufio.NewReader(in)
	return gain.ConfirmFunc(func(file string, steps int, peak float64) bool {
		fmt.Fprintf(out, "%s: applying a change of %d steps would clip (peak %.0f). Make change anyway [y/n]? ",
			file, steps, gain.PeakAfter(peak, steps)*audio.FullScale)
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	})
}

// progressBars shows one bar per pass over a file.
type progressBars struct {
	mu   sync.Mutex
	p    *mpb.Progress
	bars map[string]*mpb.Bar
}

func newProgressBars(out io.Writer) *progressBars {
	return &progressBars{
		p:    mpb.New(mpb.WithWidth(64), mpb.WithOutput(out)),
		bars: make(map[string]*mpb.Bar),
	}
}

func (b *progressBars) update(path string, done, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bar, ok := b.bars[path]
	if !ok || bar.Completed() {
		bar = b.p.AddBar(total,
			mpb.PrependDecorators(
				decor.Name(filepath.Base(path)+" "),
				decor.CountersKibiByte("% .1f / % .1f"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
			),
		)
		b.bars[path] = bar
	}
	bar.SetCurrent(done)
}

func (b *progressBars) wait() {
	b.mu.Lock()
	for _, bar := range b.bars {
		if !bar.Completed() {
			bar.Abort(false)
		}
	}
	b.mu.Unlock()
	b.p.Wait()
}

// serve starts the HTTP front end.
func serve(args []string) int {
	fs := flag.NewFlagSet("mp3gain serve", flag.ContinueOnError)
	decoderName := fs.String("decoder", "minimp3", "decoder used for analysis ("+strings.Join(audio.Names(), ", ")+")")
	origin := fs.String("origin", "http://localhost:3000", "allowed CORS origin")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.WithError(err).Error("Invalid log level")
		return 1
	}
	logrus.SetLevel(level)

	decoder, err := audio.NewDecoder(*decoderName)
	if err != nil {
		logrus.WithError(err).Error("Invalid decoder")
		return 1
	}

	router := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = []string{*origin}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	config.ExposeHeaders = []string{"X-Gain-Steps", "X-Gain-DB", "Content-Disposition"}
	config.AllowCredentials = true
	router.Use(cors.New(config))

	handlers.NewGainHandler(decoder, "").Register(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log := logrus.WithFields(logrus.Fields{
		"function": "serve",
		"port":     port,
		"decoder":  decoder.Name(),
	})
	log.Info("Server starting")
	log.Info("POST /api/v1/gain/analyze - recommended track gain of an MP3")
	log.Info("POST /api/v1/gain/apply   - returns the MP3 with its gain changed")
	log.Info("GET  /api/v1/health       - health check")

	if err := router.Run(":" + port); err != nil {
		log.WithError(err).Error("Failed to start server")
		return 1
	}
	return 0
}
