// Package handlers is made to handle requests
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mp3gain-go/audio"
	"mp3gain-go/gain"
	"mp3gain-go/models"
	"mp3gain-go/processor"
)

// maxUpload bounds the multipart form kept in memory.
const maxUpload = 32 << 20

type GainHandler struct {
	decoder audio.Decoder
	tempDir string

	// one job at a time, like the command line tool
	mu sync.Mutex
}

// NewGainHandler creates a handler analyzing uploads with decoder. Uploads
// are staged in tempDir, or the system default when it is empty.
func NewGainHandler(decoder audio.Decoder, tempDir string) *GainHandler {
	return &GainHandler{decoder: decoder, tempDir: tempDir}
}

// Register mounts the API routes on r.
func (h *GainHandler) Register(r gin.IRouter) {
	api := r.Group("/api/v1")
	{
		api.GET("/health", h.HealthCheck)

		g := api.Group("/gain")
		{
			g.POST("/analyze", h.Analyze)
			g.POST("/apply", h.Apply)
		}
	}
}

func (h *GainHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "MP3 gain API is running",
		"version": "1.0.0",
		"decoder": h.decoder.Name(),
	})
}

// Analyze reports the recommended track change of the uploaded file.
func (h *GainHandler) Analyze(c *gin.Context) {
	path, name, ok := h.stageUpload(c)
	if !ok {
		return
	}
	defer os.Remove(path)

	cfg := models.DefaultConfig()
	cfg.TrackOnly = true
	cfg.SkipTags = true

	f, err := h.run(cfg, path)
	if err != nil {
		h.fail(c, name, err)
		return
	}

	c.JSON(http.StatusOK, models.GainResponse{
		Success:   true,
		Message:   fmt.Sprintf("Analyzed %s", name),
		TrackGain: f.Tag.TrackGain,
		Steps:     f.Steps,
		Peak:      f.Tag.TrackPeak,
		MinGain:   int(f.Tag.MinGain),
		MaxGain:   int(f.Tag.MaxGain),
		WouldClip: f.WouldClip,
	})
}

// Apply changes the gain of the uploaded file and streams it back.
func (h *GainHandler) Apply(c *gin.Context) {
	var req models.ApplyRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.GainResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to parse form: %v", err),
		})
		return
	}

	cfg := models.DefaultConfig()
	cfg.TrackOnly = true
	cfg.SkipTags = true
	cfg.Wrap = req.Wrap

	switch strings.ToLower(req.Mode) {
	case "", "track":
		cfg.Mode = models.ModeApplyTrack
	case "steps":
		cfg.Mode = models.ModeDirectGain
		cfg.DirectGain = req.Steps
	default:
		c.JSON(http.StatusBadRequest, models.GainResponse{
			Success: false,
			Message: "Mode must be track or steps",
		})
		return
	}
	switch strings.ToLower(req.Clip) {
	case "", "auto":
		cfg.Clip = models.ClipAuto
	case "ignore":
		cfg.Clip = models.ClipIgnore
	default:
		c.JSON(http.StatusBadRequest, models.GainResponse{
			Success: false,
			Message: "Clip must be auto or ignore",
		})
		return
	}

	path, name, ok := h.stageUpload(c)
	if !ok {
		return
	}
	defer os.Remove(path)

	f, err := h.run(cfg, path)
	if err != nil {
		h.fail(c, name, err)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		h.fail(c, name, err)
		return
	}

	baseFilename := strings.TrimSuffix(name, filepath.Ext(name))
	outputFilename := fmt.Sprintf("%s_gain.mp3", baseFilename)

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputFilename))
	c.Header("Content-Length", fmt.Sprintf("%d", len(data)))
	c.Header("X-Gain-Steps", strconv.Itoa(f.Applied[0]))
	c.Header("X-Gain-DB", strconv.FormatFloat(float64(f.Applied[0])*gain.DBPerStep, 'f', 2, 64))

	c.Data(http.StatusOK, "audio/mpeg", data)
}

// stageUpload copies the audio_file upload to a temporary file. It writes
// the error response itself and reports false on failure.
func (h *GainHandler) stageUpload(c *gin.Context) (string, string, bool) {
	if err := c.Request.ParseMultipartForm(maxUpload); err != nil {
		c.JSON(http.StatusBadRequest, models.GainResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to parse form: %v", err),
		})
		return "", "", false
	}

	audioFile, audioHeader, err := c.Request.FormFile("audio_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.GainResponse{
			Success: false,
			Message: "Audio file is required",
		})
		return "", "", false
	}
	defer audioFile.Close()

	if !isValidMP3File(audioHeader.Filename) {
		c.JSON(http.StatusBadRequest, models.GainResponse{
			Success: false,
			Message: "Invalid audio file format. Only MP3 files are supported",
		})
		return "", "", false
	}

	tmp, err := os.CreateTemp(h.tempDir, "upload-*.mp3")
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.GainResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to stage upload: %v", err),
		})
		return "", "", false
	}
	_, err = io.Copy(tmp, audioFile)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		c.JSON(http.StatusInternalServerError, models.GainResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to read audio file: %v", err),
		})
		return "", "", false
	}
	return tmp.Name(), audioHeader.Filename, true
}

func (h *GainHandler) run(cfg *models.Config, path string) (*processor.FileResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := processor.New(cfg, io.Discard, processor.WithDecoder(h.decoder))
	if err != nil {
		return nil, err
	}
	res := p.Run([]string{path})
	f := res.Files[0]
	return f, f.Err
}

func (h *GainHandler) fail(c *gin.Context, name string, err error) {
	status := http.StatusInternalServerError
	var e *models.Error
	if errors.As(err, &e) {
		// the staged path means nothing to the client
		e = e.WithFile(name)
		err = e
		if e.Kind.IsFormat() || e.Kind == models.KindNotEnoughSamples {
			status = http.StatusUnprocessableEntity
		}
	}
	logrus.WithFields(logrus.Fields{
		"function": "GainHandler.fail",
		"file":     name,
		"status":   status,
	}).WithError(err).Warn("Request failed")

	c.JSON(status, models.GainResponse{
		Success: false,
		Message: err.Error(),
	})
}

func isValidMP3File(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".mp3"
}
