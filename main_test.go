package main

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mp3gain-go/models"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *models.Config)
	}{
		{"defaults", []string{"a.mp3"}, func(t *testing.T, cfg *models.Config) {
			assert.Equal(t, models.ModeAnalyze, cfg.Mode)
			assert.Equal(t, models.ClipPrompt, cfg.Clip)
			assert.Equal(t, models.TagAPE, cfg.TagFormat)
			assert.Equal(t, "minimp3", cfg.Decoder)
		}},
		{"track with offsets", []string{"-r", "-m", "2", "-d", "1.5", "-k", "a.mp3"}, func(t *testing.T, cfg *models.Config) {
			assert.Equal(t, models.ModeApplyTrack, cfg.Mode)
			assert.Equal(t, 2, cfg.StepOffset)
			assert.InDelta(t, 1.5, cfg.DBOffset, 1e-9)
			assert.Equal(t, models.ClipAuto, cfg.Clip)
		}},
		{"album ignore clipping", []string{"-a", "-c", "-t", "-p", "a.mp3"}, func(t *testing.T, cfg *models.Config) {
			assert.Equal(t, models.ModeApplyAlbum, cfg.Mode)
			assert.Equal(t, models.ClipIgnore, cfg.Clip)
			assert.True(t, cfg.UseTemp)
			assert.True(t, cfg.PreserveTime)
		}},
		{"direct gain zero", []string{"-g", "0", "a.mp3"}, func(t *testing.T, cfg *models.Config) {
			assert.Equal(t, models.ModeDirectGain, cfg.Mode)
			assert.Equal(t, 0, cfg.DirectGain)
		}},
		{"channel gain", []string{"-l", "1:-3", "-w", "a.mp3"}, func(t *testing.T, cfg *models.Config) {
			assert.Equal(t, models.ModeDirectChannelGain, cfg.Mode)
			assert.Equal(t, 1, cfg.Channel)
			assert.Equal(t, -3, cfg.DirectGain)
			assert.True(t, cfg.Wrap)
		}},
		{"tag modes", []string{"-s", "rui", "-e", "-x", "-o", "-f", "a.mp3"}, func(t *testing.T, cfg *models.Config) {
			assert.True(t, cfg.ForceRecalc)
			assert.True(t, cfg.ForceUpdate)
			assert.Equal(t, models.TagID3, cfg.TagFormat)
			assert.True(t, cfg.TrackOnly)
			assert.True(t, cfg.MaxAmpOnly)
			assert.True(t, cfg.DatabaseFormat)
			assert.True(t, cfg.AssumeLayer3)
		}},
		{"check tags", []string{"-s", "c", "a.mp3"}, func(t *testing.T, cfg *models.Config) {
			assert.Equal(t, models.ModeCheckTags, cfg.Mode)
		}},
		{"undo", []string{"-u", "-decoder", "gomp3", "a.mp3"}, func(t *testing.T, cfg *models.Config) {
			assert.Equal(t, models.ModeUndo, cfg.Mode)
			assert.Equal(t, "gomp3", cfg.Decoder)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, files, _, err := parseArgs(tt.args, io.Discard)
			require.NoError(t, err)
			assert.Equal(t, []string{"a.mp3"}, files)
			tt.check(t, cfg)
		})
	}
}

func TestParseArgsErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"-r", "-a", "a.mp3"},
		{"-l", "2:3", "a.mp3"},
		{"-l", "left", "a.mp3"},
		{"-s", "z", "a.mp3"},
		{"-u", "-s", "s", "a.mp3"},
		{"-decoder", "lame", "a.mp3"},
		{"-log-level", "loud", "a.mp3"},
		{"-nope", "a.mp3"},
	} {
		_, _, _, err := parseArgs(args, io.Discard)
		assert.Error(t, err, strings.Join(args, " "))
	}
}

func TestQuietRaisesLogLevel(t *testing.T) {
	_, _, level, err := parseArgs([]string{"-q", "a.mp3"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, level)

	_, _, level, err = parseArgs([]string{"-q", "-log-level", "error", "a.mp3"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, logrus.ErrorLevel, level)
}

func TestRunExitStatus(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"-v"}, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stdout.String(), version)

	stdout.Reset()
	missing := filepath.Join(t.TempDir(), "missing.mp3")
	assert.Equal(t, 1, run([]string{"-q", missing}, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stderr.String(), "missing.mp3")

	assert.Equal(t, 1, run([]string{"-r", "-a", missing}, strings.NewReader(""), &stdout, &stderr))
}

func TestPromptConfirmer(t *testing.T) {
	var out bytes.Buffer
	c := promptConfirmer(strings.NewReader("y\nn\n"), &out)
	assert.True(t, c.ConfirmClip("a.mp3", 4, 0.9))
	assert.False(t, c.ConfirmClip("a.mp3", 4, 0.9))
	assert.False(t, c.ConfirmClip("a.mp3", 4, 0.9))
	assert.Contains(t, out.String(), "a.mp3")
}
