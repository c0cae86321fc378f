package timelapse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFmpegArgs(t *testing.T) {
	ff := NewFFmpeg("", zerolog.Nop())
	assert.Equal(t, "ffmpeg", ff.Binary)

	args := ff.Args(Job{
		FramePattern:    "/cache/timelapse_frames/run-1/frame_%04d.jpg",
		InputFrameRate:  2,
		OutputFrameRate: 30,
		Codec:           "libx264",
		PixelFormat:     "yuv420p",
		OutputPath:      "/movies/timelapse_20250704_183015.mp4",
	})

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "ffmpeg_args", []byte(strings.Join(args, "\n")+"\n"))
}

// fakeBinary writes a shell script standing in for ffmpeg.
func fakeBinary(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700))
	return path
}

func TestFFmpegEncodeSuccess(t *testing.T) {
	// The output path is the last argument.
	bin := fakeBinary(t, `for last; do :; done; echo video > "$last"`)
	out := filepath.Join(t.TempDir(), "out.mp4")

	err := NewFFmpeg(bin, zerolog.Nop()).Encode(context.Background(), Job{
		FramePattern: "frame_%04d.jpg", InputFrameRate: 2, OutputFrameRate: 30,
		Codec: "libx264", PixelFormat: "yuv420p", OutputPath: out,
	})
	require.NoError(t, err)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "video\n", string(content))
}

func TestFFmpegEncodeExitCode(t *testing.T) {
	bin := fakeBinary(t, `echo "frame_%04d.jpg: No such file or directory" >&2; exit 3`)

	err := NewFFmpeg(bin, zerolog.Nop()).Encode(context.Background(), Job{OutputPath: "out.mp4"})

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %v", err)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, exitErr.Output, "No such file or directory")
	assert.Contains(t, exitErr.Error(), "code 3")
}

func TestFFmpegMissingBinary(t *testing.T) {
	err := NewFFmpeg(filepath.Join(t.TempDir(), "nope"), zerolog.Nop()).Encode(context.Background(), Job{})
	require.Error(t, err)

	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}

func TestExitErrorMessage(t *testing.T) {
	assert.Equal(t, "encoder exited with code 1", (&ExitError{Code: 1}).Error())
	assert.Equal(t, "encoder exited with code 1: boom", (&ExitError{Code: 1, Output: "boom"}).Error())
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 5))
	assert.Equal(t, "cde", tail("abcde", 3))

	// "é" is two bytes; a cut through it drops the partial rune.
	assert.Equal(t, "xyz", tail("éxyz", 4))
	assert.Equal(t, "éxyz", tail("aéxyz", 5))
	got := tail("fichier introuvable: données", 3)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "es", got)
}
