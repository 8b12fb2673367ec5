package backend

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/file-converter/internal/command"
)

// writeTestImage saves a w x h image with a transparent left half.
func writeTestImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= w/2 {
				img.Set(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
			}
		}
	}
	require.NoError(t, imaging.Save(img, path))
}

// touchLastArg is a command.Recorder func that creates the file named by the
// final argument, the way ffmpeg writes its output.
func touchLastArg(_ context.Context, _ string, args []string) (command.Result, error) {
	return command.Result{}, os.WriteFile(args[len(args)-1], []byte("out"), 0o644)
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func fixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
