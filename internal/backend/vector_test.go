package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/file-converter/internal/command"
	"github.com/pavel-fokin/file-converter/internal/format"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 40 20" width="40" height="20">
  <rect x="0" y="0" width="20" height="20" fill="#ff0000"/>
</svg>`

func TestVectorToRaster(t *testing.T) {
	src := fixture(t, "logo.svg", testSVG)

	b := NewVectorToRaster(NewImageWriter(&command.Recorder{}, "ffmpeg"))
	for _, target := range []format.Format{format.PNG, format.JPG} {
		t.Run(string(target), func(t *testing.T) {
			out, err := b.Convert(context.Background(), src, t.TempDir(), target)
			require.NoError(t, err)
			assert.Equal(t, "logo."+string(target), filepath.Base(out))

			img, err := imaging.Open(out)
			require.NoError(t, err)
			assert.Equal(t, 40, img.Bounds().Dx())
			assert.Equal(t, 20, img.Bounds().Dy())
		})
	}
}

func TestVectorToPDF(t *testing.T) {
	src := fixture(t, "logo.svg", testSVG)

	out, err := NewVectorToPDF().Convert(context.Background(), src, t.TempDir(), format.PDF)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestVectorRejectsGarbage(t *testing.T) {
	src := fixture(t, "bad.svg", "<<<not svg")
	_, err := NewVectorToPDF().Convert(context.Background(), src, t.TempDir(), format.PDF)
	assert.Error(t, err)
}
