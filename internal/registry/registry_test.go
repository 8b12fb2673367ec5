package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/file-converter/internal/format"
)

func TestResolveDefault(t *testing.T) {
	reg := Default()

	tests := []struct {
		source  format.Format
		target  format.Format
		backend string
	}{
		{"docx", "pdf", OfficeSuite},
		{"pptx", "odp", OfficeSuite},
		{"pdf", "docx", OfficeSuite},
		{"xlsx", "ods", OfficeSuite},
		{"html", "pdf", OfficeSuite},
		{"htm", "pdf", OfficeSuite},
		{"png", "pdf", ImageToPDF},
		{"webp", "pdf", ImageToPDF},
		{"svg", "pdf", VectorToPDF},
		{"docx", "txt", TextExtraction},
		{"pdf", "txt", TextExtraction},
		{"json", "txt", TextExtraction},
		{"pdf", "png", PDFRasterize},
		{"pdf", "jpeg", PDFRasterize},
		{"pdf", "svg", PDFRasterize},
		{"svg", "png", VectorToRaster},
		{"png", "jpg", ImageToImage},
		{"gif", "webp", ImageToImage},
		{"mp4", "gif", Video},
		{"xlsx", "csv", TabularToCSV},
		{"xls", "csv", TabularToCSV},
		{"json", "csv", TabularToCSV},
		{"csv", "xlsx", CSVToTabular},
		{"wav", "mp3", Audio},
		{"mkv", "mp3", Audio},
		{"avi", "mp4", Video},
		{"gif", "mp4", GIFToVideo},
		{"tar.gz", "zip", ArchiveRepack},
		{"zip", "tar.gz", ArchiveRepack},
		{"ods", "csv", OfficeSuite},
		{"xlsx", "html", OfficeSuite},
		{"csv", "pdf", OfficeSuite},
	}

	for _, tt := range tests {
		t.Run(string(tt.source)+"->"+string(tt.target), func(t *testing.T) {
			d, ok := reg.Resolve(tt.source, tt.target)
			require.True(t, ok)
			assert.Equal(t, tt.backend, d.Backend)
		})
	}
}

func TestResolvePDFToPNGNeverHitsOfficeSuite(t *testing.T) {
	d, ok := Default().Resolve(format.PDF, format.PNG)
	require.True(t, ok)
	assert.Equal(t, PDFRasterize, d.Backend)
	assert.NotEqual(t, OfficeSuite, d.Backend)
}

func TestResolveNotFound(t *testing.T) {
	reg := Default()

	pairs := [][2]format.Format{
		{"xyz", "png"},
		{"png", "mp3"},
		{"zip", "zip"},
		{"mp3", "mp4"},
		{"csv", "xls"},
	}
	for _, p := range pairs {
		_, ok := reg.Resolve(p[0], p[1])
		assert.False(t, ok, "%s -> %s should not resolve", p[0], p[1])
	}
}

// Every pair the capability matrix advertises must have a backend.
func TestAdvertisedPairsResolve(t *testing.T) {
	reg := Default()
	m := format.NewMatrix()

	for _, source := range m.Sources() {
		for _, target := range m.LegalTargets(source) {
			_, ok := reg.Resolve(source, target)
			assert.True(t, ok, "advertised %s -> %s has no backend", source, target)
		}
	}
}

func TestPriorityOrdering(t *testing.T) {
	reg := New(
		Descriptor{Backend: "broad", Targets: format.NewSet(format.PDF), Priority: 20},
		Descriptor{Backend: "specific", Sources: format.NewSet(format.PNG), Targets: format.NewSet(format.PDF), Priority: 10},
	)

	d, ok := reg.Resolve(format.PNG, format.PDF)
	require.True(t, ok)
	assert.Equal(t, "specific", d.Backend)

	d, ok = reg.Resolve(format.DOCX, format.PDF)
	require.True(t, ok)
	assert.Equal(t, "broad", d.Backend)
}

func TestBackends(t *testing.T) {
	names := Default().Backends()
	assert.ElementsMatch(t, []string{
		OfficeSuite, ImageToPDF, VectorToPDF, TextExtraction, PDFRasterize,
		VectorToRaster, ImageToImage, TabularToCSV, CSVToTabular, Audio,
		Video, GIFToVideo, ArchiveRepack,
	}, names)
}
