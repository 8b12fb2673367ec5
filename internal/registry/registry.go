package registry

import (
	"sort"

	"github.com/pavel-fokin/file-converter/internal/format"
)

// Backend names.
const (
	OfficeSuite    = "office-suite"
	ImageToPDF     = "image-to-pdf"
	VectorToPDF    = "vector-to-pdf"
	TextExtraction = "text-extraction"
	PDFRasterize   = "pdf-rasterize"
	VectorToRaster = "vector-to-raster"
	ImageToImage   = "image-to-image"
	TabularToCSV   = "tabular-to-csv"
	CSVToTabular   = "csv-to-tabular"
	Audio          = "audio"
	Video          = "video"
	GIFToVideo     = "gif-to-video"
	ArchiveRepack  = "archive-repack"
)

// Descriptor claims a set of (source, target) pairs for one backend. A nil
// Sources set accepts any source. Lower Priority values are consulted first.
type Descriptor struct {
	Backend  string
	Sources  format.Set
	Targets  format.Set
	Priority int
}

// Accepts reports whether the descriptor claims source -> target.
func (d Descriptor) Accepts(source, target format.Format) bool {
	if !d.Targets.Has(target) {
		return false
	}
	return d.Sources == nil || d.Sources.Has(source)
}

// Registry resolves a conversion pair to the backend responsible for it.
type Registry struct {
	rules []Descriptor
}

// New builds a registry from rules, ordering them by priority. Rules with equal
// priority keep their given order.
func New(rules ...Descriptor) *Registry {
	sorted := make([]Descriptor, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &Registry{rules: sorted}
}

// Resolve returns the first rule that claims source -> target.
func (r *Registry) Resolve(source, target format.Format) (Descriptor, bool) {
	for _, rule := range r.rules {
		if rule.Accepts(source, target) {
			return rule, true
		}
	}
	return Descriptor{}, false
}

// Rules returns the rules in resolution order.
func (r *Registry) Rules() []Descriptor {
	out := make([]Descriptor, len(r.rules))
	copy(out, r.rules)
	return out
}

// Backends returns the distinct backend names referenced by the rules.
func (r *Registry) Backends() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, rule := range r.rules {
		if _, ok := seen[rule.Backend]; ok {
			continue
		}
		seen[rule.Backend] = struct{}{}
		names = append(names, rule.Backend)
	}
	return names
}

// Default returns the production routing table.
func Default() *Registry {
	officeSources := format.Office
	sheetSources := format.Spreadsheets.Union(format.NewSet(format.CSV))

	return New(
		// Word and slide targets are reachable from anything the office suite can open.
		Descriptor{Backend: OfficeSuite, Targets: format.NewSet(format.DOCX, format.DOC, format.ODT, format.RTF, format.PPTX, format.PPT, format.ODP), Priority: 10},
		Descriptor{Backend: OfficeSuite, Sources: officeSources, Targets: format.Spreadsheets, Priority: 11},
		Descriptor{Backend: OfficeSuite, Sources: officeSources.Union(format.NewSet(format.HTML, format.HTM)), Targets: format.NewSet(format.PDF), Priority: 12},

		Descriptor{Backend: ImageToPDF, Sources: format.Raster, Targets: format.NewSet(format.PDF), Priority: 20},
		Descriptor{Backend: VectorToPDF, Sources: format.NewSet(format.SVG), Targets: format.NewSet(format.PDF), Priority: 30},
		Descriptor{Backend: TextExtraction, Targets: format.NewSet(format.TXT), Priority: 40},

		Descriptor{Backend: PDFRasterize, Sources: format.NewSet(format.PDF), Targets: format.Raster, Priority: 50},
		Descriptor{Backend: VectorToRaster, Sources: format.NewSet(format.SVG), Targets: format.Raster, Priority: 51},
		Descriptor{Backend: ImageToImage, Sources: format.Raster, Targets: format.Raster, Priority: 52},
		Descriptor{Backend: Video, Sources: format.Video, Targets: format.NewSet(format.GIF), Priority: 53},
		Descriptor{Backend: PDFRasterize, Sources: format.NewSet(format.PDF), Targets: format.NewSet(format.SVG), Priority: 54},

		Descriptor{Backend: TabularToCSV, Sources: format.NewSet(format.XLSX, format.XLS, format.JSON), Targets: format.NewSet(format.CSV), Priority: 60},
		Descriptor{Backend: CSVToTabular, Sources: format.NewSet(format.CSV), Targets: format.NewSet(format.XLSX), Priority: 70},

		Descriptor{Backend: Audio, Sources: format.Audio.Union(format.Video), Targets: format.Audio, Priority: 80},
		Descriptor{Backend: Video, Sources: format.Video, Targets: format.Video, Priority: 90},
		Descriptor{Backend: GIFToVideo, Sources: format.NewSet(format.GIF), Targets: format.Video, Priority: 91},

		Descriptor{Backend: ArchiveRepack, Sources: format.NewSet(format.TarGz), Targets: format.NewSet(format.ZIP), Priority: 100},
		Descriptor{Backend: ArchiveRepack, Sources: format.NewSet(format.ZIP), Targets: format.NewSet(format.TarGz), Priority: 101},

		// Spreadsheet exports the dedicated tabular rules do not cover.
		Descriptor{Backend: OfficeSuite, Sources: sheetSources, Targets: format.NewSet(format.HTML, format.PDF, format.CSV), Priority: 110},
	)
}
