package format

// Matrix maps a source format to the formats it may legally be converted to.
// It is built once by NewMatrix and never modified afterwards.
type Matrix struct {
	targets map[Format][]Format
}

// NewMatrix builds the capability table.
func NewMatrix() *Matrix {
	m := &Matrix{targets: make(map[Format][]Format)}

	imageTargets := Raster.Union(NewSet(PDF))
	for f := range Raster {
		exclude := []Format{f}
		if f == JPG || f == JPEG {
			exclude = []Format{JPG, JPEG}
		}
		m.set(f, imageTargets.Without(exclude...))
	}

	m.set(PDF, NewSet(PNG, JPG, JPEG, TXT, DOCX, PPTX, SVG))

	documentTargets := NewSet(PDF, TXT, DOCX, DOC, ODT, RTF, PPTX, PPT, ODP)
	for f := range Documents {
		m.set(f, documentTargets.Without(f))
	}

	sheetTargets := NewSet(PDF, CSV, HTML, XLSX, XLS, ODS)
	for f := range Spreadsheets {
		m.set(f, sheetTargets.Without(f))
	}

	m.set(CSV, NewSet(XLSX, HTML, PDF, TXT))
	m.set(JSON, NewSet(CSV, TXT))
	m.set(SVG, NewSet(PNG, PDF, JPG))

	for f := range Audio {
		m.set(f, Audio.Without(f))
	}

	videoTargets := Video.Union(NewSet(GIF, MP3))
	for f := range Video {
		m.set(f, videoTargets.Without(f))
	}

	return m
}

func (m *Matrix) set(source Format, targets Set) {
	m.targets[source] = targets.Without(source).Sorted()
}

// LegalTargets returns the sorted formats source can be converted to. Unknown
// formats yield an empty, non-nil slice.
func (m *Matrix) LegalTargets(source Format) []Format {
	targets := m.targets[source]
	out := make([]Format, len(targets))
	copy(out, targets)
	return out
}

// Supports reports whether the matrix advertises source -> target.
func (m *Matrix) Supports(source, target Format) bool {
	for _, t := range m.targets[source] {
		if t == target {
			return true
		}
	}
	return false
}

// Sources returns every format that has at least one legal target.
func (m *Matrix) Sources() []Format {
	s := make(Set, len(m.targets))
	for f := range m.targets {
		s[f] = struct{}{}
	}
	return s.Sorted()
}
