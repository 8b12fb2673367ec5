package format

import (
	"path/filepath"
	"sort"
	"strings"
)

// Format is a normalized file-type token: lowercase, no leading dot.
type Format string

const (
	JPG  Format = "jpg"
	JPEG Format = "jpeg"
	PNG  Format = "png"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
	GIF  Format = "gif"
	WEBP Format = "webp"
	SVG  Format = "svg"
	PDF  Format = "pdf"

	DOCX Format = "docx"
	DOC  Format = "doc"
	ODT  Format = "odt"
	RTF  Format = "rtf"
	TXT  Format = "txt"
	PPTX Format = "pptx"
	PPT  Format = "ppt"
	ODP  Format = "odp"
	XLSX Format = "xlsx"
	XLS  Format = "xls"
	ODS  Format = "ods"
	CSV  Format = "csv"
	JSON Format = "json"
	HTML Format = "html"
	HTM  Format = "htm"
	MD   Format = "md"

	MP3  Format = "mp3"
	WAV  Format = "wav"
	AAC  Format = "aac"
	FLAC Format = "flac"
	OGG  Format = "ogg"
	M4A  Format = "m4a"

	MP4  Format = "mp4"
	AVI  Format = "avi"
	MOV  Format = "mov"
	MKV  Format = "mkv"
	WMV  Format = "wmv"
	FLV  Format = "flv"
	WEBM Format = "webm"

	ZIP   Format = "zip"
	TarGz Format = "tar.gz"
)

const tarGzSuffix = ".tar.gz"

// Families of formats used by the capability matrix and the registry.
var (
	Raster       = NewSet(JPG, JPEG, PNG, BMP, TIFF, GIF, WEBP)
	Audio        = NewSet(MP3, WAV, AAC, FLAC, OGG, M4A)
	Video        = NewSet(MP4, AVI, MOV, MKV, WMV, FLV, WEBM)
	Documents    = NewSet(DOCX, DOC, ODT, RTF, TXT, PPTX, PPT, ODP)
	Spreadsheets = NewSet(XLSX, XLS, ODS)
	Office       = Documents.Union(Spreadsheets)

	known = Raster.Union(Audio).Union(Video).Union(Documents).Union(Spreadsheets).
		Union(NewSet(SVG, PDF, CSV, JSON, HTML, HTM, MD, ZIP, TarGz))
)

// Known reports whether f is one of the format tokens above.
func Known(f Format) bool {
	return known.Has(f)
}

// Normalize lowercases s and strips surrounding whitespace and leading dots.
func Normalize(s string) Format {
	return Format(strings.TrimLeft(strings.ToLower(strings.TrimSpace(s)), "."))
}

// FromFilename derives the format of a file from its extension. The two
// segment ".tar.gz" suffix is kept as a single token.
func FromFilename(name string) Format {
	base := strings.ToLower(filepath.Base(name))
	if strings.HasSuffix(base, tarGzSuffix) && len(base) > len(tarGzSuffix) {
		return TarGz
	}
	return Normalize(filepath.Ext(base))
}

// BaseName returns the file name without directory and without the suffix
// that FromFilename recognizes.
func BaseName(name string) string {
	base := filepath.Base(name)
	if FromFilename(base) == TarGz {
		return base[:len(base)-len(tarGzSuffix)]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (f Format) String() string { return string(f) }

// Set is an unordered collection of formats.
type Set map[Format]struct{}

func NewSet(formats ...Format) Set {
	s := make(Set, len(formats))
	for _, f := range formats {
		s[f] = struct{}{}
	}
	return s
}

func (s Set) Has(f Format) bool {
	_, ok := s[f]
	return ok
}

// Union returns a new set holding the members of s and other.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for f := range s {
		out[f] = struct{}{}
	}
	for f := range other {
		out[f] = struct{}{}
	}
	return out
}

// Without returns a copy of s minus the given formats.
func (s Set) Without(formats ...Format) Set {
	out := make(Set, len(s))
	for f := range s {
		out[f] = struct{}{}
	}
	for _, f := range formats {
		delete(out, f)
	}
	return out
}

// Sorted returns the members of s in lexical order.
func (s Set) Sorted() []Format {
	out := make([]Format, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
