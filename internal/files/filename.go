package files

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var asciiFold = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// SanitizeFilename reduces an uploaded file name to a safe, flat ASCII name:
// accents are folded, path separators and whitespace become underscores and
// anything outside [A-Za-z0-9_.-] is dropped. It returns "" when nothing is
// left.
func SanitizeFilename(name string) string {
	folded, _, err := transform.String(asciiFold, name)
	if err != nil {
		return ""
	}

	folded = strings.NewReplacer("/", " ", "\\", " ").Replace(folded)
	joined := strings.Join(strings.Fields(folded), "_")

	kept := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_' || r == '.' || r == '-':
			return r
		}
		return -1
	}, joined)

	return strings.Trim(kept, "._")
}

// IsBareName reports whether name is a plain file name with no directory part.
func IsBareName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\") && !strings.ContainsRune(name, 0)
}
