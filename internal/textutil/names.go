package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugPattern     = regexp.MustCompile(`^[-\w]+$`)
	slugStripper    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapser   = regexp.MustCompile(`[-\s]+`)
	whitespaceRunes = regexp.MustCompile(`\s+`)
	folder          = cases.Fold()
)

// NameKey returns the comparison key used for name uniqueness: NFKC
// normalized, case folded, trimmed, with inner whitespace collapsed.
func NameKey(name string) string {
	normalized := norm.NFKC.String(strings.TrimSpace(name))
	folded := folder.String(normalized)
	return whitespaceRunes.ReplaceAllString(folded, " ")
}

// Slugify converts a display name into a lowercase ASCII slug.
func Slugify(value string) string {
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(stripMarks, value)
	if err != nil {
		ascii = value
	}
	ascii = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, ascii)
	ascii = slugStripper.ReplaceAllString(strings.ToLower(ascii), "")
	ascii = slugCollapser.ReplaceAllString(strings.TrimSpace(ascii), "-")
	return strings.Trim(ascii, "-")
}

// ValidSlug reports whether value consists of letters, numbers, underscores or hyphens.
func ValidSlug(value string) bool {
	return slugPattern.MatchString(value)
}
