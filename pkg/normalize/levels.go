package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
	whitespaceRe = regexp.MustCompile(`[ \t]+`)
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	trailingWSre = regexp.MustCompile(`[ \t]+\n`)
)

const bom = "\xef\xbb\xbf"

// zeroWidthOrBidi are the zero-width and bidi-control code points that
// Moderate/Aggressive normalization strips.
var zeroWidthOrBidi = map[rune]bool{
	0x200B: true, // ZERO WIDTH SPACE
	0x200C: true, // ZERO WIDTH NON-JOINER
	0x200D: true, // ZERO WIDTH JOINER
	0x2060: true, // WORD JOINER
	0xFEFF: true, // ZERO WIDTH NO-BREAK SPACE
	0x202A: true, // LEFT-TO-RIGHT EMBEDDING
	0x202B: true, // RIGHT-TO-LEFT EMBEDDING
	0x202C: true, // POP DIRECTIONAL FORMATTING
	0x202D: true, // LEFT-TO-RIGHT OVERRIDE
	0x202E: true, // RIGHT-TO-LEFT OVERRIDE
	0x2066: true, // LEFT-TO-RIGHT ISOLATE
	0x2067: true, // RIGHT-TO-LEFT ISOLATE
	0x2068: true, // FIRST STRONG ISOLATE
	0x2069: true, // POP DIRECTIONAL ISOLATE
}

func isZeroWidthOrBidi(r rune) bool {
	return zeroWidthOrBidi[r]
}

// Normalize applies policy to text and returns the normalized form. It is
// idempotent: Normalize(Normalize(x, p), p) == Normalize(x, p).
func Normalize(text string, policy Policy) string {
	out := conservative(text)
	if policy.Level == Conservative {
		return out
	}
	out = moderate(out)
	if policy.Level == Moderate {
		return out
	}
	out = aggressive(out, policy)
	return out
}

func conservative(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimPrefix(text, bom)
	return norm.NFC.String(text)
}

func moderate(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isZeroWidthOrBidi(r) {
			continue
		}
		b.WriteRune(r)
	}
	// Stripping a control can leave a base and a combining mark adjacent.
	out := norm.NFC.String(b.String())
	out = trailingWSre.ReplaceAllString(out, "\n")
	out = newlineRunRe.ReplaceAllString(out, "\n\n")
	out = strings.TrimRight(out, " \t")
	return out
}

func aggressive(text string, policy Policy) string {
	out := norm.NFKC.String(text)
	if policy.StripHTML {
		out = htmlTagRe.ReplaceAllString(out, "")
	}
	out = whitespaceRe.ReplaceAllString(out, " ")
	out = trailingWSre.ReplaceAllString(out, "\n")
	out = newlineRunRe.ReplaceAllString(out, "\n\n")
	if policy.FoldCase {
		out = strings.Map(unicode.ToLower, out)
	}
	return strings.TrimSpace(out)
}
