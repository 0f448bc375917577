package epub

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pagecast/pagecast/internal/structure"
)

// Text that reaches the read-aloud layer is vocalized by screen readers,
// so binary noise, escape-sequence artifacts and decorative fragments must
// be filtered out before packaging.

var (
	escapeArtifactRe = regexp.MustCompile(`\\d\+|\\\[a-zA-Z\]|\\[dswb]\b`)
	barePageNumberRe = regexp.MustCompile(`^\s*\d{1,4}\s*$`)
	leaderDotsRe     = regexp.MustCompile(`\.{4,}`)
)

// SanitizeText strips control characters and escape-sequence artifacts.
func SanitizeText(text string) string {
	text = escapeArtifactRe.ReplaceAllString(text, "")

	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.TrimSpace(sb.String())
}

// IsDecorative reports whether text is a decorative fragment: a bare page
// number, a table-of-contents leader-dot line, or a run that is mostly
// non-alphanumeric noise.
func IsDecorative(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	if barePageNumberRe.MatchString(text) {
		return true
	}
	if leaderDotsRe.MatchString(text) {
		return true
	}
	if len(text) > 10 && alnumDensity(text) < 0.3 {
		return true
	}
	return false
}

func alnumDensity(text string) float64 {
	total, alnum := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alnum) / float64(total)
}

// TextLayerBlocks returns the blocks that belong in a page's read-aloud
// text layer, in reading order. FOOTNOTE and SIDEBAR blocks are skipped
// entirely, as are decorative fragments. Both the content-document and the
// sync-document generators go through this function so the two can never
// disagree about which blocks a page exposes.
func TextLayerBlocks(page *structure.PageStructure) []*structure.TextBlock {
	var out []*structure.TextBlock
	for _, b := range page.BlocksInReadingOrder() {
		if b.Type == structure.BlockFootnote || b.Type == structure.BlockSidebar {
			continue
		}
		if IsDecorative(SanitizeText(b.Text)) {
			continue
		}
		out = append(out, b)
	}
	return out
}
