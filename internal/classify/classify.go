// Package classify assigns semantic block types using layout and textual
// heuristics, with an optional external classifier consulted for blocks
// when one is configured. The heuristics always run first so the system
// stays fully functional with the external classifier disabled.
package classify

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/pagecast/pagecast/internal/structure"
)

var (
	listPrefixRe = regexp.MustCompile(`^(\d{1,3}[.)]\s+|[a-z][.)]\s+|\(\d+\)\s+|\([a-z]\)\s+|[•\-*‣◦]\s+)`)

	chapterRe    = regexp.MustCompile(`(?i)^chapter\s+\d+`)
	numberedRe   = regexp.MustCompile(`^\d+\.\s+\S`)
	subNumberRe  = regexp.MustCompile(`^\d+\.\d+(\.\d+)*\s+\S`)
	glossaryRe   = regexp.MustCompile(`^[A-Z][A-Za-z'\-]*\s*:\s+\S`)
	pageNumberRe = regexp.MustCompile(`(?i)^\s*(page\s+)?\d{1,4}\s*$`)
	romanFolioRe = regexp.MustCompile(`^[ivxlcdm]{1,8}$`)
)

// Result is the heuristic classification of one block.
type Result struct {
	Type         structure.BlockType
	HeadingLevel int // 1..6 for headings, 0 otherwise
}

// Heuristic classifies text by pattern precedence. The order of checks is
// deliberate and must not be rearranged: earlier rules win on overlap.
func Heuristic(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Type: structure.BlockParagraph}
	}

	// 1. Numbered/lettered/bulleted prefix.
	if listPrefixRe.MatchString(text) {
		return Result{Type: structure.BlockListItem}
	}

	// 2. All-uppercase short text.
	if len(text) > 3 && len(text) < 100 && isAllUpper(text) {
		return Result{Type: structure.BlockHeading, HeadingLevel: 1}
	}

	// 3. Title-case phrase without terminal sentence punctuation.
	if len(text) < 60 && isTitleCase(text) && !hasTerminalPunctuation(text) {
		level := 2
		if len(text) < 40 {
			level = 1
		}
		return Result{Type: structure.BlockHeading, HeadingLevel: level}
	}

	// 4. Explicit heading numbering.
	if chapterRe.MatchString(text) {
		return Result{Type: structure.BlockHeading, HeadingLevel: 1}
	}
	if subNumberRe.MatchString(text) {
		return Result{Type: structure.BlockHeading, HeadingLevel: 3}
	}
	if numberedRe.MatchString(text) {
		return Result{Type: structure.BlockHeading, HeadingLevel: 2}
	}

	// 5. "Word: definition".
	if glossaryRe.MatchString(text) {
		return Result{Type: structure.BlockGlossaryTerm}
	}

	// 6. Default.
	return Result{Type: structure.BlockParagraph}
}

func isAllUpper(text string) bool {
	hasLetter := false
	for _, r := range text {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func isTitleCase(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		r := []rune(w)[0]
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			// Short connective words are allowed lowercase mid-title.
			if len(w) <= 3 && w != words[0] {
				continue
			}
			return false
		}
	}
	return true
}

func hasTerminalPunctuation(text string) bool {
	switch text[len(text)-1] {
	case '.', '!', '?', ';', ':', ',':
		return true
	}
	return false
}

// ExternalClassifier is the optional AI-backed classifier. An empty answer
// or an error means "no opinion"; the heuristic result stands.
type ExternalClassifier interface {
	ClassifyBlock(ctx context.Context, text string) (string, error)
	Enabled() bool
}

// Classifier combines the heuristics with an optional external classifier.
type Classifier struct {
	external ExternalClassifier
	logger   *slog.Logger
}

// New creates a classifier. The external classifier may be nil.
func New(external ExternalClassifier, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{external: external, logger: logger}
}

// Classify sets the block's type and heading level. The heuristic result
// is computed first; a non-empty external answer overrides it. External
// failure is not an error, just the reduced-accuracy path.
func (c *Classifier) Classify(ctx context.Context, b *structure.TextBlock) {
	res := Heuristic(b.Text)
	b.Type = res.Type
	b.HeadingLevel = res.HeadingLevel

	if c.external == nil || !c.external.Enabled() {
		return
	}

	answer, err := c.external.ClassifyBlock(ctx, b.Text)
	if err != nil {
		c.logger.Debug("external classifier unavailable", "error", err)
		return
	}
	if override, ok := parseExternalType(answer); ok {
		b.Type = override
		if override != structure.BlockHeading {
			b.HeadingLevel = 0
		} else if b.HeadingLevel == 0 {
			b.HeadingLevel = 1
		}
	}
}

func parseExternalType(answer string) (structure.BlockType, bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "heading":
		return structure.BlockHeading, true
	case "paragraph":
		return structure.BlockParagraph, true
	case "list_item", "list item":
		return structure.BlockListItem, true
	case "caption":
		return structure.BlockCaption, true
	case "glossary_term", "glossary term":
		return structure.BlockGlossaryTerm, true
	case "footnote":
		return structure.BlockFootnote, true
	case "sidebar":
		return structure.BlockSidebar, true
	case "header":
		return structure.BlockHeader, true
	case "footer":
		return structure.BlockFooter, true
	}
	return "", false
}

// marginBand is the fraction of page height treated as the header/footer
// region.
const marginBand = 0.10

// SuppressHeaderFooter marks page-number and short-boilerplate blocks in
// the top or bottom 10% of the page as headers/footers. They stay in the
// block list for debugging but are excluded from the reading flow, and
// their presence must not shift the numbering of real content blocks
// (callers re-run layout.ResolvePage afterwards).
func SuppressHeaderFooter(page *structure.PageStructure) {
	for _, b := range page.TextBlocks {
		if b.Bounds == nil {
			continue
		}
		inTop := b.Bounds.Y > (1-marginBand)*page.Height
		inBottom := b.Bounds.Top() < marginBand*page.Height
		if !inTop && !inBottom {
			continue
		}
		if !isBoilerplate(b.Text) {
			continue
		}
		b.ExcludeFromReadingOrder = true
		if inTop {
			b.Type = structure.BlockHeader
		} else {
			b.Type = structure.BlockFooter
		}
		b.HeadingLevel = 0
	}
}

// isBoilerplate matches bare page numbers, roman folios and short running
// titles.
func isBoilerplate(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	if pageNumberRe.MatchString(text) {
		return true
	}
	if romanFolioRe.MatchString(strings.ToLower(text)) {
		return true
	}
	// Short running title: a handful of words, no sentence punctuation.
	if len(text) <= 60 && len(strings.Fields(text)) <= 6 && !strings.ContainsAny(text, ".!?") {
		return true
	}
	return false
}
