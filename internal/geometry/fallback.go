package geometry

import (
	"strings"

	"github.com/pagecast/pagecast/internal/structure"
)

const (
	fallbackLineHeight = 14.0
	fallbackMargin     = 36.0 // half inch
)

// FallbackBlocks splits a page's raw flat text into paragraph blocks when
// geometric clustering failed. Paragraphs are separated by blank lines;
// when the text has no blank lines each line becomes its own block.
// Bounding boxes are synthetic, estimated top-down at a fixed line height.
func FallbackBlocks(rawText string, pageNumber int, pageWidth, pageHeight float64) []*structure.TextBlock {
	text := strings.ReplaceAll(rawText, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var parts []string
	if strings.Contains(text, "\n\n") {
		for _, p := range strings.Split(text, "\n\n") {
			p = strings.TrimSpace(strings.Join(strings.Fields(p), " "))
			if p != "" {
				parts = append(parts, p)
			}
		}
	} else {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				parts = append(parts, line)
			}
		}
	}

	blocks := make([]*structure.TextBlock, 0, len(parts))
	// Synthetic boxes start below the header band so position-based
	// header suppression never fires on estimated geometry.
	margin := fallbackMargin
	if band := 0.12 * pageHeight; band > margin {
		margin = band
	}
	top := pageHeight - margin
	for _, p := range parts {
		// Estimate the vertical extent from the wrapped line count.
		width := pageWidth - 2*fallbackMargin
		if width <= 0 {
			width = pageWidth
		}
		lines := estimateLineCount(p, width)
		height := float64(lines) * fallbackLineHeight
		bottom := top - height
		if bottom < 0 {
			bottom = 0
		}

		blocks = append(blocks, &structure.TextBlock{
			Text: p,
			Type: structure.BlockParagraph,
			Bounds: &structure.BoundingBox{
				PageNumber: pageNumber,
				X:          fallbackMargin,
				Y:          bottom,
				Width:      width,
				Height:     top - bottom,
			},
		})
		top = bottom - fallbackLineHeight
		if top < 0 {
			top = 0
		}
	}
	return blocks
}

// estimateLineCount guesses how many rendered lines a paragraph occupies,
// assuming roughly 6.5 points per character.
func estimateLineCount(text string, width float64) int {
	const avgCharWidth = 6.5
	perLine := int(width / avgCharWidth)
	if perLine <= 0 {
		perLine = 80
	}
	lines := (len(text) + perLine - 1) / perLine
	if lines < 1 {
		lines = 1
	}
	return lines
}
