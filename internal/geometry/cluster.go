// Package geometry groups raw positioned text runs into logical blocks
// using vertical and horizontal proximity thresholds derived from the
// page's typical line height.
package geometry

import (
	"math"
	"sort"
	"strings"

	"github.com/pagecast/pagecast/internal/structure"
)

const (
	// defaultLineHeight is assumed when a page has too few runs to
	// measure a mean.
	defaultLineHeight = 12.0

	// minCoverageRatio is the fraction of the page's flat text that
	// clustering must account for; below it the paragraph fallback kicks in.
	minCoverageRatio = 0.5
)

// thresholds derives the clustering distances for one page from its mean
// run height.
type thresholds struct {
	lineHeight float64
	vertical   float64 // max vertical distance to join a group across lines
	maxLineGap float64 // max vertical distance for two runs on the same line
	horizontal float64 // max horizontal gap for two runs on the same line
}

func deriveThresholds(runs []structure.PositionedRun) thresholds {
	lineHeight := defaultLineHeight
	if len(runs) >= 2 {
		var sum float64
		for _, r := range runs {
			sum += r.Height
		}
		lineHeight = sum / float64(len(runs))
	}
	return thresholds{
		lineHeight: lineHeight,
		vertical:   2 * lineHeight,
		maxLineGap: 0.8 * lineHeight,
		horizontal: math.Max(50, 3*lineHeight),
	}
}

// group accumulates runs belonging to one logical block.
type group struct {
	text                   strings.Builder
	minX, minY, maxX, maxY float64
	count                  int
}

func (g *group) add(r structure.PositionedRun, separator string) {
	if g.count == 0 {
		g.minX, g.minY = r.X, r.Y
		g.maxX, g.maxY = r.X+r.Width, r.Y+r.Height
	} else {
		g.text.WriteString(separator)
		g.minX = math.Min(g.minX, r.X)
		g.minY = math.Min(g.minY, r.Y)
		g.maxX = math.Max(g.maxX, r.X+r.Width)
		g.maxY = math.Max(g.maxY, r.Y+r.Height)
	}
	g.text.WriteString(r.Text)
	g.count++
}

func (g *group) toBlock(pageNumber int) *structure.TextBlock {
	return &structure.TextBlock{
		Text: strings.TrimSpace(g.text.String()),
		Type: structure.BlockParagraph,
		Bounds: &structure.BoundingBox{
			PageNumber: pageNumber,
			X:          g.minX,
			Y:          g.minY,
			Width:      g.maxX - g.minX,
			Height:     g.maxY - g.minY,
		},
	}
}

// ClusterRuns groups the page's positioned runs into text blocks.
//
// Runs are walked top-to-bottom, left-to-right. A run joins the current
// group when it sits on the same line as the previous run (small vertical
// distance, bounded horizontal gap) or when it starts a new line close
// enough below with loose column alignment. Anything else closes the group.
func ClusterRuns(runs []structure.PositionedRun, pageNumber int, pageWidth, pageHeight float64) []*structure.TextBlock {
	if len(runs) == 0 {
		return nil
	}

	sorted := make([]structure.PositionedRun, len(runs))
	copy(sorted, runs)
	// Stable sort keeps equal-position runs in input order so clustering
	// stays deterministic.
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y // descending Y: top of page first
		}
		return sorted[i].X < sorted[j].X
	})

	th := deriveThresholds(sorted)

	var blocks []*structure.TextBlock
	cur := &group{}
	var prev structure.PositionedRun

	for i, r := range sorted {
		if i == 0 {
			cur.add(r, "")
			prev = r
			continue
		}

		vertDist := math.Abs(prev.Y - r.Y)
		horizGap := r.X - (prev.X + prev.Width)

		sameLine := vertDist < th.maxLineGap && horizGap < th.horizontal
		columnJoin := vertDist < th.vertical && (r.X-cur.minX) < 0.9*pageWidth

		switch {
		case sameLine:
			// Kerning often splits words into adjacent runs; only insert a
			// space when the gap is wide relative to the incoming run.
			sep := ""
			if horizGap > r.Width/2 {
				sep = " "
			}
			cur.add(r, sep)
		case columnJoin:
			cur.add(r, " ")
		default:
			if b := cur.toBlock(pageNumber); b.Text != "" {
				blocks = append(blocks, b)
			}
			cur = &group{}
			cur.add(r, "")
		}
		prev = r
	}

	if b := cur.toBlock(pageNumber); b.Text != "" {
		blocks = append(blocks, b)
	}
	return blocks
}

// ClusterPage clusters a page's runs and verifies coverage against the
// page's flat text. When clustering silently drops more than half of the
// extracted text, the paragraph fallback over the raw text is used instead
// so that no page with any extracted text ends up without blocks.
func ClusterPage(runs []structure.PositionedRun, rawText string, pageNumber int, pageWidth, pageHeight float64) []*structure.TextBlock {
	blocks := ClusterRuns(runs, pageNumber, pageWidth, pageHeight)

	flatLen := countNonSpace(rawText)
	if flatLen == 0 {
		return blocks
	}

	var clusteredLen int
	for _, b := range blocks {
		clusteredLen += countNonSpace(b.Text)
	}

	if float64(clusteredLen) < minCoverageRatio*float64(flatLen) {
		return FallbackBlocks(rawText, pageNumber, pageWidth, pageHeight)
	}
	return blocks
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !isSpace(r) {
			n++
		}
	}
	return n
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
