// Package layout assigns a deterministic reading order to a page's blocks
// and detects two-page-spread scans that need half-by-half ordering.
package layout

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pagecast/pagecast/internal/structure"
)

const (
	// folioBand is the fraction of page height from the physical bottom
	// in which candidate folio numbers are expected.
	folioBand = 0.15

	// spreadGapRatio is the center-gutter width (as a fraction of page
	// width) that signals two facing pages.
	spreadGapRatio = 0.10

	// spreadHalfShare is the minimum fraction of blocks each half must
	// hold for the population-based spread signal.
	spreadHalfShare = 0.20
)

var folioNumberRe = regexp.MustCompile(`^\d{1,2}$`)

// ResolvePage detects whether the page is a two-page spread, orders its
// blocks and assigns ReadingOrder 1..N over the non-excluded blocks.
// Excluded blocks keep ReadingOrder 0 and do not shift the numbering.
//
// The function is idempotent: calling it again after classification has
// marked header/footer blocks renumbers the remaining blocks in the same
// geometric order.
func ResolvePage(page *structure.PageStructure) {
	// Detection runs before ordering; the ordering strategy depends on it.
	page.IsTwoPageSpread = DetectSpread(page.TextBlocks, page.Width, page.Height)

	order := orderIndices(page)
	page.ReadingOrder = order

	next := 1
	for _, idx := range order {
		b := page.TextBlocks[idx]
		if b.ExcludeFromReadingOrder {
			b.ReadingOrder = 0
			continue
		}
		b.ReadingOrder = next
		next++
	}
}

// DetectSpread reports whether a page image contains two facing source
// pages side by side.
//
// Strong signal: two or more short numeric blocks sitting in the bottom
// 15% of the page, the usual position of folio numbers on facing pages.
// Weak signal: a wide empty gutter at the horizontal midpoint, or both
// halves holding a substantial share of the blocks. Weak signals only
// apply when no block crosses the midpoint.
func DetectSpread(blocks []*structure.TextBlock, pageWidth, pageHeight float64) bool {
	if pageWidth <= 0 || pageHeight <= 0 {
		return false
	}

	folios := 0
	for _, b := range blocks {
		if b.Bounds == nil {
			continue
		}
		if !folioNumberRe.MatchString(strings.TrimSpace(b.Text)) {
			continue
		}
		if b.Bounds.Top() < folioBand*pageHeight {
			folios++
		}
	}
	if folios >= 2 {
		return true
	}

	// Weak signals. A genuine spread scan has an empty gutter that no
	// block crosses, so any block straddling the midpoint rules them out.
	mid := pageWidth / 2
	var left, right []*structure.TextBlock
	for _, b := range blocks {
		if b.Bounds == nil {
			continue
		}
		switch {
		case b.Bounds.Right() <= mid:
			left = append(left, b)
		case b.Bounds.X >= mid:
			right = append(right, b)
		default:
			return false
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return false
	}

	maxLeftEdge := 0.0
	for _, b := range left {
		if b.Bounds.Right() > maxLeftEdge {
			maxLeftEdge = b.Bounds.Right()
		}
	}
	minRightEdge := pageWidth
	for _, b := range right {
		if b.Bounds.X < minRightEdge {
			minRightEdge = b.Bounds.X
		}
	}

	if minRightEdge-maxLeftEdge > spreadGapRatio*pageWidth {
		return true
	}

	partitioned := float64(len(left) + len(right))
	return float64(len(left)) >= spreadHalfShare*partitioned && float64(len(right)) >= spreadHalfShare*partitioned
}

// orderIndices returns the permutation of block indices in reading order.
// Blocks lacking coordinates sort last, in insertion order.
func orderIndices(page *structure.PageStructure) []int {
	var positioned, unpositioned []int
	for i, b := range page.TextBlocks {
		if b.Bounds == nil {
			unpositioned = append(unpositioned, i)
		} else {
			positioned = append(positioned, i)
		}
	}

	if page.IsTwoPageSpread {
		// Gutter-spanning blocks go to the half holding their center;
		// a center exactly on the midline stays left so a full-width
		// block never jumps ahead of the left half.
		mid := page.Width / 2
		var leftIdx, rightIdx []int
		for _, i := range positioned {
			if page.TextBlocks[i].Bounds.CenterX() <= mid {
				leftIdx = append(leftIdx, i)
			} else {
				rightIdx = append(rightIdx, i)
			}
		}
		sortTopDown(page, leftIdx)
		sortTopDown(page, rightIdx)
		out := append(leftIdx, rightIdx...)
		return append(out, unpositioned...)
	}

	sortTopDown(page, positioned)
	return append(positioned, unpositioned...)
}

// sortTopDown orders indices by top edge descending, then left edge
// ascending. The sort is stable so ties keep insertion order.
func sortTopDown(page *structure.PageStructure, idx []int) {
	sort.SliceStable(idx, func(a, b int) bool {
		ba, bb := page.TextBlocks[idx[a]].Bounds, page.TextBlocks[idx[b]].Bounds
		if ba.Top() != bb.Top() {
			return ba.Top() > bb.Top()
		}
		return ba.X < bb.X
	})
}
