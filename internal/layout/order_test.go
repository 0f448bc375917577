package layout

import (
	"testing"

	"github.com/pagecast/pagecast/internal/structure"
)

const (
	pageW = 612.0
	pageH = 792.0
)

func block(text string, x, y, w, h float64) *structure.TextBlock {
	return &structure.TextBlock{
		Text: text,
		Type: structure.BlockParagraph,
		Bounds: &structure.BoundingBox{
			PageNumber: 1, X: x, Y: y, Width: w, Height: h,
		},
	}
}

func TestDetectSpread(t *testing.T) {
	t.Run("folio numerals near page bottom", func(t *testing.T) {
		// Two 1-2 digit numerals inside the bottom 15% band.
		blocks := []*structure.TextBlock{
			block("10", 100, 20, 20, 12),
			block("11", 500, 20, 20, 12),
			block("Some body text spanning the middle of the page", 100, 400, 412, 12),
		}
		if !DetectSpread(blocks, pageW, pageH) {
			t.Error("expected spread from folio numerals")
		}
	})

	t.Run("single folio is not enough", func(t *testing.T) {
		blocks := []*structure.TextBlock{
			block("7", 300, 20, 15, 12),
			block("A full width paragraph of body text here", 72, 400, 468, 40),
		}
		if DetectSpread(blocks, pageW, pageH) {
			t.Error("one folio number should not trigger a spread")
		}
	})

	t.Run("wide gutter between halves", func(t *testing.T) {
		blocks := []*structure.TextBlock{
			block("left column text", 40, 600, 200, 40),
			block("more left text", 40, 500, 200, 40),
			block("right column text", 372, 600, 200, 40),
			block("more right text", 372, 500, 200, 40),
		}
		// Gutter: 240 .. 372 = 132pt > 10% of 612.
		if !DetectSpread(blocks, pageW, pageH) {
			t.Error("expected spread from center gutter")
		}
	})

	t.Run("single column page is not a spread", func(t *testing.T) {
		blocks := []*structure.TextBlock{
			block("A paragraph spanning most of the page width", 72, 650, 468, 40),
			block("Another paragraph spanning most of the width", 72, 560, 468, 40),
			block("And a third full width paragraph", 72, 470, 468, 40),
		}
		if DetectSpread(blocks, pageW, pageH) {
			t.Error("single column page wrongly detected as spread")
		}
	})

	t.Run("split line on a single column page", func(t *testing.T) {
		// One wrapped line leaves a short run on each side of the
		// midpoint; the surrounding full-width paragraphs cross it.
		blocks := []*structure.TextBlock{
			block("A full width opening paragraph here", 72, 700, 468, 20),
			block("short left run", 72, 400, 220, 20),
			block("short right run", 320, 400, 220, 20),
			block("A full width closing paragraph here", 72, 100, 468, 20),
		}
		if DetectSpread(blocks, pageW, pageH) {
			t.Error("split line wrongly detected as spread")
		}
	})

	t.Run("blocks without bounds are ignored", func(t *testing.T) {
		blocks := []*structure.TextBlock{
			{Text: "10"},
			{Text: "11"},
		}
		if DetectSpread(blocks, pageW, pageH) {
			t.Error("coordinate-less blocks must not trigger detection")
		}
	})
}

func TestResolvePage(t *testing.T) {
	t.Run("top to bottom left to right", func(t *testing.T) {
		page := &structure.PageStructure{
			PageNumber: 1, Width: pageW, Height: pageH,
			TextBlocks: []*structure.TextBlock{
				block("bottom", 72, 100, 468, 20),
				block("top", 72, 700, 468, 20),
				block("middle right", 320, 400, 220, 20),
				block("middle left", 72, 400, 220, 20),
			},
		}
		ResolvePage(page)

		want := []string{"top", "middle left", "middle right", "bottom"}
		for i, b := range page.BlocksInReadingOrder() {
			if b.Text != want[i] {
				t.Errorf("position %d = %q, want %q", i, b.Text, want[i])
			}
			if b.ReadingOrder != i+1 {
				t.Errorf("%q reading order = %d, want %d", b.Text, b.ReadingOrder, i+1)
			}
		}
	})

	t.Run("reading order is a permutation of 1..N", func(t *testing.T) {
		page := &structure.PageStructure{
			PageNumber: 1, Width: pageW, Height: pageH,
			TextBlocks: []*structure.TextBlock{
				block("a", 72, 700, 100, 12),
				block("b", 72, 650, 100, 12),
				block("c", 72, 600, 100, 12),
				block("d", 72, 550, 100, 12),
			},
		}
		ResolvePage(page)

		seen := map[int]bool{}
		for _, b := range page.TextBlocks {
			if b.ReadingOrder < 1 || b.ReadingOrder > len(page.TextBlocks) {
				t.Errorf("reading order %d out of range", b.ReadingOrder)
			}
			if seen[b.ReadingOrder] {
				t.Errorf("duplicate reading order %d", b.ReadingOrder)
			}
			seen[b.ReadingOrder] = true
		}
	})

	t.Run("spread orders left half before right half", func(t *testing.T) {
		page := &structure.PageStructure{
			PageNumber: 1, Width: pageW, Height: pageH,
			TextBlocks: []*structure.TextBlock{
				block("right top", 372, 700, 200, 20),
				block("left top", 40, 700, 200, 20),
				block("right bottom", 372, 100, 200, 20),
				block("left bottom", 40, 100, 200, 20),
				block("10", 100, 20, 20, 12),
				block("11", 500, 20, 20, 12),
			},
		}
		ResolvePage(page)

		if !page.IsTwoPageSpread {
			t.Fatal("expected two-page spread")
		}
		got := make([]string, 0, 6)
		for _, b := range page.BlocksInReadingOrder() {
			got = append(got, b.Text)
		}
		want := []string{"left top", "left bottom", "10", "right top", "right bottom", "11"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("order = %v, want %v", got, want)
			}
		}
	})

	t.Run("gutter spanning block joins the left half", func(t *testing.T) {
		page := &structure.PageStructure{
			PageNumber: 1, Width: pageW, Height: pageH,
			TextBlocks: []*structure.TextBlock{
				block("right top", 372, 700, 200, 20),
				block("left top", 40, 700, 200, 20),
				// Centered exactly on the midline (306).
				block("spanning caption", 206, 400, 200, 20),
				block("10", 100, 20, 20, 12),
				block("11", 500, 20, 20, 12),
			},
		}
		ResolvePage(page)

		if !page.IsTwoPageSpread {
			t.Fatal("expected two-page spread from folio numerals")
		}
		got := make([]string, 0, 5)
		for _, b := range page.BlocksInReadingOrder() {
			got = append(got, b.Text)
		}
		want := []string{"left top", "spanning caption", "10", "right top", "11"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("order = %v, want %v", got, want)
			}
		}
	})

	t.Run("excluded blocks do not shift numbering", func(t *testing.T) {
		header := block("Page 7", 72, 770, 100, 12)
		header.Type = structure.BlockHeader
		header.ExcludeFromReadingOrder = true

		page := &structure.PageStructure{
			PageNumber: 1, Width: pageW, Height: pageH,
			TextBlocks: []*structure.TextBlock{
				header,
				block("first real block", 72, 700, 468, 20),
				block("second real block", 72, 600, 468, 20),
			},
		}
		ResolvePage(page)

		if header.ReadingOrder != 0 {
			t.Errorf("excluded block reading order = %d, want 0", header.ReadingOrder)
		}
		ordered := page.BlocksInReadingOrder()
		if len(ordered) != 2 {
			t.Fatalf("got %d ordered blocks, want 2", len(ordered))
		}
		if ordered[0].ReadingOrder != 1 || ordered[1].ReadingOrder != 2 {
			t.Errorf("numbering shifted: %d, %d", ordered[0].ReadingOrder, ordered[1].ReadingOrder)
		}
	})

	t.Run("blocks without coordinates sort last", func(t *testing.T) {
		page := &structure.PageStructure{
			PageNumber: 1, Width: pageW, Height: pageH,
			TextBlocks: []*structure.TextBlock{
				{Text: "no coords"},
				block("positioned", 72, 700, 100, 12),
			},
		}
		ResolvePage(page)

		ordered := page.BlocksInReadingOrder()
		if ordered[len(ordered)-1].Text != "no coords" {
			t.Error("coordinate-less block should sort last")
		}
	})

	t.Run("idempotent after exclusion changes", func(t *testing.T) {
		page := &structure.PageStructure{
			PageNumber: 1, Width: pageW, Height: pageH,
			TextBlocks: []*structure.TextBlock{
				block("a", 72, 700, 100, 12),
				block("b", 72, 600, 100, 12),
				block("c", 72, 500, 100, 12),
			},
		}
		ResolvePage(page)
		// Classification later marks "b" as a header.
		page.TextBlocks[1].ExcludeFromReadingOrder = true
		ResolvePage(page)

		if page.TextBlocks[0].ReadingOrder != 1 {
			t.Errorf("a order = %d, want 1", page.TextBlocks[0].ReadingOrder)
		}
		if page.TextBlocks[1].ReadingOrder != 0 {
			t.Errorf("b order = %d, want 0", page.TextBlocks[1].ReadingOrder)
		}
		if page.TextBlocks[2].ReadingOrder != 2 {
			t.Errorf("c order = %d, want 2", page.TextBlocks[2].ReadingOrder)
		}
	})
}
