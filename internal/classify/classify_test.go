package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/pagecast/pagecast/internal/layout"
	"github.com/pagecast/pagecast/internal/structure"
)

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantType  structure.BlockType
		wantLevel int
	}{
		{"bulleted list item", "• Horses eat grass", structure.BlockListItem, 0},
		{"dashed list item", "- second point", structure.BlockListItem, 0},
		{"numbered list item", "1. First item in the list", structure.BlockListItem, 0},
		{"lettered list item", "a) option one", structure.BlockListItem, 0},
		{"parenthesized number", "(2) another item", structure.BlockListItem, 0},
		{"all caps heading", "ALL ABOUT HORSES", structure.BlockHeading, 1},
		{"all caps too long", "THIS IS AN EXTREMELY LONG ALL UPPERCASE LINE THAT GOES ON AND ON WELL PAST THE ONE HUNDRED CHARACTER LIMIT FOR HEADINGS", structure.BlockParagraph, 0},
		{"short title case", "The Wild Horses", structure.BlockHeading, 1},
		{"longer title case", "A Comprehensive Guide To Modern Horse Care", structure.BlockHeading, 2},
		{"title case with period is not heading", "The Wild Horses.", structure.BlockParagraph, 0},
		{"chapter heading", "Chapter 3 rivers and streams", structure.BlockHeading, 1},
		{"sub numbered heading", "2.1 the upper valley region", structure.BlockHeading, 3},
		{"deep numbered heading", "2.1.4 soil composition details", structure.BlockHeading, 3},
		{"glossary term", "Mare: an adult female horse", structure.BlockGlossaryTerm, 0},
		{"plain paragraph", "the quick brown fox jumps over the lazy dog.", structure.BlockParagraph, 0},
		{"empty text", "", structure.BlockParagraph, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Heuristic(tc.text)
			if got.Type != tc.wantType {
				t.Errorf("type = %s, want %s", got.Type, tc.wantType)
			}
			if got.HeadingLevel != tc.wantLevel {
				t.Errorf("level = %d, want %d", got.HeadingLevel, tc.wantLevel)
			}
		})
	}
}

func TestHeuristicPrecedence(t *testing.T) {
	t.Run("list prefix beats numbered heading", func(t *testing.T) {
		// "1. ..." matches both the list rule and the numbered-heading
		// rule; the list rule runs first and wins.
		got := Heuristic("1. overview of the farm")
		if got.Type != structure.BlockListItem {
			t.Errorf("type = %s, want list_item", got.Type)
		}
	})

	t.Run("short all caps bullet is a list item", func(t *testing.T) {
		got := Heuristic("• NOTE")
		if got.Type != structure.BlockListItem {
			t.Errorf("type = %s, want list_item", got.Type)
		}
	})
}

type fakeExternal struct {
	answer  string
	err     error
	enabled bool
	calls   int
}

func (f *fakeExternal) ClassifyBlock(ctx context.Context, text string) (string, error) {
	f.calls++
	return f.answer, f.err
}

func (f *fakeExternal) Enabled() bool { return f.enabled }

func TestClassifierExternalOverride(t *testing.T) {
	t.Run("non-empty answer overrides heuristic", func(t *testing.T) {
		ext := &fakeExternal{answer: "caption", enabled: true}
		c := New(ext, nil)
		b := &structure.TextBlock{Text: "Figure 1 shows the result."}
		c.Classify(context.Background(), b)
		if b.Type != structure.BlockCaption {
			t.Errorf("type = %s, want caption", b.Type)
		}
	})

	t.Run("error keeps heuristic result", func(t *testing.T) {
		ext := &fakeExternal{err: errors.New("rate limited"), enabled: true}
		c := New(ext, nil)
		b := &structure.TextBlock{Text: "ALL ABOUT HORSES"}
		c.Classify(context.Background(), b)
		if b.Type != structure.BlockHeading || b.HeadingLevel != 1 {
			t.Errorf("got %s level %d, want heading level 1", b.Type, b.HeadingLevel)
		}
	})

	t.Run("empty answer keeps heuristic result", func(t *testing.T) {
		ext := &fakeExternal{answer: "", enabled: true}
		c := New(ext, nil)
		b := &structure.TextBlock{Text: "plain sentence here."}
		c.Classify(context.Background(), b)
		if b.Type != structure.BlockParagraph {
			t.Errorf("type = %s, want paragraph", b.Type)
		}
	})

	t.Run("disabled external is never consulted", func(t *testing.T) {
		ext := &fakeExternal{answer: "caption", enabled: false}
		c := New(ext, nil)
		b := &structure.TextBlock{Text: "some text"}
		c.Classify(context.Background(), b)
		if ext.calls != 0 {
			t.Errorf("external called %d times, want 0", ext.calls)
		}
	})
}

func TestSuppressHeaderFooter(t *testing.T) {
	const (
		pageW = 612.0
		pageH = 792.0
	)

	mk := func(text string, y, h float64) *structure.TextBlock {
		return &structure.TextBlock{
			Text: text,
			Type: structure.BlockParagraph,
			Bounds: &structure.BoundingBox{
				PageNumber: 1, X: 72, Y: y, Width: 200, Height: h,
			},
		}
	}

	t.Run("page number in footer band", func(t *testing.T) {
		page := &structure.PageStructure{PageNumber: 1, Width: pageW, Height: pageH,
			TextBlocks: []*structure.TextBlock{mk("42", 20, 12)}}
		SuppressHeaderFooter(page)
		b := page.TextBlocks[0]
		if !b.ExcludeFromReadingOrder || b.Type != structure.BlockFooter {
			t.Errorf("got %s excluded=%v, want excluded footer", b.Type, b.ExcludeFromReadingOrder)
		}
	})

	t.Run("running title in header band", func(t *testing.T) {
		page := &structure.PageStructure{PageNumber: 1, Width: pageW, Height: pageH,
			TextBlocks: []*structure.TextBlock{mk("All About Horses", 760, 12)}}
		SuppressHeaderFooter(page)
		b := page.TextBlocks[0]
		if !b.ExcludeFromReadingOrder || b.Type != structure.BlockHeader {
			t.Errorf("got %s excluded=%v, want excluded header", b.Type, b.ExcludeFromReadingOrder)
		}
	})

	t.Run("body text in margin band is kept", func(t *testing.T) {
		long := "This is a long closing sentence of the chapter that happens to sit low on the page."
		page := &structure.PageStructure{PageNumber: 1, Width: pageW, Height: pageH,
			TextBlocks: []*structure.TextBlock{mk(long, 20, 40)}}
		SuppressHeaderFooter(page)
		if page.TextBlocks[0].ExcludeFromReadingOrder {
			t.Error("real content wrongly suppressed")
		}
	})

	t.Run("mid page block never suppressed", func(t *testing.T) {
		page := &structure.PageStructure{PageNumber: 1, Width: pageW, Height: pageH,
			TextBlocks: []*structure.TextBlock{mk("7", 400, 12)}}
		SuppressHeaderFooter(page)
		if page.TextBlocks[0].ExcludeFromReadingOrder {
			t.Error("mid-page numeral wrongly suppressed")
		}
	})

	t.Run("suppression does not shift content numbering", func(t *testing.T) {
		header := mk("Page 9", 770, 12)
		body1 := mk("First paragraph of real content on this page.", 600, 40)
		body2 := mk("Second paragraph of real content follows it.", 500, 40)
		page := &structure.PageStructure{PageNumber: 1, Width: pageW, Height: pageH,
			TextBlocks: []*structure.TextBlock{header, body1, body2}}

		layout.ResolvePage(page)
		SuppressHeaderFooter(page)
		layout.ResolvePage(page)

		if body1.ReadingOrder != 1 || body2.ReadingOrder != 2 {
			t.Errorf("content order = %d,%d, want 1,2", body1.ReadingOrder, body2.ReadingOrder)
		}
		if header.ReadingOrder != 0 {
			t.Errorf("header order = %d, want 0", header.ReadingOrder)
		}
	})
}
