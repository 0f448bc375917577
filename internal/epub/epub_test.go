package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/pagecast/pagecast/internal/structure"
)

// testDoc builds a two-page document with assigned ids and reading order.
func testDoc() *structure.DocumentStructure {
	p1b1 := &structure.TextBlock{
		ID: structure.BlockID(1, structure.BlockHeading, 1), Text: "ALL ABOUT HORSES",
		Type: structure.BlockHeading, HeadingLevel: 1, ReadingOrder: 1,
	}
	p1b2 := &structure.TextBlock{
		ID: structure.BlockID(1, structure.BlockParagraph, 2), Text: "Horses are large mammals.",
		Type: structure.BlockParagraph, ReadingOrder: 2,
	}
	p2b1 := &structure.TextBlock{
		ID: structure.BlockID(2, structure.BlockListItem, 1), Text: "They eat grass",
		Type: structure.BlockListItem, ReadingOrder: 1,
	}
	p2b2 := &structure.TextBlock{
		ID: structure.BlockID(2, structure.BlockListItem, 2), Text: "They run fast",
		Type: structure.BlockListItem, ReadingOrder: 2,
	}

	return &structure.DocumentStructure{
		Metadata: structure.Metadata{Title: "All About Horses", Author: "Jane Doe", PageCount: 2},
		Pages: []*structure.PageStructure{
			{
				PageNumber: 1, Width: 612, Height: 792,
				TextBlocks:   []*structure.TextBlock{p1b1, p1b2},
				ReadingOrder: []int{0, 1},
			},
			{
				PageNumber: 2, Width: 612, Height: 792,
				TextBlocks:   []*structure.TextBlock{p2b1, p2b2},
				ReadingOrder: []int{0, 1},
			},
		},
	}
}

func lineContaining(s, substr string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, substr) {
			return line
		}
	}
	return ""
}

func buildToZip(t *testing.T, b *Builder) *zip.Reader {
	t.Helper()
	var buf bytes.Buffer
	if err := b.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	return zr
}

func readEntry(t *testing.T, zr *zip.Reader, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("open %s: %v", name, err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read %s: %v", name, err)
			}
			return string(data)
		}
	}
	t.Fatalf("entry %s not found; have %v", name, entryNames(zr))
	return ""
}

func entryNames(zr *zip.Reader) []string {
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	return names
}

func TestArchiveLayout(t *testing.T) {
	b := NewBuilder(testDoc(), nil, nil)
	zr := buildToZip(t, b)

	t.Run("mimetype is first and stored", func(t *testing.T) {
		first := zr.File[0]
		if first.Name != "mimetype" {
			t.Errorf("first entry = %s, want mimetype", first.Name)
		}
		if first.Method != zip.Store {
			t.Errorf("mimetype method = %d, want Store", first.Method)
		}
		if got := readEntry(t, zr, "mimetype"); got != "application/epub+zip" {
			t.Errorf("mimetype content = %q", got)
		}
	})

	t.Run("container points to package document", func(t *testing.T) {
		container := readEntry(t, zr, "META-INF/container.xml")
		if !strings.Contains(container, `full-path="OEBPS/content.opf"`) {
			t.Error("container.xml missing rootfile path")
		}
	})

	t.Run("one content document per page", func(t *testing.T) {
		readEntry(t, zr, "OEBPS/page_0001.xhtml")
		readEntry(t, zr, "OEBPS/page_0002.xhtml")
	})

	t.Run("spine lists pages in order", func(t *testing.T) {
		opf := readEntry(t, zr, "OEBPS/content.opf")
		i1 := strings.Index(opf, `idref="page_0001"`)
		i2 := strings.Index(opf, `idref="page_0002"`)
		if i1 < 0 || i2 < 0 || i1 > i2 {
			t.Error("spine missing or out of order")
		}
	})

	t.Run("no smil without audio", func(t *testing.T) {
		for _, name := range entryNames(zr) {
			if strings.HasPrefix(name, "OEBPS/smil/") {
				t.Errorf("unexpected sync document %s", name)
			}
		}
	})
}

func TestPageXHTML(t *testing.T) {
	doc := testDoc()
	b := NewBuilder(doc, nil, nil)
	zr := buildToZip(t, b)

	t.Run("heading level and id", func(t *testing.T) {
		page1 := readEntry(t, zr, "OEBPS/page_0001.xhtml")
		if !strings.Contains(page1, `<h1 id="pg0001_hd_001">ALL ABOUT HORSES</h1>`) {
			t.Errorf("heading not rendered:\n%s", page1)
		}
		if !strings.Contains(page1, `<p id="pg0001_par_002">`) {
			t.Error("paragraph id missing")
		}
	})

	t.Run("list items use suffixed ids", func(t *testing.T) {
		page2 := readEntry(t, zr, "OEBPS/page_0002.xhtml")
		if !strings.Contains(page2, `<li id="pg0002_li_001_li">They eat grass</li>`) {
			t.Errorf("list item not rendered:\n%s", page2)
		}
		if strings.Count(page2, "<ul>") != 1 {
			t.Error("consecutive list items should share one list")
		}
	})
}

func TestIdentifierConsistency(t *testing.T) {
	dir := t.TempDir()
	audio1 := filepath.Join(dir, "page1.mp3")
	audio2 := filepath.Join(dir, "page2.mp3")
	for _, p := range []string{audio1, audio2} {
		if err := os.WriteFile(p, []byte("fake audio"), 0o644); err != nil {
			t.Fatalf("write audio fixture: %v", err)
		}
	}

	doc := testDoc()
	syncs := []structure.AudioSync{
		{PageNumber: 1, StartMS: 0, EndMS: 8000, AudioFile: audio1},
		{PageNumber: 2, StartMS: 0, EndMS: 6000, AudioFile: audio2},
	}
	b := NewBuilder(doc, syncs, nil)
	zr := buildToZip(t, b)

	// Every text anchor in every sync document must resolve to an element
	// id in the matching content document.
	anchorRe := regexp.MustCompile(`text src="\.\./(page_\d{4}\.xhtml)#([^"]+)"`)

	for _, page := range doc.Pages {
		smil := readEntry(t, zr, "OEBPS/"+structure.PageSmilName(page.PageNumber))
		xhtml := readEntry(t, zr, "OEBPS/"+structure.PageDocName(page.PageNumber))

		matches := anchorRe.FindAllStringSubmatch(smil, -1)
		if len(matches) == 0 {
			t.Fatalf("page %d sync document has no anchors", page.PageNumber)
		}
		for _, m := range matches {
			if m[1] != structure.PageDocName(page.PageNumber) {
				t.Errorf("anchor references %s, want %s", m[1], structure.PageDocName(page.PageNumber))
			}
			if !strings.Contains(xhtml, `id="`+m[2]+`"`) {
				t.Errorf("anchor #%s has no matching element id in content document", m[2])
			}
		}
	}
}

func TestPageTimedUnits(t *testing.T) {
	t.Run("page-level shares sum exactly", func(t *testing.T) {
		doc := testDoc()
		page := doc.Pages[0]
		// Four blocks so 10000ms does not divide evenly after the first
		// three equal shares.
		page.TextBlocks = append(page.TextBlocks,
			&structure.TextBlock{ID: structure.BlockID(1, structure.BlockParagraph, 3), Text: "Third block here.", Type: structure.BlockParagraph, ReadingOrder: 3},
			&structure.TextBlock{ID: structure.BlockID(1, structure.BlockParagraph, 4), Text: "Fourth block here.", Type: structure.BlockParagraph, ReadingOrder: 4},
		)
		page.ReadingOrder = []int{0, 1, 2, 3}

		syncs := []structure.AudioSync{{PageNumber: 1, StartMS: 0, EndMS: 10000, AudioFile: "p1.mp3"}}
		units := PageTimedUnits(page, syncs)
		if len(units) != 4 {
			t.Fatalf("got %d units, want 4", len(units))
		}

		sum := 0
		for _, u := range units {
			sum += u.EndMS - u.BeginMS
		}
		if sum != 10000 {
			t.Errorf("durations sum to %d, want exactly 10000", sum)
		}
		if units[3].EndMS != 10000 {
			t.Errorf("last unit ends at %d, want 10000", units[3].EndMS)
		}
		for i := 1; i < len(units); i++ {
			if units[i].BeginMS != units[i-1].EndMS {
				t.Errorf("unit %d begins at %d, previous ends at %d", i, units[i].BeginMS, units[i-1].EndMS)
			}
		}
	})

	t.Run("block-level ordered by reading order not start time", func(t *testing.T) {
		doc := testDoc()
		page := doc.Pages[0]
		// Timing data arrives with the second block first.
		syncs := []structure.AudioSync{
			{PageNumber: 1, BlockID: page.TextBlocks[1].ID, StartMS: 0, EndMS: 4000, AudioFile: "p1.mp3"},
			{PageNumber: 1, BlockID: page.TextBlocks[0].ID, StartMS: 4000, EndMS: 6000, AudioFile: "p1.mp3"},
		}
		units := PageTimedUnits(page, syncs)
		if len(units) != 2 {
			t.Fatalf("got %d units, want 2", len(units))
		}
		if units[0].TargetID != page.TextBlocks[0].ID {
			t.Errorf("first unit targets %s, want the reading-order-1 block", units[0].TargetID)
		}
	})

	t.Run("syncs on filtered blocks are dropped", func(t *testing.T) {
		// Footnotes never reach the content document, so a sync
		// addressing one must not produce a dangling anchor.
		para := &structure.TextBlock{
			ID: structure.BlockID(1, structure.BlockParagraph, 1), Text: "Body text paragraph.",
			Type: structure.BlockParagraph, ReadingOrder: 1,
		}
		note := &structure.TextBlock{
			ID: structure.BlockID(1, structure.BlockFootnote, 2), Text: "A footnote",
			Type: structure.BlockFootnote, ReadingOrder: 2,
		}
		page := &structure.PageStructure{
			PageNumber: 1, Width: 612, Height: 792,
			TextBlocks:   []*structure.TextBlock{para, note},
			ReadingOrder: []int{0, 1},
		}
		syncs := []structure.AudioSync{
			{PageNumber: 1, BlockID: para.ID, StartMS: 0, EndMS: 3000, AudioFile: "p1.mp3"},
			{PageNumber: 1, BlockID: note.ID, StartMS: 3000, EndMS: 5000, AudioFile: "p1.mp3"},
		}

		units := PageTimedUnits(page, syncs)
		if len(units) != 1 {
			t.Fatalf("got %d units, want 1", len(units))
		}
		xhtml := generatePageXHTML(page, "Test")
		for _, u := range units {
			if !strings.Contains(xhtml, `id="`+u.TargetID+`"`) {
				t.Errorf("sync anchor #%s has no matching element id in the content document", u.TargetID)
			}
		}
	})

	t.Run("unknown block ids are skipped", func(t *testing.T) {
		doc := testDoc()
		syncs := []structure.AudioSync{
			{PageNumber: 1, BlockID: "pg0001_par_999", StartMS: 0, EndMS: 1000, AudioFile: "p1.mp3"},
		}
		if units := PageTimedUnits(doc.Pages[0], syncs); len(units) != 0 {
			t.Errorf("got %d units for dangling block id, want 0", len(units))
		}
	})

	t.Run("no syncs yields no units", func(t *testing.T) {
		doc := testDoc()
		if units := PageTimedUnits(doc.Pages[0], nil); units != nil {
			t.Errorf("got %v, want nil", units)
		}
	})
}

func TestFormatClockTime(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, "00:00:00.000"},
		{1500, "00:00:01.500"},
		{61000, "00:01:01.000"},
		{3723456, "01:02:03.456"},
	}
	for _, tc := range tests {
		if got := formatClockTime(tc.ms); got != tc.want {
			t.Errorf("formatClockTime(%d) = %s, want %s", tc.ms, got, tc.want)
		}
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"control characters stripped", "hello\x00\x07world", "helloworld"},
		{"escape artifacts removed", `page \d+ of \[a-zA-Z]`, "page  of"},
		{"clean text untouched", "The horse ran.", "The horse ran."},
		{"newline and tab kept", "a\n\tb", "a\n\tb"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeText(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsDecorative(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"bare page number", "42", true},
		{"leader dots", "Chapter One ......... 7", true},
		{"low alnum density", "*** ~~~ === !!! ???", true},
		{"real sentence", "Horses eat grass all day.", false},
		{"empty", "   ", true},
		{"short punctuation kept", "Hi!", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDecorative(tc.in); got != tc.want {
				t.Errorf("IsDecorative(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestTextLayerBlocks(t *testing.T) {
	page := &structure.PageStructure{
		PageNumber: 1,
		TextBlocks: []*structure.TextBlock{
			{ID: "a", Text: "Real paragraph text.", Type: structure.BlockParagraph, ReadingOrder: 1},
			{ID: "b", Text: "A footnote", Type: structure.BlockFootnote, ReadingOrder: 2},
			{ID: "c", Text: "A sidebar", Type: structure.BlockSidebar, ReadingOrder: 3},
			{ID: "d", Text: "17", Type: structure.BlockParagraph, ReadingOrder: 4},
		},
		ReadingOrder: []int{0, 1, 2, 3},
	}

	blocks := TextLayerBlocks(page)
	if len(blocks) != 1 || blocks[0].ID != "a" {
		ids := make([]string, len(blocks))
		for i, b := range blocks {
			ids[i] = b.ID
		}
		t.Errorf("text layer = %v, want [a]", ids)
	}
}

func TestPackageMetadata(t *testing.T) {
	doc := testDoc()
	doc.Pages[0].ImagePath = "" // no images at all

	t.Run("reflowable without page images", func(t *testing.T) {
		b := NewBuilder(doc, nil, nil)
		zr := buildToZip(t, b)
		opf := readEntry(t, zr, "OEBPS/content.opf")
		if strings.Contains(opf, "pre-paginated") {
			t.Error("pre-paginated declared without page images")
		}
	})

	t.Run("first page image is the cover", func(t *testing.T) {
		withImages := testDoc()
		withImages.Pages[0].ImagePath = "/tmp/page_0001.png"
		withImages.Pages[1].ImagePath = "/tmp/page_0002.png"
		b := NewBuilder(withImages, nil, nil)
		opf := b.generatePackage()
		if strings.Count(opf, `properties="cover-image"`) != 1 {
			t.Errorf("expected exactly one cover-image item:\n%s", opf)
		}
		line := lineContaining(opf, `properties="cover-image"`)
		if !strings.Contains(line, `id="img_0001"`) {
			t.Errorf("cover-image not on the first page image item: %s", line)
		}
	})

	t.Run("media duration with audio", func(t *testing.T) {
		syncs := []structure.AudioSync{
			{PageNumber: 1, BlockID: doc.Pages[0].TextBlocks[0].ID, StartMS: 0, EndMS: 5000, AudioFile: "p1.mp3"},
		}
		b := NewBuilder(doc, syncs, nil)
		b.units = map[int][]TimedUnit{1: PageTimedUnits(doc.Pages[0], syncs)}
		opf := b.generatePackage()
		if !strings.Contains(opf, `media:duration">00:00:05.000`) {
			t.Errorf("media:duration missing:\n%s", opf)
		}
		if !strings.Contains(opf, `media-overlay="page_0001_overlay"`) {
			t.Error("media-overlay attribute missing")
		}
	})
}

func TestNavigation(t *testing.T) {
	t.Run("toc entries when present", func(t *testing.T) {
		doc := testDoc()
		doc.TableOfContents = []structure.TOCEntry{
			{Title: "All About Horses", PageNumber: 1, BlockID: "pg0001_hd_001", Level: 1},
		}
		nav := generateNavigation(doc)
		if !strings.Contains(nav, `href="page_0001.xhtml#pg0001_hd_001"`) {
			t.Errorf("toc entry missing:\n%s", nav)
		}
	})

	t.Run("per page fallback", func(t *testing.T) {
		nav := generateNavigation(testDoc())
		if !strings.Contains(nav, ">Page 1<") || !strings.Contains(nav, ">Page 2<") {
			t.Error("page fallback entries missing")
		}
	})
}
