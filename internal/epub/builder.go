// Package epub packages a processed document structure into a fixed-layout
// EPUB3 archive with an accessible text layer and optional media overlays.
package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pagecast/pagecast/internal/structure"
)

// Builder assembles the archive for one conversion job.
type Builder struct {
	doc    *structure.DocumentStructure
	syncs  []structure.AudioSync
	pubID  string
	logger *slog.Logger

	// computed per build
	units map[int][]TimedUnit
}

// NewBuilder creates a builder for a document. syncs may be empty; pages
// without timing data are packaged without overlays.
func NewBuilder(doc *structure.DocumentStructure, syncs []structure.AudioSync, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		doc:    doc,
		syncs:  syncs,
		pubID:  "urn:uuid:" + uuid.New().String(),
		logger: logger.With("component", "epub"),
	}
}

// Build writes the archive to outputPath. Packaging is all-or-nothing: the
// archive is assembled in a temporary file and renamed into place only on
// full success, so a half-written archive is never left at the target.
func (b *Builder) Build(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".epub-build-*")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()

	if err := b.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp archive: %w", err)
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// WriteTo writes the archive to a writer.
func (b *Builder) WriteTo(w io.Writer) error {
	b.units = make(map[int][]TimedUnit)
	for _, page := range b.doc.Pages {
		if units := PageTimedUnits(page, b.syncs); len(units) > 0 {
			b.units[page.PageNumber] = units
		}
	}

	zw := zip.NewWriter(w)
	defer zw.Close()

	// mimetype must be the first entry and stored uncompressed.
	if err := b.writeMimetype(zw); err != nil {
		return err
	}
	if err := b.writeContainer(zw); err != nil {
		return err
	}
	if err := writeEntry(zw, "OEBPS/content.opf", b.generatePackage()); err != nil {
		return err
	}
	if err := writeEntry(zw, "OEBPS/nav.xhtml", generateNavigation(b.doc)); err != nil {
		return err
	}
	if err := writeEntry(zw, "OEBPS/css/style.css", fixedLayoutStylesheet); err != nil {
		return err
	}

	for _, page := range b.doc.Pages {
		name := "OEBPS/" + structure.PageDocName(page.PageNumber)
		if err := writeEntry(zw, name, generatePageXHTML(page, b.doc.Metadata.Title)); err != nil {
			return fmt.Errorf("page %d content document: %w", page.PageNumber, err)
		}
	}

	if err := b.writePageImages(zw); err != nil {
		return err
	}
	if err := b.writeAudio(zw); err != nil {
		return err
	}

	for _, page := range b.doc.Pages {
		units, ok := b.units[page.PageNumber]
		if !ok {
			continue
		}
		name := "OEBPS/" + structure.PageSmilName(page.PageNumber)
		if err := writeEntry(zw, name, generateSMIL(page.PageNumber, units)); err != nil {
			return fmt.Errorf("page %d sync document: %w", page.PageNumber, err)
		}
	}

	return zw.Close()
}

func (b *Builder) writeMimetype(zw *zip.Writer) error {
	header := &zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create mimetype: %w", err)
	}
	_, err = w.Write([]byte("application/epub+zip"))
	return err
}

func (b *Builder) writeContainer(zw *zip.Writer) error {
	content := `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
	return writeEntry(zw, "META-INF/container.xml", content)
}

func (b *Builder) writePageImages(zw *zip.Writer) error {
	for _, page := range b.doc.Pages {
		if page.ImagePath == "" {
			continue
		}
		data, err := os.ReadFile(page.ImagePath)
		if err != nil {
			return fmt.Errorf("read page %d image: %w", page.PageNumber, err)
		}
		name := "OEBPS/image/" + filepath.Base(page.ImagePath)
		w, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// writeAudio copies each referenced audio file into the archive once.
// Audio is stored, not deflated.
func (b *Builder) writeAudio(zw *zip.Writer) error {
	written := make(map[string]bool)
	for _, s := range b.syncs {
		if s.AudioFile == "" || written[filepath.Base(s.AudioFile)] {
			continue
		}
		data, err := os.ReadFile(s.AudioFile)
		if err != nil {
			return fmt.Errorf("read audio file %s: %w", s.AudioFile, err)
		}
		base := filepath.Base(s.AudioFile)
		header := &zip.FileHeader{
			Name:   "OEBPS/audio/" + base,
			Method: zip.Store,
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("create audio entry %s: %w", base, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write audio entry %s: %w", base, err)
		}
		written[base] = true
	}
	return nil
}

// generatePackage creates the content.opf package document.
func (b *Builder) generatePackage() string {
	var sb strings.Builder

	hasImages := false
	for _, page := range b.doc.Pages {
		if page.ImagePath != "" {
			hasImages = true
			break
		}
	}

	totalDurationMS := 0
	for _, units := range b.units {
		totalDurationMS += pageDurationMS(units)
	}

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id" prefix="rendition: http://www.idpf.org/vocab/rendition/# media: http://www.idpf.org/epub/vocab/overlays/#">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)

	sb.WriteString(fmt.Sprintf("    <dc:identifier id=\"pub-id\">%s</dc:identifier>\n", b.pubID))
	title := b.doc.Metadata.Title
	if title == "" {
		title = "Untitled"
	}
	sb.WriteString(fmt.Sprintf("    <dc:title>%s</dc:title>\n", escapeXML(title)))
	if b.doc.Metadata.Author != "" {
		sb.WriteString(fmt.Sprintf("    <dc:creator>%s</dc:creator>\n", escapeXML(b.doc.Metadata.Author)))
	}

	lang := b.doc.Metadata.Language
	if lang == "" {
		lang = "en"
	}
	sb.WriteString(fmt.Sprintf("    <dc:language>%s</dc:language>\n", lang))
	if b.doc.Metadata.Publisher != "" {
		sb.WriteString(fmt.Sprintf("    <dc:publisher>%s</dc:publisher>\n", escapeXML(b.doc.Metadata.Publisher)))
	}

	sb.WriteString(fmt.Sprintf("    <meta property=\"dcterms:modified\">%s</meta>\n",
		time.Now().UTC().Format("2006-01-02T15:04:05Z")))

	// Accessibility metadata for the text layer.
	sb.WriteString("    <meta property=\"schema:accessMode\">textual</meta>\n")
	sb.WriteString("    <meta property=\"schema:accessMode\">visual</meta>\n")
	sb.WriteString("    <meta property=\"schema:accessibilityFeature\">alternativeText</meta>\n")

	if hasImages {
		sb.WriteString("    <meta property=\"rendition:layout\">pre-paginated</meta>\n")
		sb.WriteString("    <meta property=\"rendition:orientation\">auto</meta>\n")
		sb.WriteString("    <meta property=\"rendition:spread\">auto</meta>\n")
	}

	if totalDurationMS > 0 {
		sb.WriteString(fmt.Sprintf("    <meta property=\"media:duration\">%s</meta>\n",
			formatClockTime(totalDurationMS)))
		sb.WriteString("    <meta property=\"media:active-class\">-epub-media-overlay-active</meta>\n")
	}

	sb.WriteString("  </metadata>\n\n")

	sb.WriteString("  <manifest>\n")
	sb.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	sb.WriteString("    <item id=\"style\" href=\"css/style.css\" media-type=\"text/css\"/>\n")

	for _, page := range b.doc.Pages {
		id := pageDocID(page.PageNumber)
		if _, hasAudio := b.units[page.PageNumber]; hasAudio {
			sb.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"%s\" media-type=\"application/xhtml+xml\" media-overlay=\"%s_overlay\"/>\n",
				id, structure.PageDocName(page.PageNumber), id))
		} else {
			sb.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"%s\" media-type=\"application/xhtml+xml\"/>\n",
				id, structure.PageDocName(page.PageNumber)))
		}
	}

	// The first page image doubles as the cover.
	coverSet := false
	for _, page := range b.doc.Pages {
		if page.ImagePath == "" {
			continue
		}
		props := ""
		if !coverSet {
			props = " properties=\"cover-image\""
			coverSet = true
		}
		sb.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"image/%s\" media-type=\"%s\"%s/>\n",
			structure.PageImageID(page.PageNumber), filepath.Base(page.ImagePath), imageMediaType(page.ImagePath), props))
	}

	for _, page := range b.doc.Pages {
		units, ok := b.units[page.PageNumber]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("    <item id=\"%s_overlay\" href=\"%s\" media-type=\"application/smil+xml\" duration=\"%s\"/>\n",
			pageDocID(page.PageNumber), structure.PageSmilName(page.PageNumber), formatClockTime(pageDurationMS(units))))
	}

	audioSeen := make(map[string]bool)
	audioIdx := 0
	for _, s := range b.syncs {
		base := filepath.Base(s.AudioFile)
		if s.AudioFile == "" || audioSeen[base] {
			continue
		}
		audioIdx++
		sb.WriteString(fmt.Sprintf("    <item id=\"audio_%03d\" href=\"audio/%s\" media-type=\"audio/mpeg\"/>\n",
			audioIdx, base))
		audioSeen[base] = true
	}

	sb.WriteString("  </manifest>\n\n")

	sb.WriteString("  <spine>\n")
	for _, page := range b.doc.Pages {
		sb.WriteString(fmt.Sprintf("    <itemref idref=\"%s\"/>\n", pageDocID(page.PageNumber)))
	}
	sb.WriteString("  </spine>\n")

	sb.WriteString("</package>\n")
	return sb.String()
}

func pageDocID(pageNumber int) string {
	return fmt.Sprintf("page_%04d", pageNumber)
}

func imageMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func writeEntry(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

const fixedLayoutStylesheet = `/* Fixed-layout page styling */

body {
  margin: 0;
  padding: 0;
}

.page-image {
  width: 100%;
  height: 100%;
  position: absolute;
  top: 0;
  left: 0;
  z-index: 0;
}

/* Visually hidden but exposed to assistive technology. */
.text-layer {
  position: absolute;
  top: 0;
  left: 0;
  width: 1px;
  height: 1px;
  overflow: hidden;
  clip: rect(0 0 0 0);
  white-space: nowrap;
}

.caption {
  font-style: italic;
}

/* Media Overlay active text highlighting */
.-epub-media-overlay-active {
  background-color: #ffffcc;
}
`
