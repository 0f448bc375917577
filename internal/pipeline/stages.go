package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pagecast/pagecast/internal/classify"
	"github.com/pagecast/pagecast/internal/epub"
	"github.com/pagecast/pagecast/internal/geometry"
	"github.com/pagecast/pagecast/internal/layout"
	"github.com/pagecast/pagecast/internal/ocr"
	"github.com/pagecast/pagecast/internal/structure"
)

// classifySource opens the source document and builds the initial page
// skeleton: dimensions plus the scanned/digital split. A source that cannot
// be decoded fails the job immediately.
func (o *Orchestrator) classifySource(ctx context.Context, rt *jobRuntime, _ *structure.DocumentStructure) (*structure.DocumentStructure, error) {
	dec, err := o.opener.Open(rt.sourcePath)
	if err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	rt.decoder = dec

	doc := &structure.DocumentStructure{
		Metadata: structure.Metadata{
			Title:     titleFromPath(rt.sourcePath),
			Language:  "en",
			PageCount: dec.PageCount(),
		},
	}

	for i := 1; i <= dec.PageCount(); i++ {
		width, height, err := dec.PageDimensions(i)
		if err != nil {
			return nil, fmt.Errorf("page %d dimensions: %w", i, err)
		}

		runs, err := dec.PositionedRuns(i)
		if err != nil {
			rt.logger.Warn("text layer unreadable, treating page as scanned", "page", i, "error", err)
		}
		raw, _ := dec.PageText(i)

		doc.Pages = append(doc.Pages, &structure.PageStructure{
			PageNumber: i,
			Width:      width,
			Height:     height,
			IsScanned:  len(runs) == 0 && strings.TrimSpace(raw) == "",
			RawText:    raw,
		})
	}

	return doc, nil
}

// extractText populates each page's text blocks: clustering the embedded
// text layer for digital pages, OCR with the consecutive-failure fallback
// policy for scanned ones. Every page also gets its rendered image for the
// fixed-layout output.
func (o *Orchestrator) extractText(ctx context.Context, rt *jobRuntime, doc *structure.DocumentStructure) (*structure.DocumentStructure, error) {
	out := doc.Clone()

	if err := os.MkdirAll(rt.pagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pages directory: %w", err)
	}

	for _, page := range out.Pages {
		imgPath := filepath.Join(rt.pagesDir, fmt.Sprintf("page_%04d.png", page.PageNumber))
		if err := rt.decoder.RenderPageImage(ctx, page.PageNumber, imgPath); err != nil {
			rt.logger.Warn("page render failed", "page", page.PageNumber, "error", err)
		} else {
			page.ImagePath = imgPath
		}

		if page.IsScanned {
			o.extractScannedPage(ctx, rt, page)
		} else {
			o.extractDigitalPage(rt, page)
		}

		if len(page.TextBlocks) == 0 {
			// The page proceeds with zero blocks; the job continues.
			rt.logger.Warn("no text blocks extracted", "page", page.PageNumber)
		}
	}

	return out, nil
}

func (o *Orchestrator) extractDigitalPage(rt *jobRuntime, page *structure.PageStructure) {
	runs, err := rt.decoder.PositionedRuns(page.PageNumber)
	if err != nil {
		rt.logger.Warn("positioned runs unreadable", "page", page.PageNumber, "error", err)
	}

	page.TextBlocks = geometry.ClusterPage(runs, page.RawText, page.PageNumber, page.Width, page.Height)
	if len(page.TextBlocks) == 0 && strings.TrimSpace(page.RawText) != "" {
		page.TextBlocks = geometry.FallbackBlocks(page.RawText, page.PageNumber, page.Width, page.Height)
	}
}

// extractScannedPage attempts OCR under the fallback policy: after three
// consecutive soft failures OCR is abandoned for the rest of the job and
// the remaining scanned pages keep their plain-text fallback.
func (o *Orchestrator) extractScannedPage(ctx context.Context, rt *jobRuntime, page *structure.PageStructure) {
	// Plain-text fallback, present regardless of what OCR does.
	if strings.TrimSpace(page.RawText) != "" {
		page.TextBlocks = geometry.FallbackBlocks(page.RawText, page.PageNumber, page.Width, page.Height)
	}

	if o.recognizer == nil || rt.ocrAbandoned {
		return
	}
	if page.ImagePath == "" {
		rt.ocrFailures++
		o.noteOCRFailure(rt, page.PageNumber, "no rendered image")
		return
	}

	image, err := os.ReadFile(page.ImagePath)
	if err != nil {
		rt.ocrFailures++
		o.noteOCRFailure(rt, page.PageNumber, err.Error())
		return
	}

	outcome := o.recognizer.RecognizePage(ctx, page.PageNumber, image)
	switch outcome.Kind {
	case ocr.OutcomeOK:
		rt.ocrFailures = 0
		page.OCRConfidence = outcome.Result.Confidence
		page.TextBlocks = geometry.FallbackBlocks(outcome.Result.Text, page.PageNumber, page.Width, page.Height)
		for _, b := range page.TextBlocks {
			b.Confidence = outcome.Result.Confidence
		}
	case ocr.OutcomeSoft:
		rt.ocrFailures++
		o.noteOCRFailure(rt, page.PageNumber, outcome.Reason)
	case ocr.OutcomeFatal:
		// Cancellation; the between-stage check will observe it.
		rt.logger.Warn("ocr aborted", "page", page.PageNumber, "error", outcome.Err)
	}
}

func (o *Orchestrator) noteOCRFailure(rt *jobRuntime, pageNumber int, reason string) {
	rt.logger.Warn("ocr failure", "page", pageNumber, "consecutive", rt.ocrFailures, "reason", reason)
	if rt.ocrFailures >= maxConsecutiveOCRFailures && !rt.ocrAbandoned {
		rt.ocrAbandoned = true
		rt.logger.Warn("ocr abandoned for remaining scanned pages",
			"threshold", maxConsecutiveOCRFailures)
	}
}

// analyzeLayout resolves each page's reading order and spread flag.
func (o *Orchestrator) analyzeLayout(ctx context.Context, rt *jobRuntime, doc *structure.DocumentStructure) (*structure.DocumentStructure, error) {
	out := doc.Clone()
	for _, page := range out.Pages {
		layout.ResolvePage(page)
	}
	return out, nil
}

// structureSemantics classifies blocks, suppresses running headers and
// footers, renumbers the reading order and assigns the stable block ids
// that the content and sync documents will both reference. Ids are
// assigned here exactly once and never change afterwards.
func (o *Orchestrator) structureSemantics(ctx context.Context, rt *jobRuntime, doc *structure.DocumentStructure) (*structure.DocumentStructure, error) {
	out := doc.Clone()
	c := o.classifier()

	for _, page := range out.Pages {
		for _, b := range page.TextBlocks {
			c.Classify(ctx, b)
		}
		classify.SuppressHeaderFooter(page)
		// Renumber so excluded blocks do not shift the remaining order.
		layout.ResolvePage(page)

		for i, b := range page.TextBlocks {
			if b.ExcludeFromReadingOrder {
				b.ID = structure.ExcludedBlockID(page.PageNumber, b.Type, i)
			} else {
				b.ID = structure.BlockID(page.PageNumber, b.Type, b.ReadingOrder)
			}
		}
	}

	out.TableOfContents = buildTOC(out)
	for _, page := range out.Pages {
		for _, b := range page.TextBlocks {
			if b.Type == structure.BlockGlossaryTerm {
				out.SemanticBlocks = append(out.SemanticBlocks, b.Clone())
			}
		}
	}

	return out, nil
}

// buildTOC derives navigation entries from level-1 and level-2 headings.
func buildTOC(doc *structure.DocumentStructure) []structure.TOCEntry {
	var toc []structure.TOCEntry
	for _, page := range doc.Pages {
		for _, b := range page.BlocksInReadingOrder() {
			if b.Type != structure.BlockHeading || b.HeadingLevel > 2 {
				continue
			}
			toc = append(toc, structure.TOCEntry{
				Title:      b.Text,
				PageNumber: page.PageNumber,
				BlockID:    b.ID,
				Level:      b.HeadingLevel,
			})
		}
	}
	return toc
}

// enrichAccessibility fills in alt text for image regions and the word and
// sentence segmentation that read-aloud consumers use.
func (o *Orchestrator) enrichAccessibility(ctx context.Context, rt *jobRuntime, doc *structure.DocumentStructure) (*structure.DocumentStructure, error) {
	out := doc.Clone()

	for _, page := range out.Pages {
		for _, img := range page.ImageBlocks {
			if img.AltText == "" {
				img.AltText = fmt.Sprintf("Illustration on page %d", page.PageNumber)
			}
		}
		for _, b := range page.TextBlocks {
			if b.ExcludeFromReadingOrder || strings.TrimSpace(b.Text) == "" {
				continue
			}
			b.Words = strings.Fields(b.Text)
			b.Sentences = splitSentences(b.Text)
		}
	}

	return out, nil
}

var sentenceBoundaryRe = regexp.MustCompile(`([.!?]["')\]]?)\s+`)

// splitSentences breaks text on terminal punctuation followed by space.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceBoundaryRe.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cleanupContent sanitizes block text and, when the AI service is
// available, corrects low-confidence OCR output. Correction is best
// effort: rejection or failure keeps the original text.
func (o *Orchestrator) cleanupContent(ctx context.Context, rt *jobRuntime, doc *structure.DocumentStructure) (*structure.DocumentStructure, error) {
	out := doc.Clone()

	for _, page := range out.Pages {
		for _, b := range page.TextBlocks {
			b.Text = epub.SanitizeText(b.Text)

			if !o.aiService.Enabled() || b.Confidence <= 0 || b.Confidence >= 0.7 {
				continue
			}
			corrected, err := o.aiService.CorrectText(ctx, b.Text)
			if err != nil {
				rt.logger.Debug("text correction skipped", "block", b.ID, "error", err)
				continue
			}
			b.Text = corrected
		}
	}

	return out, nil
}

var (
	equationRe = regexp.MustCompile(`\d\s*[=+×÷*/^-]\s*\d|[∑∫√±≤≥≠]`)
	tableRowRe = regexp.MustCompile(`\S(\t+|\s{3,})\S`)
)

// detectSpecialContent flags equations and tabular regions so downstream
// review knows which pages need manual attention.
func (o *Orchestrator) detectSpecialContent(ctx context.Context, rt *jobRuntime, doc *structure.DocumentStructure) (*structure.DocumentStructure, error) {
	out := doc.Clone()

	for _, page := range out.Pages {
		for _, b := range page.TextBlocks {
			if b.ExcludeFromReadingOrder {
				continue
			}
			if equationRe.MatchString(b.Text) {
				out.Equations = append(out.Equations, &structure.Equation{
					PageNumber: page.PageNumber,
					BlockID:    b.ID,
					Text:       b.Text,
				})
			}
			if lines := strings.Split(b.Text, "\n"); len(lines) >= 2 {
				rows := 0
				for _, line := range lines {
					if tableRowRe.MatchString(line) {
						rows++
					}
				}
				if rows >= 2 {
					out.Tables = append(out.Tables, &structure.Table{
						PageNumber: page.PageNumber,
						BlockID:    b.ID,
						Rows:       lines,
					})
				}
			}
		}
	}

	return out, nil
}

// generateEpub packages the document. Packaging failure is fatal for the
// job and leaves no partial archive behind.
func (o *Orchestrator) generateEpub(ctx context.Context, rt *jobRuntime, doc *structure.DocumentStructure) (*structure.DocumentStructure, error) {
	builder := epub.NewBuilder(doc, rt.syncs, rt.logger)
	if err := builder.Build(rt.epubPath); err != nil {
		return nil, fmt.Errorf("package archive: %w", err)
	}
	return doc.Clone(), nil
}

// reviewQuality is the final pass over the finished document. It only
// observes; the completion event carries the computed confidence.
func (o *Orchestrator) reviewQuality(ctx context.Context, rt *jobRuntime, doc *structure.DocumentStructure) (*structure.DocumentStructure, error) {
	blocks := 0
	for _, page := range doc.Pages {
		blocks += len(page.TextBlocks)
	}
	rt.logger.Info("quality review",
		"pages", len(doc.Pages),
		"blocks", blocks,
		"toc_entries", len(doc.TableOfContents),
		"equations", len(doc.Equations),
		"tables", len(doc.Tables),
		"confidence", documentConfidence(doc))
	return doc.Clone(), nil
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.TrimSpace(name)
}
