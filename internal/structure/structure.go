// Package structure defines the document model shared by every pipeline
// stage: positioned text runs, logical text blocks, per-page structure and
// the whole-document aggregate that gets snapshotted between stages.
package structure

import (
	"encoding/json"
	"fmt"
	"time"
)

// PositionedRun is one fragment of text as emitted by the PDF decoder.
// Coordinates are in page space: origin bottom-left, Y increases upward.
type PositionedRun struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontName string  `json:"font_name,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
	Bold     bool    `json:"bold,omitempty"`
	Italic   bool    `json:"italic,omitempty"`
}

// BoundingBox locates a block on a page, in points.
//
// Y is always the BOTTOM edge of the box (page origin is bottom-left).
// Callers that need a top-origin value must convert via Top() explicitly.
type BoundingBox struct {
	PageNumber int     `json:"page_number"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// Top returns the top edge of the box (Y + Height).
func (b BoundingBox) Top() float64 {
	return b.Y + b.Height
}

// Right returns the right edge of the box (X + Width).
func (b BoundingBox) Right() float64 {
	return b.X + b.Width
}

// CenterX returns the horizontal center of the box.
func (b BoundingBox) CenterX() float64 {
	return b.X + b.Width/2
}

// BlockType is the semantic classification of a text block.
type BlockType string

const (
	BlockParagraph    BlockType = "paragraph"
	BlockHeading      BlockType = "heading"
	BlockListItem     BlockType = "list_item"
	BlockCaption      BlockType = "caption"
	BlockGlossaryTerm BlockType = "glossary_term"
	BlockHeader       BlockType = "header"
	BlockFooter       BlockType = "footer"
	BlockFootnote     BlockType = "footnote"
	BlockSidebar      BlockType = "sidebar"
)

// TextBlock is one logical unit of page content. Blocks are owned by the
// page that contains them and are mutated in place by later stages
// (cleanup, classification) but never reparented. Once an ID is assigned
// it must not change: sync documents reference it.
type TextBlock struct {
	ID           string       `json:"id"`
	Text         string       `json:"text"`
	Type         BlockType    `json:"block_type"`
	HeadingLevel int          `json:"heading_level,omitempty"` // 1..6, 0 when not a heading
	ReadingOrder int          `json:"reading_order"`           // 1..N, 0 when excluded
	Bounds       *BoundingBox `json:"bounds,omitempty"`
	Confidence   float64      `json:"confidence,omitempty"`

	// ExcludeFromReadingOrder marks header/footer boilerplate that stays in
	// the block list for debugging but is omitted from the read-aloud flow.
	ExcludeFromReadingOrder bool `json:"exclude_from_reading_order,omitempty"`

	Words     []string `json:"words,omitempty"`
	Sentences []string `json:"sentences,omitempty"`
	Phrases   []string `json:"phrases,omitempty"`
}

// Clone returns a deep copy of the block.
func (b *TextBlock) Clone() *TextBlock {
	if b == nil {
		return nil
	}
	dup := *b
	if b.Bounds != nil {
		bb := *b.Bounds
		dup.Bounds = &bb
	}
	dup.Words = append([]string(nil), b.Words...)
	dup.Sentences = append([]string(nil), b.Sentences...)
	dup.Phrases = append([]string(nil), b.Phrases...)
	return &dup
}

// ImageBlock is a non-text region on a page (figure, scanned background).
type ImageBlock struct {
	ID      string      `json:"id"`
	Bounds  BoundingBox `json:"bounds"`
	Path    string      `json:"path,omitempty"` // rendered image on disk
	AltText string      `json:"alt_text,omitempty"`
}

// PageStructure holds everything extracted from one source page.
//
// TextBlocks ordering is insertion order, not reading order. Reading order
// is the derived permutation in ReadingOrder (indices into TextBlocks) and
// in each block's ReadingOrder field.
type PageStructure struct {
	PageNumber      int           `json:"page_number"`
	Width           float64       `json:"width"`
	Height          float64       `json:"height"`
	IsScanned       bool          `json:"is_scanned"`
	OCRConfidence   float64       `json:"ocr_confidence,omitempty"`
	TextBlocks      []*TextBlock  `json:"text_blocks"`
	ImageBlocks     []*ImageBlock `json:"image_blocks,omitempty"`
	ReadingOrder    []int         `json:"reading_order,omitempty"`
	IsTwoPageSpread bool          `json:"is_two_page_spread"`
	ImagePath       string        `json:"image_path,omitempty"` // rendered page image
	RawText         string        `json:"raw_text,omitempty"`   // flat extraction fallback source
}

// BlocksInReadingOrder returns non-excluded blocks sorted by their assigned
// reading order. Blocks without an assigned order are omitted.
func (p *PageStructure) BlocksInReadingOrder() []*TextBlock {
	ordered := make([]*TextBlock, 0, len(p.TextBlocks))
	for _, idx := range p.ReadingOrder {
		if idx < 0 || idx >= len(p.TextBlocks) {
			continue
		}
		b := p.TextBlocks[idx]
		if b.ExcludeFromReadingOrder {
			continue
		}
		ordered = append(ordered, b)
	}
	return ordered
}

// BlockByID returns the block with the given ID, or nil.
func (p *PageStructure) BlockByID(id string) *TextBlock {
	for _, b := range p.TextBlocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// Clone returns a deep copy of the page.
func (p *PageStructure) Clone() *PageStructure {
	if p == nil {
		return nil
	}
	dup := *p
	dup.TextBlocks = make([]*TextBlock, len(p.TextBlocks))
	for i, b := range p.TextBlocks {
		dup.TextBlocks[i] = b.Clone()
	}
	dup.ImageBlocks = make([]*ImageBlock, len(p.ImageBlocks))
	for i, ib := range p.ImageBlocks {
		c := *ib
		dup.ImageBlocks[i] = &c
	}
	dup.ReadingOrder = append([]int(nil), p.ReadingOrder...)
	return &dup
}

// Metadata describes the source document.
type Metadata struct {
	Title     string    `json:"title,omitempty"`
	Author    string    `json:"author,omitempty"`
	Language  string    `json:"language,omitempty"` // ISO 639-1, defaults to "en"
	Publisher string    `json:"publisher,omitempty"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// TOCEntry is one navigation entry derived from a heading block.
type TOCEntry struct {
	Title      string `json:"title"`
	PageNumber int    `json:"page_number"`
	BlockID    string `json:"block_id"`
	Level      int    `json:"level"`
}

// Equation is a detected mathematical expression.
type Equation struct {
	PageNumber int    `json:"page_number"`
	BlockID    string `json:"block_id"`
	Text       string `json:"text"`
}

// Table is a detected tabular region.
type Table struct {
	PageNumber int      `json:"page_number"`
	BlockID    string   `json:"block_id"`
	Rows       []string `json:"rows,omitempty"`
}

// DocumentStructure is the whole-document aggregate. It is owned by one
// conversion job, passed by reference through every stage, and replaced
// (not mutated destructively) by each stage's return value so the
// orchestrator can persist a snapshot after each stage.
type DocumentStructure struct {
	Metadata        Metadata         `json:"metadata"`
	Pages           []*PageStructure `json:"pages"`
	Equations       []*Equation      `json:"equations,omitempty"`
	Tables          []*Table         `json:"tables,omitempty"`
	SemanticBlocks  []*TextBlock     `json:"semantic_blocks,omitempty"`
	TableOfContents []TOCEntry       `json:"table_of_contents,omitempty"`
}

// Clone returns a deep copy, used by stages to return fresh values so
// snapshots and retries stay safe.
func (d *DocumentStructure) Clone() *DocumentStructure {
	if d == nil {
		return nil
	}
	dup := &DocumentStructure{Metadata: d.Metadata}
	dup.Pages = make([]*PageStructure, len(d.Pages))
	for i, p := range d.Pages {
		dup.Pages[i] = p.Clone()
	}
	for _, e := range d.Equations {
		c := *e
		dup.Equations = append(dup.Equations, &c)
	}
	for _, t := range d.Tables {
		c := *t
		c.Rows = append([]string(nil), t.Rows...)
		dup.Tables = append(dup.Tables, &c)
	}
	for _, b := range d.SemanticBlocks {
		dup.SemanticBlocks = append(dup.SemanticBlocks, b.Clone())
	}
	dup.TableOfContents = append([]TOCEntry(nil), d.TableOfContents...)
	return dup
}

// Page returns the page with the given 1-indexed page number, or nil.
func (d *DocumentStructure) Page(pageNumber int) *PageStructure {
	for _, p := range d.Pages {
		if p.PageNumber == pageNumber {
			return p
		}
	}
	return nil
}

// MarshalSnapshot serializes the structure for persistence.
func (d *DocumentStructure) MarshalSnapshot() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document structure: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot deserializes a persisted structure snapshot.
func UnmarshalSnapshot(data []byte) (*DocumentStructure, error) {
	var d DocumentStructure
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document structure: %w", err)
	}
	return &d, nil
}

// AudioSync maps an audio clip range onto a page or a single block.
// An empty BlockID means page-level sync: the range covers the whole page
// and is distributed proportionally across blocks at packaging time.
// Times are in milliseconds to keep proportional distribution exact.
type AudioSync struct {
	PageNumber int    `json:"page_number"`
	BlockID    string `json:"block_id,omitempty"`
	StartMS    int    `json:"start_ms"`
	EndMS      int    `json:"end_ms"`
	AudioFile  string `json:"audio_file"`
}

// DurationMS returns the clip length in milliseconds.
func (a AudioSync) DurationMS() int {
	return a.EndMS - a.StartMS
}
