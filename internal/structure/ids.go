package structure

import "fmt"

// Block element ids are generated in exactly one place so the content
// documents and the sync documents can never drift apart. The id is a pure
// function of (page number, block type, reading order) and is URL-fragment
// safe.

var blockTypeCodes = map[BlockType]string{
	BlockParagraph:    "par",
	BlockHeading:      "hd",
	BlockListItem:     "li",
	BlockCaption:      "cap",
	BlockGlossaryTerm: "gls",
	BlockHeader:       "hdr",
	BlockFooter:       "ftr",
	BlockFootnote:     "fn",
	BlockSidebar:      "sb",
}

// BlockID returns the stable element id for a block. Once assigned for a
// page the id must not change across stages: sync documents reference it.
func BlockID(pageNumber int, blockType BlockType, readingOrder int) string {
	code, ok := blockTypeCodes[blockType]
	if !ok {
		code = "blk"
	}
	return fmt.Sprintf("pg%04d_%s_%03d", pageNumber, code, readingOrder)
}

// ExcludedBlockID returns the id for a block outside the reading order
// (headers, footers). Such blocks carry their insertion index instead of a
// reading-order position.
func ExcludedBlockID(pageNumber int, blockType BlockType, insertionIndex int) string {
	code, ok := blockTypeCodes[blockType]
	if !ok {
		code = "blk"
	}
	return fmt.Sprintf("pg%04d_x%s_%03d", pageNumber, code, insertionIndex)
}

// SyncTargetID returns the element id a sync document must reference for a
// block. List items are rendered as <li> elements with a suffixed variant
// of the block id; everyone else is referenced directly. Both the XHTML
// generator and the SMIL generator go through this function.
func SyncTargetID(b *TextBlock) string {
	if b.Type == BlockListItem {
		return b.ID + "_li"
	}
	return b.ID
}

// PageImageID returns the manifest id for a page's rendered image.
func PageImageID(pageNumber int) string {
	return fmt.Sprintf("img_%04d", pageNumber)
}

// PageDocName returns the archive-relative file name of a page's content
// document.
func PageDocName(pageNumber int) string {
	return fmt.Sprintf("page_%04d.xhtml", pageNumber)
}

// PageSmilName returns the archive-relative file name of a page's sync
// document.
func PageSmilName(pageNumber int) string {
	return fmt.Sprintf("smil/page_%04d.smil", pageNumber)
}
