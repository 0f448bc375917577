package epub

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pagecast/pagecast/internal/structure"
)

// generatePageXHTML creates one fixed-layout content document. The page is
// a fixed-size canvas showing the rendered page image; underneath sits a
// visually hidden text layer, in reading order, that screen readers and
// media overlays address by block id.
func generatePageXHTML(page *structure.PageStructure, title string) string {
	var sb strings.Builder

	width := int(page.Width)
	height := int(page.Height)
	if width <= 0 {
		width = 612
	}
	if height <= 0 {
		height = 792
	}

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
  <title>`)
	sb.WriteString(escapeXML(fmt.Sprintf("%s - Page %d", title, page.PageNumber)))
	sb.WriteString(`</title>
  <meta name="viewport" content="width=`)
	sb.WriteString(fmt.Sprintf("%d, height=%d", width, height))
	sb.WriteString(`"/>
  <link rel="stylesheet" type="text/css" href="css/style.css"/>
</head>
<body>
`)

	if page.ImagePath != "" {
		sb.WriteString(fmt.Sprintf("  <img class=\"page-image\" src=\"image/%s\" alt=\"Page %d\"/>\n",
			filepath.Base(page.ImagePath), page.PageNumber))
	}

	sb.WriteString("  <div class=\"text-layer\">\n")
	writeTextLayer(&sb, page)
	sb.WriteString("  </div>\n")

	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

// writeTextLayer renders the page's text-layer blocks. Consecutive list
// items share one list element; every other block type maps to a single
// element carrying the block id.
func writeTextLayer(sb *strings.Builder, page *structure.PageStructure) {
	blocks := TextLayerBlocks(page)

	inList := false
	closeList := func() {
		if inList {
			sb.WriteString("    </ul>\n")
			inList = false
		}
	}

	for _, b := range blocks {
		text := escapeXML(SanitizeText(b.Text))

		if b.Type == structure.BlockListItem {
			if !inList {
				sb.WriteString("    <ul>\n")
				inList = true
			}
			sb.WriteString(fmt.Sprintf("      <li id=\"%s\">%s</li>\n", structure.SyncTargetID(b), text))
			continue
		}
		closeList()

		switch b.Type {
		case structure.BlockHeading:
			level := b.HeadingLevel
			if level < 1 || level > 6 {
				level = 1
			}
			sb.WriteString(fmt.Sprintf("    <h%d id=\"%s\">%s</h%d>\n", level, b.ID, text, level))
		case structure.BlockCaption:
			sb.WriteString(fmt.Sprintf("    <p id=\"%s\" class=\"caption\">%s</p>\n", b.ID, text))
		case structure.BlockGlossaryTerm:
			sb.WriteString(fmt.Sprintf("    <p id=\"%s\" class=\"glossary-term\">%s</p>\n", b.ID, text))
		default:
			sb.WriteString(fmt.Sprintf("    <p id=\"%s\">%s</p>\n", b.ID, text))
		}
	}
	closeList()
}

// escapeXML escapes special XML characters.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
