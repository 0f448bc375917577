package epub

import (
	"fmt"
	"strings"

	"github.com/pagecast/pagecast/internal/structure"
)

// generateNavigation creates nav.xhtml. Entries come from the document's
// table of contents (heading blocks); a document without headings gets one
// entry per page so the nav is never empty.
func generateNavigation(doc *structure.DocumentStructure) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
  <title>Table of Contents</title>
  <link rel="stylesheet" type="text/css" href="css/style.css"/>
</head>
<body>
  <nav epub:type="toc" id="toc">
    <h1>Table of Contents</h1>
    <ol>
`)

	if len(doc.TableOfContents) > 0 {
		for _, entry := range doc.TableOfContents {
			href := structure.PageDocName(entry.PageNumber)
			if entry.BlockID != "" {
				href += "#" + entry.BlockID
			}
			sb.WriteString(fmt.Sprintf("      <li><a href=\"%s\">%s</a></li>\n",
				href, escapeXML(entry.Title)))
		}
	} else {
		for _, page := range doc.Pages {
			sb.WriteString(fmt.Sprintf("      <li><a href=\"%s\">Page %d</a></li>\n",
				structure.PageDocName(page.PageNumber), page.PageNumber))
		}
	}

	sb.WriteString(`    </ol>
  </nav>
  <nav epub:type="page-list" hidden="hidden">
    <ol>
`)
	for _, page := range doc.Pages {
		sb.WriteString(fmt.Sprintf("      <li><a href=\"%s\">%d</a></li>\n",
			structure.PageDocName(page.PageNumber), page.PageNumber))
	}
	sb.WriteString(`    </ol>
  </nav>
</body>
</html>
`)

	return sb.String()
}
