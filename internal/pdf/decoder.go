// Package pdf defines the narrow decoder boundary the pipeline consumes.
// The pipeline never touches PDF internals; it asks a Decoder for page
// geometry, any embedded text layer, and rendered page images.
package pdf

import (
	"context"

	"github.com/pagecast/pagecast/internal/structure"
)

// Decoder exposes one open source document to the pipeline.
//
// PositionedRuns returns the embedded text layer of a page as positioned
// runs in bottom-left-origin page coordinates; an empty result means the
// page has no usable text layer and must be treated as scanned. PageText
// returns the page's flat extracted text, used for coverage checks and as
// the last-resort fallback.
type Decoder interface {
	PageCount() int
	PageDimensions(page int) (width, height float64, err error)
	PositionedRuns(page int) ([]structure.PositionedRun, error)
	PageText(page int) (string, error)
	RenderPageImage(ctx context.Context, page int, outPath string) error
	Close() error
}

// Opener opens a source document for decoding. It exists so the pipeline
// can be driven by fakes in tests.
type Opener interface {
	Open(path string) (Decoder, error)
}
