package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pagecast/pagecast/internal/structure"
)

// renderDPI matches reasonable quality for OCR.
const renderDPI = "300"

// File is the pdfcpu-backed decoder. pdfcpu validates the document and
// reports page geometry; page rendering goes through pdftoppm
// (poppler-utils), which renders pages correctly where image-object
// extraction does not.
//
// This backend exposes no embedded text layer, so every page takes the
// scanned path. Decoders for born-digital sources implement PositionedRuns
// with real glyph positions.
type File struct {
	path      string
	pageCount int
	dims      []dim
}

type dim struct{ width, height float64 }

// FileOpener opens PDFs with the pdfcpu backend.
type FileOpener struct{}

func (FileOpener) Open(path string) (Decoder, error) { return Open(path) }

// Open validates the document and reads its page geometry. A document
// that fails relaxed validation is unreadable and the job cannot proceed.
func Open(path string) (*File, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ValidateFile(path, conf); err != nil {
		return nil, fmt.Errorf("validate %s: %w", filepath.Base(path), err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	pageCount, err := api.PageCount(f, conf)
	if err != nil {
		return nil, fmt.Errorf("page count for %s: %w", filepath.Base(path), err)
	}

	pageDims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, fmt.Errorf("page dimensions for %s: %w", filepath.Base(path), err)
	}

	dims := make([]dim, 0, len(pageDims))
	for _, d := range pageDims {
		dims = append(dims, dim{width: d.Width, height: d.Height})
	}

	return &File{path: path, pageCount: pageCount, dims: dims}, nil
}

func (f *File) PageCount() int { return f.pageCount }

// PageDimensions returns the page size in points. Pages are 1-indexed.
func (f *File) PageDimensions(page int) (float64, float64, error) {
	if page < 1 || page > len(f.dims) {
		return 0, 0, fmt.Errorf("page %d out of range 1..%d", page, len(f.dims))
	}
	d := f.dims[page-1]
	return d.width, d.height, nil
}

// PositionedRuns always reports an empty text layer for this backend.
func (f *File) PositionedRuns(page int) ([]structure.PositionedRun, error) {
	return nil, nil
}

// PageText always reports no flat text for this backend.
func (f *File) PageText(page int) (string, error) {
	return "", nil
}

// RenderPageImage renders one page to a PNG at outPath via pdftoppm.
func (f *File) RenderPageImage(ctx context.Context, page int, outPath string) error {
	if page < 1 || page > f.pageCount {
		return fmt.Errorf("page %d out of range 1..%d", page, f.pageCount)
	}

	tmpDir, err := os.MkdirTemp("", "pagecast-page-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := fmt.Sprintf("%d", page)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", renderDPI,
		"-singlefile",
		f.path,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read rendered image: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write page image: %w", err)
	}
	return nil
}

func (f *File) Close() error { return nil }
