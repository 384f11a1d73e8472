// Package pdftext extracts plain text from PDF files one page at a time.
package pdftext

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document is the extracted text of a single PDF file.
type Document struct {
	// Filename is the base name of the source file (e.g. "manual.pdf").
	Filename string
	// Pages holds the text of each page in order. Pages without extractable
	// text are kept as empty strings so page numbers stay aligned.
	Pages []string
}

// Text returns the document text with pages joined by a single space.
func (d *Document) Text() string {
	return strings.Join(d.Pages, " ")
}

// Extract opens the PDF at path and returns its per-page text.
func Extract(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdftext: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("pdftext: stat %s: %w", path, err)
	}

	return ExtractReader(filepath.Base(path), f, info.Size())
}

// ExtractReader reads a PDF of the given size from r. name is recorded as
// the document filename.
func ExtractReader(name string, r io.ReaderAt, size int64) (*Document, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("pdftext: parse %s: %w", name, err)
	}

	n := reader.NumPage()
	doc := &Document{Filename: name, Pages: make([]string, 0, n)}
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, "")
			continue
		}
		// nil fonts makes the reader load the page's own font resources.
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("pdftext: %s page %d: %w", name, i, err)
		}
		doc.Pages = append(doc.Pages, text)
	}

	return doc, nil
}
