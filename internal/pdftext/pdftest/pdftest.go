// Package pdftest builds small uncompressed PDF files for tests. Each page
// carries plain ASCII text set in Helvetica with WinAnsiEncoding, which is
// enough for the text extractor to recover the words unchanged.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// wordsPerLine bounds the length of a single text-show operation.
const wordsPerLine = 12

// Build returns the bytes of a PDF with one page per element of pages.
func Build(pages ...string) []byte {
	var objects []string

	// 1: catalog, 2: page tree, 3: font. Page k uses objects 4+2k and 5+2k.
	kids := make([]string, len(pages))
	for k := range pages {
		kids[k] = fmt.Sprintf("%d 0 R", 4+2*k)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for k, text := range pages {
		stream := contentStream(text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*k),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

// Write stores a PDF built from pages as dir/name and returns its path.
func Write(t testing.TB, dir, name string, pages ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(pages...), 0o644); err != nil {
		t.Fatalf("pdftest: write %s: %v", path, err)
	}
	return path
}

// contentStream renders text as a sequence of text lines.
func contentStream(text string) string {
	var sb strings.Builder
	sb.WriteString("BT\n/F1 12 Tf\n14 TL\n72 720 Td\n")
	words := strings.Fields(text)
	for start := 0; start < len(words); start += wordsPerLine {
		end := min(start+wordsPerLine, len(words))
		// Trailing space keeps words on adjacent lines apart in the extracted text.
		fmt.Fprintf(&sb, "(%s ) Tj\nT*\n", escape(strings.Join(words[start:end], " ")))
	}
	sb.WriteString("ET")
	return sb.String()
}

// escape quotes the characters that are special inside a PDF string literal.
func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
