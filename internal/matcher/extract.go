// Package matcher scores resume text against a job description and pulls
// plain text out of uploaded resume documents.
package matcher

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDOC  = "application/msword"
)

var (
	ErrNoText      = errors.New("no text content found")
	xmlTag         = regexp.MustCompile(`<[^>]+>`)
	docxParagraphs = regexp.MustCompile(`</w:p>`)
)

// ExtractText returns the plain text of a PDF or Word document.
func ExtractText(mimeType string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch mimeType {
	case mimePDF:
		text, err = pdfText(data)
	case mimeDOCX:
		text, err = docxText(data)
	case mimeDOC:
		// legacy binary format: keep the printable runs
		text = printable(data)
	default:
		return "", fmt.Errorf("unsupported document type %q", mimeType)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// skip unreadable pages
			continue
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		if err != nil {
			return "", err
		}
		withBreaks := docxParagraphs.ReplaceAllString(string(raw), "\n")
		return xmlTag.ReplaceAllString(withBreaks, " "), nil
	}
	return "", errors.New("DOCX has no document body")
}

func printable(data []byte) string {
	var b strings.Builder
	run := 0
	for _, c := range data {
		if c >= 0x20 && c < 0x7f {
			b.WriteByte(c)
			run++
			continue
		}
		if run > 0 {
			b.WriteByte(' ')
			run = 0
		}
	}
	return b.String()
}

// HasEmbeddedImage reports whether a document carries any image, which the
// analyzer treats as a profile photo.
func HasEmbeddedImage(mimeType string, data []byte) bool {
	switch mimeType {
	case mimePDF:
		return bytes.Contains(data, []byte("/Subtype/Image")) || bytes.Contains(data, []byte("/Subtype /Image"))
	case mimeDOCX:
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return false
		}
		for _, f := range zr.File {
			if strings.HasPrefix(f.Name, "word/media/") {
				return true
			}
		}
	}
	return false
}
