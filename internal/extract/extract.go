// Package extract converts uploaded course documents into plain text with
// positional metadata (page or slide numbers). The rest of the pipeline only
// ever sees the extracted text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when a document extension is not one of
// the accepted types. Fatal to the call that supplied the document.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Page is one PDF page's extracted text. Numbers start at 1.
type Page struct {
	Number int
	Text   string
}

// Slide is one deck slide's extracted text: the concatenation of all visible
// shape text, plus any speaker notes. Numbers start at 1.
type Slide struct {
	Number int
	Text   string
	Notes  string
}

// Content renders the slide the way it is indexed and shown to the learner:
// a slide header, the shape text, and a trailing notes section when present.
func (s Slide) Content() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n--- Slide %d ---\n", s.Number)
	if s.Text != "" {
		b.WriteString(s.Text)
		if !strings.HasSuffix(s.Text, "\n") {
			b.WriteString("\n")
		}
	}
	if strings.TrimSpace(s.Notes) != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", s.Notes)
	}
	return b.String()
}

// TestText extracts the full text of a practice test document, returning the
// text and a unit count (pages or slides) used for time estimation. Only PDF
// and PPTX tests are accepted.
func TestText(path string) (string, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err := PDFPages(path)
		if err != nil {
			return "", 0, err
		}
		var b strings.Builder
		for _, p := range pages {
			fmt.Fprintf(&b, "\n--- Page %d ---\n", p.Number)
			b.WriteString(p.Text)
		}
		return b.String(), len(pages), nil
	case ".pptx":
		slides, err := PPTXSlides(path)
		if err != nil {
			return "", 0, err
		}
		var b strings.Builder
		for _, s := range slides {
			b.WriteString(s.Content())
		}
		return b.String(), len(slides), nil
	default:
		return "", 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// UnitCount returns the page or slide count without extracting any text.
// Cheap enough to run up front for time estimates.
func UnitCount(path string) (int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfPageCount(path)
	case ".pptx":
		return pptxSlideCount(path)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}
