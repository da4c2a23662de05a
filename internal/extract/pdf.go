package extract

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFPages extracts the plain text of every page in reading order. A page
// whose text cannot be decoded contributes an empty entry rather than
// failing the whole document.
func PDFPages(path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]Page, 0, total)
	for num := 1; num <= total; num++ {
		p := r.Page(num)
		if p.V.IsNull() {
			pages = append(pages, Page{Number: num})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			text = ""
		}
		pages = append(pages, Page{Number: num, Text: text})
	}
	return pages, nil
}

func pdfPageCount(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	return r.NumPage(), nil
}
