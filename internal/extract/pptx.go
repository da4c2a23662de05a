package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	notesPartRe = regexp.MustCompile(`^ppt/notesSlides/notesSlide(\d+)\.xml$`)
)

// PPTXSlides extracts per-slide text from a PowerPoint file. A pptx is a zip
// archive; slide N lives at ppt/slides/slideN.xml and its speaker notes at
// ppt/notesSlides/notesSlideN.xml. Shape text is the concatenation of the
// slide's text runs in document order.
func PPTXSlides(path string) ([]Slide, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	defer zr.Close()
	return slidesFromZip(&zr.Reader)
}

// PPTXSlidesFromBytes parses an in-memory pptx archive.
func PPTXSlidesFromBytes(data []byte) ([]Slide, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	return slidesFromZip(zr)
}

func slidesFromZip(zr *zip.Reader) ([]Slide, error) {
	texts := map[int]string{}
	notes := map[int]string{}

	for _, file := range zr.File {
		if m := slidePartRe.FindStringSubmatch(file.Name); m != nil {
			num, _ := strconv.Atoi(m[1])
			text, err := partText(file)
			if err != nil {
				return nil, fmt.Errorf("slide %d: %w", num, err)
			}
			texts[num] = text
			continue
		}
		if m := notesPartRe.FindStringSubmatch(file.Name); m != nil {
			num, _ := strconv.Atoi(m[1])
			text, err := partText(file)
			if err != nil {
				return nil, fmt.Errorf("notes for slide %d: %w", num, err)
			}
			notes[num] = text
		}
	}

	numbers := make([]int, 0, len(texts))
	for num := range texts {
		numbers = append(numbers, num)
	}
	sort.Ints(numbers)

	slides := make([]Slide, 0, len(numbers))
	for _, num := range numbers {
		slides = append(slides, Slide{
			Number: num,
			Text:   texts[num],
			Notes:  strings.TrimSpace(notes[num]),
		})
	}
	return slides, nil
}

func pptxSlideCount(path string) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("open pptx: %w", err)
	}
	defer zr.Close()

	count := 0
	for _, file := range zr.File {
		if slidePartRe.MatchString(file.Name) {
			count++
		}
	}
	return count, nil
}

// partText pulls the text runs (<a:t> elements) out of one slide or notes
// XML part, inserting a newline at each paragraph boundary (</a:p>).
func partText(file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var b strings.Builder
	inRun := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inRun = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inRun = false
			}
			if t.Name.Local == "p" {
				b.WriteString("\n")
			}
		case xml.CharData:
			if inRun {
				b.Write(t)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
