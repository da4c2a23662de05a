package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

const slideXMLTemplate = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree>BODY</p:spTree></p:cSld>
</p:sld>`

func slideXML(paragraphs ...string) string {
	var b strings.Builder
	for _, p := range paragraphs {
		b.WriteString("<p:sp><p:txBody><a:p><a:r><a:t>")
		b.WriteString(p)
		b.WriteString("</a:t></a:r></a:p></p:txBody></p:sp>")
	}
	return strings.Replace(slideXMLTemplate, "BODY", b.String(), 1)
}

func buildPPTX(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestPPTXSlidesFromBytes(t *testing.T) {
	data := buildPPTX(t, map[string]string{
		"ppt/slides/slide1.xml":           slideXML("Cell Structure", "Organelles overview"),
		"ppt/slides/slide2.xml":           slideXML("Mitochondria"),
		"ppt/notesSlides/notesSlide2.xml": slideXML("mention ATP yield"),
		"ppt/media/image1.png":            "not xml",
		"[Content_Types].xml":             "<Types/>",
	})

	slides, err := PPTXSlidesFromBytes(data)
	if err != nil {
		t.Fatalf("PPTXSlidesFromBytes: %v", err)
	}
	if len(slides) != 2 {
		t.Fatalf("got %d slides, want 2", len(slides))
	}

	if slides[0].Number != 1 || slides[1].Number != 2 {
		t.Errorf("slide numbers = %d, %d, want 1, 2", slides[0].Number, slides[1].Number)
	}
	if want := "Cell Structure\nOrganelles overview"; slides[0].Text != want {
		t.Errorf("slide 1 text = %q, want %q", slides[0].Text, want)
	}
	if slides[0].Notes != "" {
		t.Errorf("slide 1 notes = %q, want empty", slides[0].Notes)
	}
	if slides[1].Notes != "mention ATP yield" {
		t.Errorf("slide 2 notes = %q", slides[1].Notes)
	}
}

func TestPPTXSlidesOrderedByNumber(t *testing.T) {
	// Zip entry order differs from slide order; slide10 sorts after slide2.
	data := buildPPTX(t, map[string]string{
		"ppt/slides/slide10.xml": slideXML("tenth"),
		"ppt/slides/slide2.xml":  slideXML("second"),
		"ppt/slides/slide1.xml":  slideXML("first"),
	})

	slides, err := PPTXSlidesFromBytes(data)
	if err != nil {
		t.Fatalf("PPTXSlidesFromBytes: %v", err)
	}
	got := make([]int, len(slides))
	for i, s := range slides {
		got[i] = s.Number
	}
	if got[0] != 1 || got[1] != 2 || got[2] != 10 {
		t.Fatalf("slide order = %v, want [1 2 10]", got)
	}
}

func TestPPTXSlidesNotZip(t *testing.T) {
	if _, err := PPTXSlidesFromBytes([]byte("plainly not a zip archive")); err == nil {
		t.Fatal("expected error for non-zip input")
	}
}

func TestSlideContent(t *testing.T) {
	s := Slide{Number: 4, Text: "Krebs cycle", Notes: "emphasize ATP"}
	content := s.Content()
	if !strings.Contains(content, "--- Slide 4 ---") {
		t.Errorf("content missing header: %q", content)
	}
	if !strings.Contains(content, "Notes: emphasize ATP") {
		t.Errorf("content missing notes: %q", content)
	}

	bare := Slide{Number: 5, Text: "Glycolysis"}
	if strings.Contains(bare.Content(), "Notes:") {
		t.Error("noteless slide rendered a notes section")
	}
}

func TestTestTextUnsupportedFormat(t *testing.T) {
	_, _, err := TestText("exam.docx")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if !strings.Contains(err.Error(), ".docx") {
		t.Errorf("err = %v, want extension named", err)
	}
}
