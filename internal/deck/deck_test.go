package deck

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"picturebook/internal/book"
)

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sampleDocument(frames int) book.Document {
	doc := book.Document{
		ID:           "doc-1",
		Title:        "The Lost Kite",
		Introduction: "Mia loses her kite & finds a friend.",
	}
	for i := range frames {
		doc.Frames = append(doc.Frames, book.Frame{
			ID:        "frame-" + string(rune('a'+i)),
			StoryText: "Page text <" + string(rune('A'+i)) + ">",
		})
	}
	return doc
}

func openDeck(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	files := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		content, _ := io.ReadAll(rc)
		_ = rc.Close()
		files[f.Name] = string(content)
	}
	return files
}

func slideCount(files map[string]string) int {
	n := 0
	for name := range files {
		if strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml") {
			n++
		}
	}
	return n
}

func TestExportWithoutImages(t *testing.T) {
	doc := sampleDocument(4)

	result, err := Export(doc)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if result.Slides != 5 {
		t.Errorf("Slides = %d, want 5", result.Slides)
	}
	if result.Name != "The Lost Kite.pptx" {
		t.Errorf("Name = %q", result.Name)
	}

	files := openDeck(t, result.Data)
	if got := slideCount(files); got != 5 {
		t.Errorf("slide parts = %d, want 5", got)
	}

	title := files["ppt/slides/slide1.xml"]
	if !strings.Contains(title, "The Lost Kite") {
		t.Error("title slide should carry the title")
	}
	if !strings.Contains(title, "Mia loses her kite &amp; finds a friend.") {
		t.Error("title slide should carry the escaped introduction")
	}
	if !strings.Contains(title, `val="EC4899"`) {
		t.Error("title slide should carry the accent bar")
	}

	for i := 2; i <= 5; i++ {
		slide := files["ppt/slides/slide"+string(rune('0'+i))+".xml"]
		if !strings.Contains(slide, PlaceholderText) {
			t.Errorf("slide %d should show the placeholder", i)
		}
		if !strings.Contains(slide, "&lt;") {
			t.Errorf("slide %d story text should be escaped", i)
		}
	}
	for name := range files {
		if strings.HasPrefix(name, "ppt/media/") {
			t.Errorf("unexpected media part %s", name)
		}
	}
}

func TestExportEmbedsImages(t *testing.T) {
	doc := sampleDocument(2)
	doc.Frames[0].Image = &book.Image{Data: samplePNG(t, 32, 18), MIMEType: "image/png"}
	doc.Frames[0].Status = book.Ready

	result, err := Export(doc)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	files := openDeck(t, result.Data)

	if _, ok := files["ppt/media/image1.png"]; !ok {
		t.Fatal("image1.png should be embedded")
	}
	if !strings.Contains(files["ppt/slides/_rels/slide2.xml.rels"], "../media/image1.png") {
		t.Error("slide 2 should reference the image")
	}
	if strings.Contains(files["ppt/slides/slide2.xml"], PlaceholderText) {
		t.Error("slide 2 should not show the placeholder")
	}
	if !strings.Contains(files["ppt/slides/slide3.xml"], PlaceholderText) {
		t.Error("slide 3 should show the placeholder")
	}
}

func TestExportUnsupportedImageFallsBack(t *testing.T) {
	doc := sampleDocument(1)
	doc.Frames[0].Image = &book.Image{Data: []byte("RIFF....WEBPVP8 "), MIMEType: "image/webp"}

	result, err := Export(doc)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	files := openDeck(t, result.Data)
	if !strings.Contains(files["ppt/slides/slide2.xml"], PlaceholderText) {
		t.Error("undecodable image should fall back to the placeholder")
	}
}

func TestExportIsDeterministic(t *testing.T) {
	doc := sampleDocument(3)
	doc.Frames[1].Image = &book.Image{Data: samplePNG(t, 10, 20), MIMEType: "image/png"}

	first, err := Export(doc)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Export(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Error("exporting the same document twice should give identical bytes")
	}
}

func TestExportDoesNotMutateDocument(t *testing.T) {
	doc := sampleDocument(2)
	before := doc.Frames[0]

	if _, err := Export(doc); err != nil {
		t.Fatal(err)
	}
	if doc.Frames[0] != before {
		t.Error("Export() changed the document")
	}
}

func TestExportEmptyTitle(t *testing.T) {
	doc := sampleDocument(1)
	doc.Title = ""

	result, err := Export(doc)
	if err != nil {
		t.Fatal(err)
	}
	if result.Name != "MommyBook.pptx" {
		t.Errorf("Name = %q, want MommyBook.pptx", result.Name)
	}
}

func TestPresentationParts(t *testing.T) {
	result, err := Export(sampleDocument(2))
	if err != nil {
		t.Fatal(err)
	}
	files := openDeck(t, result.Data)

	for _, name := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"ppt/presentation.xml",
		"ppt/_rels/presentation.xml.rels",
		"ppt/slideMasters/slideMaster1.xml",
		"ppt/slideLayouts/slideLayout1.xml",
		"ppt/theme/theme1.xml",
	} {
		if _, ok := files[name]; !ok {
			t.Errorf("missing part %s", name)
		}
	}

	pres := files["ppt/presentation.xml"]
	if !strings.Contains(pres, `<p:sldSz cx="9144000" cy="5143500"/>`) {
		t.Error("presentation should use the 16:9 slide size")
	}
	if strings.Count(pres, "<p:sldId ") != 3 {
		t.Errorf("sldId count = %d, want 3", strings.Count(pres, "<p:sldId "))
	}
	if strings.Count(files["[Content_Types].xml"], "slide+xml") != 3 {
		t.Error("content types should list every slide")
	}
}

func TestContain(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		want          box
	}{
		{name: "wideImageFillsWidth", width: 1600, height: 400, want: box{0, pct(slideHeight, 75)/2 - 1143000, slideWidth, 2286000}},
		{name: "tallImageFillsHeight", width: 720, height: 1280},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contain(illustrationBox, tt.width, tt.height)
			if got.cx > illustrationBox.cx || got.cy > illustrationBox.cy {
				t.Errorf("contain() = %+v overflows %+v", got, illustrationBox)
			}
			if got.x < 0 || got.y < 0 {
				t.Errorf("contain() = %+v has negative offset", got)
			}
			if tt.want != (box{}) && got != tt.want {
				t.Errorf("contain() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{title: "The Lost Kite", want: "The Lost Kite.pptx"},
		{title: "", want: "MommyBook.pptx"},
		{title: "   ", want: "MommyBook.pptx"},
		{title: "Mia/Leo: Friends?", want: "Mia Leo Friends.pptx"},
		{title: "小兔子的月亮", want: "小兔子的月亮.pptx"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FileName(tt.title); got != tt.want {
				t.Errorf("FileName(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}
