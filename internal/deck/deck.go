package deck

import (
	"archive/zip"
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"picturebook/internal/book"
	"picturebook/internal/failure"
)

const (
	DefaultName     = "MommyBook"
	PlaceholderText = "Illustration not generated"
	Extension       = ".pptx"

	accentColor       = "EC4899"
	titleColor        = "333333"
	introductionColor = "666666"
	storyColor        = "1A1A1A"
	mutedColor        = "CCCCCC"
	placeholderFill   = "F7F7F7"
)

// zipEpoch is stamped on every entry so identical documents produce
// identical bytes.
var zipEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

type Result struct {
	Name   string
	Data   []byte
	Slides int
}

type part struct {
	name string
	data []byte
}

type media struct {
	name string
	ext  string
	data []byte
}

// Export renders doc as a 16:9 slide deck: one title slide followed by one
// slide per frame, in order. Frames without a usable image get a
// placeholder. doc is only read.
func Export(doc book.Document) (*Result, error) {
	title := strings.TrimSpace(doc.Title)
	slides := make([][]byte, 0, len(doc.Frames)+1)
	slideRels := make([][]byte, 0, len(doc.Frames)+1)
	var images []media

	slides = append(slides, titleSlide(title, doc.Introduction))
	slideRels = append(slideRels, renderRels(layoutRel()))

	for i, frame := range doc.Frames {
		rels := layoutRel()
		w := newSlideWriter()

		if ext, width, height, ok := embeddableImage(frame); ok {
			img := media{name: "image" + strconv.Itoa(len(images)+1) + "." + ext, ext: ext, data: frame.Image.Data}
			images = append(images, img)
			rels = append(rels, relationship{id: relID(2), typ: relImage, target: "../media/" + img.name})
			w.picture(fmt.Sprintf("Illustration %d", i+1), relID(2), contain(illustrationBox, width, height))
		} else {
			w.text("Placeholder", illustrationBox, PlaceholderText, textStyle{size: 18, color: mutedColor, anchor: "ctr"}, placeholderFill)
		}

		w.text("Story", storyBox, frame.StoryText, textStyle{size: 20, italic: true, color: storyColor, anchor: "ctr"}, "")
		w.text("Page Number", pageNumberBox, strconv.Itoa(i+1), textStyle{size: 10, bold: true, color: mutedColor}, "")

		slides = append(slides, w.render(""))
		slideRels = append(slideRels, renderRels(rels))
	}

	parts := packageParts(title, slides, slideRels, images)
	data, err := writeZip(parts)
	if err != nil {
		return nil, failure.New(failure.Export, "write deck", err)
	}

	return &Result{Name: FileName(title), Data: data, Slides: len(slides)}, nil
}

func embeddableImage(frame book.Frame) (string, int, int, bool) {
	if frame.Image == nil || len(frame.Image.Data) == 0 {
		return "", 0, 0, false
	}
	ext, width, height, ok := embeddable(frame.Image.Data)
	if !ok {
		slog.Warn("Skipping illustration the deck cannot embed", "frame", frame.ID, "mime", frame.Image.MIMEType)
	}
	return ext, width, height, ok
}

func titleSlide(title, introduction string) []byte {
	w := newSlideWriter()
	w.text("Title", titleBox, title, textStyle{size: 44, bold: true, color: titleColor, anchor: "ctr"}, "")
	w.text("Introduction", introductionBox, strings.TrimSpace(introduction), textStyle{size: 18, color: introductionColor}, "")
	w.rect("Accent Bar", accentBarBox, accentColor)
	return w.render("FFFFFF")
}

func layoutRel() []relationship {
	return []relationship{{id: relID(1), typ: relSlideLayout, target: "../slideLayouts/slideLayout1.xml"}}
}

func packageParts(title string, slides, slideRels [][]byte, images []media) []part {
	parts := []part{
		{"[Content_Types].xml", contentTypes(len(slides))},
		{"_rels/.rels", renderRels([]relationship{
			{id: relID(1), typ: relOfficeDocument, target: "ppt/presentation.xml"},
			{id: relID(2), typ: relCoreProps, target: "docProps/core.xml"},
			{id: relID(3), typ: relExtendedProps, target: "docProps/app.xml"},
		})},
		{"docProps/core.xml", coreProps(title)},
		{"docProps/app.xml", appProps(len(slides))},
		{"ppt/presentation.xml", presentation(len(slides))},
		{"ppt/_rels/presentation.xml.rels", presentationRels(len(slides))},
		{"ppt/presProps.xml", []byte(presPropsXML)},
		{"ppt/tableStyles.xml", []byte(tableStylesXML)},
		{"ppt/theme/theme1.xml", []byte(themeXML)},
		{"ppt/slideMasters/slideMaster1.xml", []byte(slideMasterXML)},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", []byte(slideMasterRelsXML)},
		{"ppt/slideLayouts/slideLayout1.xml", []byte(slideLayoutXML)},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", []byte(slideLayoutRelsXML)},
	}
	for i := range slides {
		n := strconv.Itoa(i + 1)
		parts = append(parts,
			part{"ppt/slides/slide" + n + ".xml", slides[i]},
			part{"ppt/slides/_rels/slide" + n + ".xml.rels", slideRels[i]},
		)
	}
	for _, img := range images {
		parts = append(parts, part{"ppt/media/" + img.name, img.data})
	}
	return parts
}

func contentTypes(slides int) []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	sb.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	sb.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	sb.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
	sb.WriteString(`<Default Extension="jpeg" ContentType="image/jpeg"/>`)
	sb.WriteString(`<Default Extension="gif" ContentType="image/gif"/>`)

	overrides := []struct{ part, ct string }{
		{"/ppt/presentation.xml", ctPresentation},
		{"/ppt/slideMasters/slideMaster1.xml", ctSlideMaster},
		{"/ppt/slideLayouts/slideLayout1.xml", ctSlideLayout},
		{"/ppt/theme/theme1.xml", ctTheme},
		{"/ppt/presProps.xml", ctPresProps},
		{"/ppt/tableStyles.xml", ctTableStyles},
		{"/docProps/core.xml", ctCoreProps},
		{"/docProps/app.xml", ctExtProps},
	}
	for _, o := range overrides {
		fmt.Fprintf(&sb, `<Override PartName="%s" ContentType="%s"/>`, o.part, o.ct)
	}
	for i := 1; i <= slides; i++ {
		fmt.Fprintf(&sb, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="%s"/>`, i, ctSlide)
	}
	sb.WriteString(`</Types>`)
	return []byte(sb.String())
}

func coreProps(title string) []byte {
	return []byte(xmlHeader +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:dcmitype="http://purl.org/dc/dcmitype/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + escape(title) + `</dc:title><dc:creator>picturebook</dc:creator>` +
		`</cp:coreProperties>`)
}

func appProps(slides int) []byte {
	return []byte(xmlHeader +
		`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties" xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">` +
		`<Application>picturebook</Application><PresentationFormat>On-screen Show (16:9)</PresentationFormat>` +
		`<Slides>` + strconv.Itoa(slides) + `</Slides>` +
		`</Properties>`)
}

// Presentation relationships: rId1 is the master, slides follow, then the
// shared parts.
func presentation(slides int) []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<p:presentation ` + nsAll + ` saveSubsetFonts="1">`)
	sb.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	sb.WriteString(`<p:sldIdLst>`)
	for i := 0; i < slides; i++ {
		fmt.Fprintf(&sb, `<p:sldId id="%d" r:id="%s"/>`, 256+i, relID(i+2))
	}
	sb.WriteString(`</p:sldIdLst>`)
	fmt.Fprintf(&sb, `<p:sldSz cx="%d" cy="%d"/><p:notesSz cx="6858000" cy="9144000"/>`, slideWidth, slideHeight)
	sb.WriteString(`</p:presentation>`)
	return []byte(sb.String())
}

func presentationRels(slides int) []byte {
	rels := []relationship{{id: relID(1), typ: relSlideMaster, target: "slideMasters/slideMaster1.xml"}}
	for i := 1; i <= slides; i++ {
		rels = append(rels, relationship{id: relID(i + 1), typ: relSlide, target: "slides/slide" + strconv.Itoa(i) + ".xml"})
	}
	next := slides + 2
	rels = append(rels,
		relationship{id: relID(next), typ: relPresProps, target: "presProps.xml"},
		relationship{id: relID(next + 1), typ: relTheme, target: "theme/theme1.xml"},
		relationship{id: relID(next + 2), typ: relTableStyles, target: "tableStyles.xml"},
	)
	return renderRels(rels)
}

func writeZip(parts []part) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.name,
			Method:   zip.Deflate,
			Modified: zipEpoch,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", p.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

var unsafeName = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]+`)

// FileName derives the deck's file name from the book title.
func FileName(title string) string {
	name := strings.TrimSpace(unsafeName.ReplaceAllString(title, " "))
	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, ". ")
	if name == "" {
		name = DefaultName
	}
	return name + Extension
}
