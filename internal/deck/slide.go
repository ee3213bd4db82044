package deck

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

type textStyle struct {
	size   int // points
	bold   bool
	italic bool
	color  string
	anchor string // t, ctr or b
}

// slideWriter accumulates the shape tree of one slide. Shape ids start at 2
// because id 1 belongs to the group.
type slideWriter struct {
	sb     strings.Builder
	nextID int
}

func newSlideWriter() *slideWriter {
	return &slideWriter{nextID: 2}
}

func (w *slideWriter) id() int {
	id := w.nextID
	w.nextID++
	return id
}

func writeXfrm(sb *strings.Builder, b box) {
	fmt.Fprintf(sb, `<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, b.x, b.y, b.cx, b.cy)
}

func escape(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}

func (w *slideWriter) rect(name string, b box, fill string) {
	fmt.Fprintf(&w.sb, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr><p:spPr>`, w.id(), escape(name))
	writeXfrm(&w.sb, b)
	fmt.Fprintf(&w.sb, `<a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:solidFill><a:srgbClr val="%s"/></a:solidFill><a:ln><a:noFill/></a:ln></p:spPr></p:sp>`, fill)
}

func (w *slideWriter) text(name string, b box, text string, style textStyle, fill string) {
	fmt.Fprintf(&w.sb, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr><p:spPr>`, w.id(), escape(name))
	writeXfrm(&w.sb, b)
	w.sb.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom>`)
	if fill != "" {
		fmt.Fprintf(&w.sb, `<a:solidFill><a:srgbClr val="%s"/></a:solidFill>`, fill)
	} else {
		w.sb.WriteString(`<a:noFill/>`)
	}
	w.sb.WriteString(`</p:spPr><p:txBody>`)

	anchor := style.anchor
	if anchor == "" {
		anchor = "t"
	}
	fmt.Fprintf(&w.sb, `<a:bodyPr wrap="square" lIns="91440" tIns="45720" rIns="91440" bIns="45720" anchor="%s"><a:normAutofit/></a:bodyPr><a:lstStyle/>`, anchor)

	for _, line := range strings.Split(text, "\n") {
		w.sb.WriteString(`<a:p><a:pPr algn="ctr"/>`)
		if line != "" {
			fmt.Fprintf(&w.sb, `<a:r><a:rPr lang="en-US" sz="%d" b="%s" i="%s" dirty="0"><a:solidFill><a:srgbClr val="%s"/></a:solidFill></a:rPr><a:t>%s</a:t></a:r>`,
				style.size*100, flag(style.bold), flag(style.italic), style.color, escape(line))
		}
		fmt.Fprintf(&w.sb, `<a:endParaRPr lang="en-US" sz="%d" dirty="0"/></a:p>`, style.size*100)
	}
	w.sb.WriteString(`</p:txBody></p:sp>`)
}

func (w *slideWriter) picture(name, relID string, b box) {
	fmt.Fprintf(&w.sb, `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="%s"/><p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>`, w.id(), escape(name))
	fmt.Fprintf(&w.sb, `<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill><p:spPr>`, relID)
	writeXfrm(&w.sb, b)
	w.sb.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`)
}

func (w *slideWriter) render(background string) []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<p:sld ` + nsAll + `><p:cSld>`)
	if background != "" {
		fmt.Fprintf(&sb, `<p:bg><p:bgPr><a:solidFill><a:srgbClr val="%s"/></a:solidFill><a:effectLst/></p:bgPr></p:bg>`, background)
	}
	sb.WriteString(`<p:spTree>` + emptyGroup)
	sb.WriteString(w.sb.String())
	sb.WriteString(`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`)
	return []byte(sb.String())
}

func flag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

type relationship struct {
	id, typ, target string
}

func renderRels(rels []relationship) []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, rel := range rels {
		fmt.Fprintf(&sb, `<Relationship Id="%s" Type="%s" Target="%s"/>`, rel.id, rel.typ, rel.target)
	}
	sb.WriteString(`</Relationships>`)
	return []byte(sb.String())
}

func relID(n int) string {
	return "rId" + strconv.Itoa(n)
}
