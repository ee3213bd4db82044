package deck

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Geometry is in EMU (914400 per inch) on a 10 x 5.625 inch slide.
const (
	emuPerInch  = 914400
	slideWidth  = 9144000
	slideHeight = 5143500
)

type box struct {
	x, y, cx, cy int64
}

func pct(total int64, percent float64) int64 {
	return int64(float64(total) * percent / 100)
}

var (
	accentBarBox    = box{0, 0, slideWidth, emuPerInch / 10}
	titleBox        = box{0, pct(slideHeight, 35), slideWidth, emuPerInch}
	introductionBox = box{pct(slideWidth, 10), pct(slideHeight, 55), pct(slideWidth, 80), emuPerInch * 3 / 2}
	illustrationBox = box{0, 0, slideWidth, pct(slideHeight, 75)}
	storyBox        = box{pct(slideWidth, 5), pct(slideHeight, 75), pct(slideWidth, 90), pct(slideHeight, 20)}
	pageNumberBox   = box{pct(slideWidth, 93), pct(slideHeight, 92), pct(slideWidth, 5), emuPerInch * 3 / 10}
)

var extensions = map[string]string{
	"png":  "png",
	"jpeg": "jpeg",
	"gif":  "gif",
}

// embeddable reports the file extension and pixel size of an image the
// deck can carry. Formats that PowerPoint cannot be relied on to open are
// refused.
func embeddable(data []byte) (ext string, width, height int, ok bool) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return "", 0, 0, false
	}
	ext, ok = extensions[format]
	return ext, cfg.Width, cfg.Height, ok
}

// contain scales a width x height image to fit inside area, centered,
// keeping its aspect ratio.
func contain(area box, width, height int) box {
	scaleX := float64(area.cx) / float64(width)
	scaleY := float64(area.cy) / float64(height)
	scale := min(scaleX, scaleY)

	cx := int64(float64(width) * scale)
	cy := int64(float64(height) * scale)
	return box{
		x:  area.x + (area.cx-cx)/2,
		y:  area.y + (area.cy-cy)/2,
		cx: cx,
		cy: cy,
	}
}
