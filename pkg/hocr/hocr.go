package hocr

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/lylexist/deepseek-ocr-ui/pkg/grounding"
)

// BBox is an integer hOCR bounding box
type BBox struct {
	X0, Y0, X1, Y1 int
}

func (b BBox) String() string {
	return fmt.Sprintf("bbox %d %d %d %d", b.X0, b.Y0, b.X1, b.Y1)
}

// union grows b to cover o
func (b BBox) union(o BBox) BBox {
	return BBox{
		X0: min(b.X0, o.X0),
		Y0: min(b.Y0, o.Y0),
		X1: max(b.X1, o.X1),
		Y1: max(b.Y1, o.Y1),
	}
}

// FromResult renders resolved annotations as an hOCR page: one ocr_carea per
// annotation, one ocrx_line per box carrying the caption. Boxes are rounded
// and clipped to the page.
func FromResult(result grounding.Result) string {
	width := int(math.Round(result.Width))
	height := int(math.Round(result.Height))

	var areas []string
	line := 0
	for i, a := range result.Annotations {
		if i >= len(result.Native) || len(result.Native[i]) == 0 {
			continue
		}

		var (
			lines []string
			area  BBox
		)
		for j, native := range result.Native[i] {
			box := clip(native, width, height)
			if j == 0 {
				area = box
			} else {
				area = area.union(box)
			}
			line++
			lines = append(lines, fmt.Sprintf(`<span class='ocrx_line' id='line_%d' title='%s'>%s</span>`,
				line, box, html.EscapeString(a.Caption)))
		}

		areas = append(areas, fmt.Sprintf("<div class='ocr_carea' id='block_%d' title='%s' data-ref='%s'>\n%s\n</div>",
			i+1, area, html.EscapeString(a.Label), strings.Join(lines, "\n")))
	}

	return WrapInHOCRDocument(strings.Join(areas, "\n"), BBox{X1: width, Y1: height})
}

// WrapInHOCRDocument wraps content in a complete hOCR HTML document
func WrapInHOCRDocument(content string, page BBox) string {
	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en" lang="en">
<head>
<title></title>
<meta http-equiv="Content-Type" content="text/html;charset=utf-8" />
<meta name='ocr-system' content='deepseek-ocr-ui' />
<meta name='ocr-capabilities' content='ocr_page ocr_carea ocrx_line' />
</head>
<body>
<div class='ocr_page' id='page_1' title='%s'>
%s
</div>
</body>
</html>`, page, content)
}

// clip clamps in float64 and only then rounds to int
func clip(b grounding.NativeBox, width, height int) BBox {
	return BBox{
		X0: clamp(b.X1, width),
		Y0: clamp(b.Y1, height),
		X1: clamp(b.X2, width),
		Y1: clamp(b.Y2, height),
	}
}

func clamp(v float64, hi int) int {
	if hi < 0 || math.IsNaN(v) {
		return 0
	}
	return int(math.Round(min(max(v, 0), float64(hi))))
}
