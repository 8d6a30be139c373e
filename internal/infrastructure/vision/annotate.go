package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"food-scale/internal/domain/entity"
	"food-scale/internal/domain/port"
)

const (
	boxThickness = 2
	labelPadding = 2
	jpegQuality  = 90
)

// palette раскрашивает рамки по индексу класса.
var palette = []color.RGBA{
	{R: 0, G: 255, B: 0, A: 255},
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 157, B: 151, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 52, G: 69, B: 147, A: 255},
	{R: 203, G: 56, B: 255, A: 255},
}

// ImageAnnotator рисует рамки и подписи без OpenCV.
type ImageAnnotator struct{}

// NewImageAnnotator создаёт аннотатор.
func NewImageAnnotator() *ImageAnnotator {
	return &ImageAnnotator{}
}

// Annotate рисует рамку и подпись "класс уверенность" для каждого обнаружения.
func (a *ImageAnnotator) Annotate(imageData []byte, detections []entity.Detection) ([]byte, error) {
	if len(imageData) == 0 {
		return nil, entity.ErrEmptyImage
	}

	src, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrUnreadableImage, err)
	}

	canvas := image.NewRGBA(src.Bounds())
	draw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, d := range detections {
		c := colorFor(d.ClassID)
		drawBox(canvas, d.Box, c)
		drawLabel(canvas, d.Box, Label(d), c)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Label: подпись рамки.
func Label(d entity.Detection) string {
	return fmt.Sprintf("%s %.2f", d.ClassName, d.Confidence)
}

func colorFor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

func drawBox(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	u := image.NewUniform(c)
	t := boxThickness
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), u, image.Point{}, draw.Src)
	}
}

// drawLabel пишет текст на плашке над рамкой, а если сверху нет места, то внутри неё.
func drawLabel(dst *image.RGBA, box image.Rectangle, text string, bg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 2*labelPadding
	height := face.Metrics().Height.Ceil() + 2*labelPadding

	top := box.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = box.Min.Y
	}
	plate := image.Rect(box.Min.X, top, box.Min.X+width, top+height).Intersect(dst.Bounds())
	if plate.Empty() {
		return
	}
	draw.Draw(dst, plate, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(plate.Min.X+labelPadding, plate.Min.Y+labelPadding+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

var _ port.Annotator = (*ImageAnnotator)(nil)
