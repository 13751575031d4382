package vision

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"genderage/internal/domain/entity"
)

var (
	boxColor   = color.RGBA{G: 255, A: 255}
	labelColor = color.RGBA{A: 255}
)

// RasterAnnotator рисует рамки и подписи на чистом Go.
type RasterAnnotator struct {
	Thickness int
	Quality   int
}

// NewRasterAnnotator создаёт аннотатор с настройками по умолчанию
func NewRasterAnnotator() *RasterAnnotator {
	return &RasterAnnotator{Thickness: 2, Quality: 90}
}

// Annotate возвращает JPEG с рамками всех лиц и подписью над каждой рамкой.
func (a *RasterAnnotator) Annotate(img image.Image, result *entity.DetectionResult) ([]byte, error) {
	if img == nil || result == nil {
		return nil, errors.New("nothing to annotate")
	}
	canvas := a.Draw(img, result)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: a.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Draw копирует изображение и рисует на копии; исходник не меняется.
func (a *RasterAnnotator) Draw(img image.Image, result *entity.DetectionResult) *image.RGBA {
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	for _, face := range result.Faces {
		rect := face.Box.Rect().Intersect(canvas.Bounds())
		if rect.Empty() {
			continue
		}
		a.drawFrame(canvas, rect)
		drawLabel(canvas, face.Label(), rect)
	}
	return canvas
}

func (a *RasterAnnotator) drawFrame(dst *image.RGBA, r image.Rectangle) {
	t := a.Thickness
	if t <= 0 {
		t = 1
	}
	src := image.NewUniform(boxColor)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

func drawLabel(dst *image.RGBA, text string, box image.Rectangle) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	// Подпись над рамкой; если места нет, внутри рамки сверху.
	top := box.Min.Y - height - 2
	if top < 0 {
		top = box.Min.Y
	}
	bg := image.Rect(box.Min.X, top, box.Min.X+width+4, top+height+2).Intersect(dst.Bounds())
	draw.Draw(dst, bg, image.NewUniform(boxColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.P(box.Min.X+2, top+face.Metrics().Ascent.Ceil()+1),
	}
	d.DrawString(text)
}
