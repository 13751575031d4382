//go:build gocv
// +build gocv

package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"gocv.io/x/gocv"

	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
)

// GoCVAnnotator рисует рамки и подписи средствами OpenCV.
type GoCVAnnotator struct{}

// NewAnnotator аннотатор для текущей сборки
func NewAnnotator() port.Annotator {
	return GoCVAnnotator{}
}

// Annotate возвращает JPEG с рамками и подписями.
func (GoCVAnnotator) Annotate(img image.Image, result *entity.DetectionResult) ([]byte, error) {
	mat, err := imageToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	drawFaces(&mat, result)

	out, err := mat.ToImage()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawFaces(mat *gocv.Mat, result *entity.DetectionResult) {
	green := color.RGBA{G: 255, A: 255}
	for _, face := range result.Faces {
		rect := face.Box.Rect()
		gocv.Rectangle(mat, rect, green, 2)

		y := rect.Min.Y - 10
		if y < 10 {
			y = rect.Max.Y + 20
		}
		gocv.PutText(mat, face.Label(), image.Pt(rect.Min.X, y), gocv.FontHersheySimplex, 0.6, green, 2)
	}
}
