//go:build gocv
// +build gocv

package vision

import (
	"image"

	"gocv.io/x/gocv"

	"genderage/internal/domain/entity"
)

// Preview окно OpenCV с живой разметкой кадров.
type Preview struct {
	window *gocv.Window
}

// NewPreview открывает окно
func NewPreview(title string) (*Preview, error) {
	return &Preview{window: gocv.NewWindow(title)}, nil
}

// Show рисует кадр и возвращает код нажатой клавиши или -1.
func (p *Preview) Show(img image.Image, result *entity.DetectionResult) int {
	mat, err := imageToMat(img)
	if err != nil {
		return -1
	}
	defer mat.Close()

	if result != nil {
		drawFaces(&mat, result)
	}
	p.window.IMShow(mat)
	return p.window.WaitKey(1)
}

// Close закрывает окно
func (p *Preview) Close() error {
	return p.window.Close()
}
