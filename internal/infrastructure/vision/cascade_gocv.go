//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"genderage/internal/domain/entity"
)

// CascadeLocator детектор лиц на каскаде Хаара из OpenCV.
type CascadeLocator struct {
	mu         sync.Mutex // CascadeClassifier не потокобезопасен
	classifier gocv.CascadeClassifier
	opts       LocatorOptions
}

// NewCascadeLocator загружает XML-каскад (haarcascade_frontalface_default.xml).
func NewCascadeLocator(cascadePath string, opts LocatorOptions) (*CascadeLocator, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade classifier from %s", cascadePath)
	}
	return &CascadeLocator{classifier: classifier, opts: opts.normalized()}, nil
}

// Name имя детектора
func (l *CascadeLocator) Name() string { return "haar" }

// Locate ищет лица на сером изображении.
func (l *CascadeLocator) Locate(ctx context.Context, img image.Image) ([]entity.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := imageToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	maxSide := l.opts.maxSizeFor(img.Bounds())

	l.mu.Lock()
	rects := l.classifier.DetectMultiScaleWithParams(
		gray,
		l.opts.ScaleFactor,
		l.opts.MinNeighbors,
		0,
		image.Pt(l.opts.MinSize, l.opts.MinSize),
		image.Pt(maxSide, maxSide),
	)
	l.mu.Unlock()

	boxes := make([]entity.BoundingBox, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, entity.BoxFromRect(r))
	}
	return boxes, nil
}

// Close освобождает каскад
func (l *CascadeLocator) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.classifier.Close()
}

// imageToMat превращает image.Image в BGR-матрицу, начало координат всегда (0,0).
func imageToMat(img image.Image) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.NewMat(), entity.ErrInvalidImage
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), entity.ErrInvalidImage
	}
	return mat, nil
}
