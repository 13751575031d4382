//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"fmt"
	"image"

	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
)

// CascadeLocator заглушка каскада Хаара (без OpenCV).
type CascadeLocator struct{}

// NewCascadeLocator возвращает ошибку, если сборка без тега gocv.
func NewCascadeLocator(cascadePath string, opts LocatorOptions) (*CascadeLocator, error) {
	return nil, ErrNoGoCV
}

func (l *CascadeLocator) Name() string { return "haar" }

func (l *CascadeLocator) Locate(ctx context.Context, img image.Image) ([]entity.BoundingBox, error) {
	return nil, ErrNoGoCV
}

func (l *CascadeLocator) Close() error { return nil }

// CaffeClassifier заглушка классификатора (без OpenCV).
type CaffeClassifier struct{}

// NewCaffeClassifier без OpenCV сети не загрузить: пайплайн уходит в эвристику.
func NewCaffeClassifier(paths ModelPaths) (*CaffeClassifier, error) {
	return nil, fmt.Errorf("%w: %v", entity.ErrModelUnavailable, ErrNoGoCV)
}

func (c *CaffeClassifier) Classify(ctx context.Context, face image.Image) (entity.Scores, error) {
	return entity.Scores{}, ErrNoGoCV
}

func (c *CaffeClassifier) Close() error { return nil }

// NewAnnotator аннотатор для текущей сборки
func NewAnnotator() port.Annotator {
	return NewRasterAnnotator()
}

// Preview заглушка окна предпросмотра
type Preview struct{}

// NewPreview возвращает ошибку, если сборка без тега gocv.
func NewPreview(title string) (*Preview, error) {
	return nil, ErrNoGoCV
}

func (p *Preview) Show(img image.Image, result *entity.DetectionResult) int { return -1 }

func (p *Preview) Close() error { return nil }
