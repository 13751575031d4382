package vision

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"os"

	pigo "github.com/esimov/pigo/core"

	"genderage/internal/domain/entity"
)

const (
	// pigoQualityThreshold минимальная оценка окна, ниже: ложное срабатывание
	pigoQualityThreshold = 5.0
	pigoShiftFactor      = 0.1
	pigoClusterIoU       = 0.2
)

// PigoLocator детектор лиц на чистом Go (каскад pigo), работает без OpenCV.
type PigoLocator struct {
	classifier *pigo.Pigo
	opts       LocatorOptions
	// MinQuality порог оценки детекции
	MinQuality float32
}

// NewPigoLocator читает бинарный каскад pigo (facefinder) с диска.
func NewPigoLocator(cascadePath string, opts LocatorOptions) (*PigoLocator, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("read pigo cascade: %w", err)
	}
	return NewPigoLocatorFromBytes(data, opts)
}

// NewPigoLocatorFromBytes распаковывает каскад из памяти.
func NewPigoLocatorFromBytes(cascade []byte, opts LocatorOptions) (*PigoLocator, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack pigo cascade: %w", err)
	}
	return &PigoLocator{
		classifier: classifier,
		opts:       opts.normalized(),
		MinQuality: pigoQualityThreshold,
	}, nil
}

// Name имя детектора
func (l *PigoLocator) Name() string { return "pigo" }

// Locate возвращает рамки лиц в координатах от левого верхнего угла изображения.
func (l *PigoLocator) Locate(ctx context.Context, img image.Image) ([]entity.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	src := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)

	cols, rows := b.Dx(), b.Dy()
	params := pigo.CascadeParams{
		MinSize:     l.opts.MinSize,
		MaxSize:     l.opts.maxSizeFor(b),
		ShiftFactor: pigoShiftFactor,
		ScaleFactor: l.opts.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := l.classifier.RunCascade(params, 0.0)
	dets = l.classifier.ClusterDetections(dets, pigoClusterIoU)

	return detectionsToBoxes(dets, l.MinQuality), nil
}

// detectionsToBoxes переводит центр и масштаб pigo в рамки.
func detectionsToBoxes(dets []pigo.Detection, minQuality float32) []entity.BoundingBox {
	boxes := make([]entity.BoundingBox, 0, len(dets))
	for _, det := range dets {
		if det.Q < minQuality || det.Scale <= 0 {
			continue
		}
		half := det.Scale / 2
		boxes = append(boxes, entity.BoundingBox{
			X:      det.Col - half,
			Y:      det.Row - half,
			Width:  det.Scale,
			Height: det.Scale,
		})
	}
	return boxes
}
