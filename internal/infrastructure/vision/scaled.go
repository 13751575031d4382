package vision

import (
	"context"
	"image"
	"io"
	"math"

	"github.com/nfnt/resize"

	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
)

// ScaledLocator ищет лица на уменьшенной копии и переводит рамки обратно
// в координаты исходного изображения. Кропы для сетей берутся из оригинала.
type ScaledLocator struct {
	inner   port.FaceLocator
	maxSide int
}

// NewScaledLocator оборачивает детектор; при maxSide <= 0 возвращает его как есть.
func NewScaledLocator(inner port.FaceLocator, maxSide int) port.FaceLocator {
	if maxSide <= 0 {
		return inner
	}
	return &ScaledLocator{inner: inner, maxSide: maxSide}
}

func (l *ScaledLocator) Name() string { return l.inner.Name() }

// Locate возвращает рамки относительно bounds.Min исходного изображения.
func (l *ScaledLocator) Locate(ctx context.Context, img image.Image) ([]entity.BoundingBox, error) {
	b := img.Bounds()
	if b.Dx() <= l.maxSide && b.Dy() <= l.maxSide {
		return l.inner.Locate(ctx, img)
	}

	small := resize.Thumbnail(uint(l.maxSide), uint(l.maxSide), img, resize.Bilinear)
	sb := small.Bounds()
	if sb.Empty() {
		return nil, nil
	}
	boxes, err := l.inner.Locate(ctx, small)
	if err != nil {
		return nil, err
	}

	sx := float64(b.Dx()) / float64(sb.Dx())
	sy := float64(b.Dy()) / float64(sb.Dy())
	out := make([]entity.BoundingBox, 0, len(boxes))
	for _, box := range boxes {
		out = append(out, scaleBox(box, sx, sy))
	}
	return out, nil
}

// Close закрывает вложенный детектор, если он держит ресурсы.
func (l *ScaledLocator) Close() error {
	if c, ok := l.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func scaleBox(box entity.BoundingBox, sx, sy float64) entity.BoundingBox {
	x0 := int(math.Round(float64(box.X) * sx))
	y0 := int(math.Round(float64(box.Y) * sy))
	x1 := int(math.Round(float64(box.X+box.Width) * sx))
	y1 := int(math.Round(float64(box.Y+box.Height) * sy))
	return entity.BoundingBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}
