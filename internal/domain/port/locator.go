package port

import (
	"context"
	"image"

	"genderage/internal/domain/entity"
)

// FaceLocator интерфейс детектора лиц
type FaceLocator interface {
	// Locate возвращает рамки лиц в порядке обнаружения; ноль лиц: пустой срез без ошибки
	Locate(ctx context.Context, img image.Image) ([]entity.BoundingBox, error)

	// Name короткое имя реализации (haar, pigo)
	Name() string
}
