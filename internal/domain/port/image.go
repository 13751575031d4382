package port

import (
	"image"

	"genderage/internal/domain/entity"
)

// ImageDecoder превращает байты загрузки в изображение
type ImageDecoder interface {
	// Decode возвращает entity.ErrInvalidImage, если байты не читаются
	Decode(data []byte) (image.Image, error)
}

// Annotator рисует рамки и подписи лиц
type Annotator interface {
	// Annotate возвращает JPEG с наложенными рамками
	Annotate(img image.Image, result *entity.DetectionResult) ([]byte, error)
}
