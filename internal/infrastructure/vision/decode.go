package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"genderage/internal/domain/entity"
)

// Decoder читает JPEG, PNG, GIF, BMP и WebP. Изображение не масштабируется:
// рамки и размеры в результате всегда в пикселях исходного файла.
type Decoder struct{}

// NewDecoder создаёт декодер
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode возвращает entity.ErrInvalidImage для пустых или нечитаемых данных.
func (d *Decoder) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, entity.ErrInvalidImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	if img.Bounds().Empty() {
		return nil, entity.ErrInvalidImage
	}
	return img, nil
}
