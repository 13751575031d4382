package app

import (
	"image"
	"image/color"

	"genderage/internal/domain/entity"
)

const (
	// FallbackGenderConfidence фиксированная "уверенность" эвристики, не вероятность
	FallbackGenderConfidence = 75.0
	// FallbackAgeConfidence фиксированная "уверенность" эвристики, не вероятность
	FallbackAgeConfidence = 70.0
)

// FallbackEstimator детерминированная эвристика без ML: метки выбираются по средней яркости кропа.
// Работает, когда веса сетей не загрузились. Статистического смысла не имеет.
type FallbackEstimator struct {
	vocab entity.Vocabulary
}

// NewFallbackEstimator создаёт эвристику поверх словаря меток.
func NewFallbackEstimator(vocab entity.Vocabulary) *FallbackEstimator {
	return &FallbackEstimator{vocab: vocab}
}

// Estimate возвращает пол mean%2 и возраст mean%len(age) с константными уверенностями.
func (f *FallbackEstimator) Estimate(face image.Image) entity.FaceAttributes {
	mean := MeanIntensity(face)
	return entity.FaceAttributes{
		Gender: entity.AttributePrediction{Label: f.vocab.GenderAt(mean), Confidence: FallbackGenderConfidence},
		Age:    entity.AttributePrediction{Label: f.vocab.AgeAt(mean), Confidence: FallbackAgeConfidence},
		Source: entity.SourceFallback,
	}
}

// MeanIntensity целая часть среднего по всем каналам (R, G, B) всех пикселей.
// Для серого изображения совпадает со средним уровнем серого.
func MeanIntensity(img image.Image) int {
	b := img.Bounds()
	n := uint64(b.Dx()) * uint64(b.Dy())
	if b.Empty() || n == 0 {
		return 0
	}

	var sum uint64
	switch src := img.(type) {
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := src.PixOffset(b.Min.X, y)
			for _, p := range src.Pix[i : i+b.Dx()] {
				sum += uint64(p)
			}
		}
		return int(sum / n)
	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := src.PixOffset(b.Min.X, y)
			row := src.Pix[i : i+4*b.Dx()]
			for x := 0; x < len(row); x += 4 {
				sum += uint64(row[x]) + uint64(row[x+1]) + uint64(row[x+2])
			}
		}
		return int(sum / (3 * n))
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			sum += uint64(c.R) + uint64(c.G) + uint64(c.B)
		}
	}
	return int(sum / (3 * n))
}
