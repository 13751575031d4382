package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log"
	"time"

	"genderage/internal/domain/entity"
)

// PipelineOptions настройки пайплайна, не связанные с моделями
type PipelineOptions struct {
	// ClassifyTimeout ограничение на оба прямых прохода для одного лица; 0: без ограничения
	ClassifyTimeout time.Duration
}

// Pipeline детектор лиц, затем классификатор (или эвристика) для каждого лица.
type Pipeline struct {
	models   ModelContext
	fallback *FallbackEstimator
	timeout  time.Duration
}

// NewPipeline собирает пайплайн из загруженных моделей.
func NewPipeline(models ModelContext, opts PipelineOptions) (*Pipeline, error) {
	if models.Locator == nil {
		return nil, errors.New("face locator is not configured")
	}
	if models.Classifier == nil && models.LoadErr == nil {
		models.LoadErr = entity.ErrModelUnavailable
	}
	return &Pipeline{
		models:   models,
		fallback: NewFallbackEstimator(models.Vocabulary),
		timeout:  opts.ClassifyTimeout,
	}, nil
}

// Source model или fallback на всё время жизни процесса
func (p *Pipeline) Source() entity.Source {
	return p.models.Source()
}

// LoadErr причина работы в режиме эвристики
func (p *Pipeline) LoadErr() error {
	return p.models.LoadErr
}

// LocatorName имя детектора лиц
func (p *Pipeline) LocatorName() string {
	return p.models.Locator.Name()
}

// Vocabulary словарь меток пайплайна
func (p *Pipeline) Vocabulary() entity.Vocabulary {
	return p.models.Vocabulary
}

// Detect находит лица и определяет их атрибуты. Ошибка возвращается только если
// изображение целиком непригодно; сбой на одном лице лишь исключает это лицо.
func (p *Pipeline) Detect(ctx context.Context, img image.Image) (*entity.DetectionResult, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, entity.ErrInvalidImage
	}

	boxes, err := p.models.Locator.Locate(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("locate faces: %w", err)
	}

	bounds := img.Bounds()
	faces := make([]entity.FaceResult, 0, len(boxes))
	for _, box := range boxes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		crop, rect, err := cropFace(img, box)
		if err != nil {
			// Рамка вне изображения: пропускаем молча.
			continue
		}

		attrs, err := p.classify(ctx, crop)
		if err != nil {
			log.Printf("Dropping face at x=%d y=%d w=%d h=%d: %v", box.X, box.Y, box.Width, box.Height, err)
			continue
		}

		faces = append(faces, entity.FaceResult{
			Box:    entity.BoxFromRect(rect.Sub(bounds.Min)),
			Gender: attrs.Gender,
			Age:    attrs.Age,
			Source: attrs.Source,
		})
	}

	return &entity.DetectionResult{
		ImageWidth:  bounds.Dx(),
		ImageHeight: bounds.Dy(),
		Faces:       faces,
		HasFaces:    len(faces) > 0,
	}, nil
}

func (p *Pipeline) classify(ctx context.Context, crop image.Image) (entity.FaceAttributes, error) {
	if p.models.Classifier == nil {
		return p.fallback.Estimate(crop), nil
	}

	var (
		scores entity.Scores
		err    error
	)
	if p.timeout > 0 {
		scores, err = p.classifyWithTimeout(ctx, crop)
	} else {
		scores, err = p.models.Classifier.Classify(ctx, crop)
	}
	if err != nil {
		return entity.FaceAttributes{}, fmt.Errorf("%w: %v", entity.ErrClassification, err)
	}
	return p.models.Vocabulary.Attributes(scores)
}

type classifyResult struct {
	scores entity.Scores
	err    error
}

func (p *Pipeline) classifyWithTimeout(ctx context.Context, crop image.Image) (entity.Scores, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan classifyResult, 1)
	go func() {
		scores, err := p.models.Classifier.Classify(ctx, crop)
		done <- classifyResult{scores: scores, err: err}
	}()

	select {
	case res := <-done:
		return res.scores, res.err
	case <-ctx.Done():
		return entity.Scores{}, ctx.Err()
	}
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropFace вырезает область лица; при нулевой площади возвращает entity.ErrEmptyCrop.
func cropFace(img image.Image, box entity.BoundingBox) (image.Image, image.Rectangle, error) {
	bounds := img.Bounds()
	// Детекторы отдают координаты от нуля, а изображение может начинаться не с (0,0).
	rect := box.Rect().Add(bounds.Min).Intersect(bounds)
	if box.Width <= 0 || box.Height <= 0 || rect.Empty() {
		return nil, image.Rectangle{}, entity.ErrEmptyCrop
	}

	if si, ok := img.(subImager); ok {
		return si.SubImage(rect), rect, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst, rect, nil
}
