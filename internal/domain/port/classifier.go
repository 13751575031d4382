package port

import (
	"context"
	"image"

	"genderage/internal/domain/entity"
)

// AttributeClassifier интерфейс классификатора пола и возраста
type AttributeClassifier interface {
	// Classify прогоняет непустой кроп лица через обе сети и возвращает распределения
	Classify(ctx context.Context, face image.Image) (entity.Scores, error)
}
