package port

import (
	"context"

	"genderage/internal/domain/entity"
)

// DetectionRepository интерфейс хранилища истории распознаваний
type DetectionRepository interface {
	// Save сохраняет записи, одна запись на лицо
	Save(ctx context.Context, records []entity.DetectionRecord) error

	// List возвращает последние записи владельца, новые первыми
	List(ctx context.Context, owner string, limit int) ([]entity.DetectionRecord, error)

	// Stats считает агрегаты по владельцу; пустой owner: по всем
	Stats(ctx context.Context, owner string) (*entity.HistoryStats, error)

	// HasSnapshot проверяет, что снимок с таким ключом записан в историю владельца
	HasSnapshot(ctx context.Context, owner, key string) (bool, error)
}
