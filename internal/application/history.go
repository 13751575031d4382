package app

import (
	"context"
	"errors"

	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// HistoryService чтение истории распознаваний для дашборда
type HistoryService struct {
	repo port.DetectionRepository
}

// NewHistoryService создаёт сервис истории
func NewHistoryService(repo port.DetectionRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// List последние записи владельца; limit <= 0 заменяется значением по умолчанию.
func (s *HistoryService) List(ctx context.Context, owner string, limit int) ([]entity.DetectionRecord, error) {
	if s.repo == nil {
		return nil, errors.New("history is not configured")
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	return s.repo.List(ctx, owner, limit)
}

// Stats агрегаты по владельцу
func (s *HistoryService) Stats(ctx context.Context, owner string) (*entity.HistoryStats, error) {
	if s.repo == nil {
		return nil, errors.New("history is not configured")
	}
	return s.repo.Stats(ctx, owner)
}
