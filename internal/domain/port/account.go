package port

import (
	"context"

	"genderage/internal/domain/entity"
)

// AccountRepository интерфейс хранилища учётных записей
type AccountRepository interface {
	Create(ctx context.Context, account *entity.Account) error
	ByUsername(ctx context.Context, username string) (*entity.Account, error)
	ByAPIKey(ctx context.Context, apiKey string) (*entity.Account, error)
	UpdateAPIKey(ctx context.Context, id uint64, apiKey string) error
}
