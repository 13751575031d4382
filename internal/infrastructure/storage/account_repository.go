package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
)

type accountRow struct {
	ID           uint64 `gorm:"primaryKey"`
	CreatedAt    time.Time
	Username     string `gorm:"type:varchar(100);uniqueIndex"`
	PasswordHash string `gorm:"type:varchar(150)"`
	PassSalt     string `gorm:"type:varchar(50)"`
	APIKey       string `gorm:"type:varchar(64);uniqueIndex"`
}

func (accountRow) TableName() string { return "accounts" }

func (row accountRow) account() *entity.Account {
	return &entity.Account{
		ID:           row.ID,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		PassSalt:     row.PassSalt,
		APIKey:       row.APIKey,
		CreatedAt:    row.CreatedAt,
	}
}

// AccountRepository учётные записи в SQL через gorm
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository создаёт репозиторий учётных записей
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create сохраняет запись и проставляет ID
func (r *AccountRepository) Create(ctx context.Context, account *entity.Account) error {
	row := accountRow{
		CreatedAt:    account.CreatedAt,
		Username:     account.Username,
		PasswordHash: account.PasswordHash,
		PassSalt:     account.PassSalt,
		APIKey:       account.APIKey,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	account.ID = row.ID
	return nil
}

func (r *AccountRepository) ByUsername(ctx context.Context, username string) (*entity.Account, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *AccountRepository) ByAPIKey(ctx context.Context, apiKey string) (*entity.Account, error) {
	return r.first(ctx, "api_key = ?", apiKey)
}

// UpdateAPIKey заменяет ключ; неизвестный ID: entity.ErrNotFound
func (r *AccountRepository) UpdateAPIKey(ctx context.Context, id uint64, apiKey string) error {
	res := r.db.WithContext(ctx).Model(&accountRow{}).Where("id = ?", id).Update("api_key", apiKey)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) first(ctx context.Context, query string, arg any) (*entity.Account, error) {
	var row accountRow
	err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.account(), nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
