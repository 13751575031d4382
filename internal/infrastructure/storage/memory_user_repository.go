package storage

import (
	"context"
	"strconv"

	cmap "github.com/orcaman/concurrent-map/v2"

	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
)

// MemoryUserRepository in-memory хранилище диалогов бота, шардированное по ID
type MemoryUserRepository struct {
	users cmap.ConcurrentMap[string, *entity.User]
}

// NewMemoryUserRepository создаёт новое in-memory хранилище
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: cmap.New[*entity.User]()}
}

// Get возвращает пользователя по ID, создаёт нового если не найден
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	key := userKey(userID)
	if user, ok := r.users.Get(key); ok {
		return user, nil
	}
	// Два одновременных Get не должны создать двух разных пользователей.
	r.users.SetIfAbsent(key, entity.NewUser(userID, chatID))
	user, _ := r.users.Get(key)
	return user, nil
}

// Save сохраняет состояние пользователя
func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	r.users.Set(userKey(user.ID), user)
	return nil
}

// UpdateState обновляет состояние пользователя
func (r *MemoryUserRepository) UpdateState(ctx context.Context, userID int64, state entity.UserState) error {
	if user, ok := r.users.Get(userKey(userID)); ok {
		user.SetState(state)
	}
	return nil
}

// Count количество известных пользователей
func (r *MemoryUserRepository) Count() int {
	return r.users.Count()
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Проверка реализации интерфейса
var _ port.UserRepository = (*MemoryUserRepository)(nil)
