package app

import (
	"context"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"

	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
)

const saltSize = 16

// APIKeyCacheTTL сколько ключ живёт в кэше до повторной проверки в базе.
// Ключ, отозванный другим процессом, перестаёт работать не позже чем через этот срок.
const APIKeyCacheTTL = 30 * time.Second

type cachedAccount struct {
	account *entity.Account
	expires time.Time
}

// AccountService учётные записи дашборда и API-ключи для /predict.
type AccountService struct {
	repo port.AccountRepository
	// Кэш API-ключей: /predict дергается на каждый кадр.
	keys cmap.ConcurrentMap[string, cachedAccount]
	ttl  time.Duration
	now  func() time.Time
}

// NewAccountService создаёт сервис учётных записей
func NewAccountService(repo port.AccountRepository) *AccountService {
	return &AccountService{
		repo: repo,
		keys: cmap.New[cachedAccount](),
		ttl:  APIKeyCacheTTL,
		now:  time.Now,
	}
}

// Register создаёт учётную запись с новым API-ключом.
func (s *AccountService) Register(ctx context.Context, username, password string) (*entity.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	_, err := s.repo.ByUsername(ctx, username)
	if err == nil {
		return nil, entity.ErrAccountExists
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}

	salt, err := randSalt(saltSize)
	if err != nil {
		return nil, err
	}
	account := &entity.Account{
		Username:     username,
		PassSalt:     salt,
		PasswordHash: sha512String(password + salt),
		APIKey:       newAPIKey(),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// Login проверяет пароль. Неизвестный логин и неверный пароль неразличимы.
func (s *AccountService) Login(ctx context.Context, username, password string) (*entity.Account, error) {
	account, err := s.repo.ByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, entity.ErrNotFound) {
		return nil, entity.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	hash := sha512String(password + account.PassSalt)
	if subtle.ConstantTimeCompare([]byte(hash), []byte(account.PasswordHash)) != 1 {
		return nil, entity.ErrInvalidCredentials
	}
	return account, nil
}

// Authenticate ищет учётную запись по API-ключу.
func (s *AccountService) Authenticate(ctx context.Context, apiKey string) (*entity.Account, error) {
	if apiKey == "" {
		return nil, entity.ErrInvalidCredentials
	}
	now := s.now()
	if cached, ok := s.keys.Get(apiKey); ok && now.Before(cached.expires) {
		return cached.account, nil
	}

	account, err := s.repo.ByAPIKey(ctx, apiKey)
	if errors.Is(err, entity.ErrNotFound) {
		s.keys.Remove(apiKey)
		return nil, entity.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	s.keys.Set(apiKey, cachedAccount{account: account, expires: now.Add(s.ttl)})
	return account, nil
}

// ByUsername возвращает учётную запись по логину
func (s *AccountService) ByUsername(ctx context.Context, username string) (*entity.Account, error) {
	return s.repo.ByUsername(ctx, username)
}

// RotateAPIKey выдаёт новый ключ. В этом процессе старый перестаёт работать сразу,
// в остальных после истечения APIKeyCacheTTL.
func (s *AccountService) RotateAPIKey(ctx context.Context, username string) (string, error) {
	account, err := s.repo.ByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	key := newAPIKey()
	if err := s.repo.UpdateAPIKey(ctx, account.ID, key); err != nil {
		return "", fmt.Errorf("update api key: %w", err)
	}
	s.keys.Remove(account.APIKey)
	return key, nil
}

func sha512String(s string) string {
	hash := sha512.Sum512([]byte(s))
	return hex.EncodeToString(hash[:])
}

func randSalt(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func newAPIKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
