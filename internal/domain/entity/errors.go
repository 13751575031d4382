package entity

import "errors"

var (
	// ErrInvalidImage входные байты не декодируются в изображение
	ErrInvalidImage = errors.New("invalid image")
	// ErrModelUnavailable веса или топология сетей не загрузились на старте
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrEmptyCrop рамка лица не пересекается с изображением
	ErrEmptyCrop = errors.New("empty face crop")
	// ErrClassification сбой прямого прохода для одного лица
	ErrClassification = errors.New("classification failed")
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials неверный логин, пароль или API-ключ
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists логин уже занят
	ErrAccountExists = errors.New("account already exists")
)
