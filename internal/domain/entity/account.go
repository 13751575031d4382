package entity

import "time"

// Account учётная запись дашборда и REST API
type Account struct {
	ID           uint64
	Username     string
	PasswordHash string
	PassSalt     string
	APIKey       string
	CreatedAt    time.Time
}
