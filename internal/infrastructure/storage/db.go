package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig параметры подключения: MySQL, если задан DSN, иначе файл SQLite
type DBConfig struct {
	MySQLDSN   string
	SQLiteFile string
	Debug      bool
}

// OpenDB открывает базу и создаёт таблицы истории и учётных записей.
func OpenDB(cfg DBConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
	if cfg.Debug {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	if cfg.MySQLDSN != "" {
		dialector = mysql.Open(cfg.MySQLDSN)
	} else {
		if cfg.SQLiteFile == "" {
			return nil, fmt.Errorf("neither MySQL DSN nor SQLite file is configured")
		}
		if dir := filepath.Dir(cfg.SQLiteFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.SQLiteFile)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate создаёт или обновляет таблицы
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&detectionRow{}, &accountRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
