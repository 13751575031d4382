package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"genderage/internal/domain/entity"
)

// Способы поиска лиц
const (
	LocatorAuto = "auto" // haar, если собрано с gocv, иначе pigo
	LocatorHaar = "haar"
	LocatorPigo = "pigo"
)

type Config struct {
	// Модели
	ModelsDir   string
	FaceCascade string
	GenderProto string
	GenderModel string
	AgeProto    string
	AgeModel    string
	PigoCascade string

	// Детектор лиц
	FaceLocator  string
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int

	// Метки выходов сетей
	GenderLabels []string
	AgeLabels    []string

	MaxImageSide    int // длинная сторона копии для поиска лиц; 0: искать на оригинале
	ClassifyTimeout time.Duration

	// HTTP
	BindAddress   string
	TLSDomains    []string
	SessionSecret string
	DebugMode     bool

	// Хранилища
	SQLiteFile  string
	MySQLDSN    string
	SnapshotDir string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string

	TelegramToken string

	// Вебкамера
	ReportFile string
	CaptureDir string
}

// Default значения без переменных окружения
func Default() *Config {
	return &Config{
		ModelsDir:    "models",
		FaceCascade:  "haarcascade_frontalface_default.xml",
		GenderProto:  "gender_deploy.prototxt",
		GenderModel:  "gender_net.caffemodel",
		AgeProto:     "age_deploy.prototxt",
		AgeModel:     "age_net.caffemodel",
		PigoCascade:  "facefinder",
		FaceLocator:  LocatorAuto,
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      30,
		GenderLabels: append([]string(nil), entity.DefaultGenderLabels...),
		AgeLabels:    append([]string(nil), entity.DefaultAgeLabels...),
		MaxImageSide: 0,
		BindAddress:  "0.0.0.0:8080",
		SQLiteFile:   "data/genderage.db",
		SnapshotDir:  "data/snapshots",
		S3Region:     "us-east-1",
		ReportFile:   "captures/report.csv",
		CaptureDir:   "captures",
	}
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := Default()
	readEnvString("MODELS_DIR", &cfg.ModelsDir)
	readEnvString("FACE_CASCADE", &cfg.FaceCascade)
	readEnvString("GENDER_PROTO", &cfg.GenderProto)
	readEnvString("GENDER_MODEL", &cfg.GenderModel)
	readEnvString("AGE_PROTO", &cfg.AgeProto)
	readEnvString("AGE_MODEL", &cfg.AgeModel)
	readEnvString("PIGO_CASCADE", &cfg.PigoCascade)
	readEnvString("FACE_LOCATOR", &cfg.FaceLocator)
	readEnvList("GENDER_LABELS", &cfg.GenderLabels)
	readEnvList("AGE_LABELS", &cfg.AgeLabels)
	if err := errors.Join(
		readEnvFloat("FACE_SCALE_FACTOR", &cfg.ScaleFactor),
		readEnvInt("FACE_MIN_NEIGHBORS", &cfg.MinNeighbors),
		readEnvInt("FACE_MIN_SIZE", &cfg.MinSize),
		readEnvInt("MAX_IMAGE_SIDE", &cfg.MaxImageSide),
		readEnvDuration("CLASSIFY_TIMEOUT", &cfg.ClassifyTimeout),
	); err != nil {
		return nil, err
	}
	readEnvString("BIND_ADDRESS", &cfg.BindAddress)
	readEnvList("TLS_DOMAINS", &cfg.TLSDomains)
	readEnvString("SESSION_SECRET", &cfg.SessionSecret)
	readEnvBool("DEBUG_MODE", &cfg.DebugMode)
	readEnvString("SQLITE_FILE", &cfg.SQLiteFile)
	readEnvString("MYSQL_DSN", &cfg.MySQLDSN)
	readEnvString("SNAPSHOT_DIR", &cfg.SnapshotDir)
	readEnvString("S3_BUCKET", &cfg.S3Bucket)
	readEnvString("S3_REGION", &cfg.S3Region)
	readEnvString("S3_ENDPOINT", &cfg.S3Endpoint)
	readEnvString("S3_ACCESS_KEY", &cfg.S3AccessKey)
	readEnvString("S3_SECRET_KEY", &cfg.S3SecretKey)
	readEnvString("S3_PREFIX", &cfg.S3Prefix)
	readEnvString("TELEGRAM_TOKEN", &cfg.TelegramToken)
	readEnvString("REPORT_FILE", &cfg.ReportFile)
	readEnvString("CAPTURE_DIR", &cfg.CaptureDir)

	if cfg.SessionSecret == "" {
		// Сессии не переживут перезапуск, но работать будут.
		cfg.SessionSecret = randomSecret()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя исправить молча
func (c *Config) Validate() error {
	switch c.FaceLocator {
	case LocatorAuto, LocatorHaar, LocatorPigo:
	default:
		return fmt.Errorf("FACE_LOCATOR must be one of auto, haar, pigo; got %q", c.FaceLocator)
	}
	if c.ScaleFactor <= 1 {
		return fmt.Errorf("FACE_SCALE_FACTOR must be greater than 1, got %v", c.ScaleFactor)
	}
	if c.MinNeighbors < 0 {
		return fmt.Errorf("FACE_MIN_NEIGHBORS must not be negative, got %d", c.MinNeighbors)
	}
	if c.MinSize <= 0 {
		return fmt.Errorf("FACE_MIN_SIZE must be positive, got %d", c.MinSize)
	}
	if c.MaxImageSide < 0 {
		return fmt.Errorf("MAX_IMAGE_SIDE must not be negative, got %d", c.MaxImageSide)
	}
	if c.ClassifyTimeout < 0 {
		return fmt.Errorf("CLASSIFY_TIMEOUT must not be negative, got %s", c.ClassifyTimeout)
	}
	if _, err := c.Vocabulary(); err != nil {
		return err
	}
	return nil
}

// Vocabulary словарь меток из конфигурации
func (c *Config) Vocabulary() (entity.Vocabulary, error) {
	return entity.NewVocabulary(c.GenderLabels, c.AgeLabels)
}

// ModelPath путь к файлу модели: относительные пути берутся от MODELS_DIR
func (c *Config) ModelPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ModelsDir, name)
}

func readEnvString(name string, value *string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	*value = v
}

func readEnvBool(name string, value *bool) {
	v := strings.ToLower(os.Getenv(name))
	if v == "true" || v == "1" || v == "yes" || v == "on" {
		*value = true
	} else if v == "false" || v == "0" || v == "no" || v == "off" {
		*value = false
	}
}

func readEnvFloat(name string, value *float64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*value = f
	return nil
}

func readEnvInt(name string, value *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*value = n
	return nil
}

func readEnvDuration(name string, value *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*value = d
	return nil
}

// readEnvList список через запятую, пустые элементы отбрасываются
func readEnvList(name string, value *[]string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var list []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	*value = list
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
