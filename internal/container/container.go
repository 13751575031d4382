package container

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"

	"gorm.io/gorm"

	"genderage/config"
	app "genderage/internal/application"
	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
	"genderage/internal/infrastructure/storage"
	"genderage/internal/infrastructure/vision"
)

type Container struct {
	Config *config.Config

	Pipeline         *app.Pipeline
	UserService      *app.UserService
	DetectionService *app.DetectionService
	AccountService   *app.AccountService
	HistoryService   *app.HistoryService

	DB      *gorm.DB
	closers []io.Closer
}

// Deps всё, из чего собираются сервисы. Репозитории и хранилище снимков могут быть nil.
type Deps struct {
	Models    app.ModelContext
	Options   app.PipelineOptions
	Decoder   port.ImageDecoder
	Annotator port.Annotator
	Users     port.UserRepository
	Accounts  port.AccountRepository
	History   port.DetectionRepository
	Snapshots port.SnapshotStore
}

func New(deps Deps) (*Container, error) {
	pipeline, err := app.NewPipeline(deps.Models, deps.Options)
	if err != nil {
		return nil, err
	}
	users := deps.Users
	if users == nil {
		users = storage.NewMemoryUserRepository()
	}

	c := &Container{
		Pipeline:         pipeline,
		UserService:      app.NewUserService(users),
		DetectionService: app.NewDetectionService(pipeline, deps.Decoder, deps.Annotator, deps.History, deps.Snapshots),
		HistoryService:   app.NewHistoryService(deps.History),
	}
	if deps.Accounts != nil {
		c.AccountService = app.NewAccountService(deps.Accounts)
	}
	return c, nil
}

// Build загружает модели и, если withStorage, открывает базу и хранилище снимков.
func Build(cfg *config.Config, withStorage bool) (*Container, error) {
	models, closers, err := LoadModels(cfg)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Models:    models,
		Options:   app.PipelineOptions{ClassifyTimeout: cfg.ClassifyTimeout},
		Decoder:   vision.NewDecoder(),
		Annotator: vision.NewAnnotator(),
	}

	var db *gorm.DB
	if withStorage {
		db, err = storage.OpenDB(storage.DBConfig{
			MySQLDSN:   cfg.MySQLDSN,
			SQLiteFile: cfg.SQLiteFile,
			Debug:      cfg.DebugMode,
		})
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		deps.Accounts = storage.NewAccountRepository(db)
		deps.History = storage.NewDetectionRepository(db)

		deps.Snapshots, err = newSnapshotStore(cfg)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
	}

	c, err := New(deps)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	c.Config = cfg
	c.DB = db
	c.closers = closers
	return c, nil
}

// LoadModels выбирает детектор лиц и пытается загрузить сети.
// Отсутствие сетей не ошибка: пайплайн работает на эвристике, причина логируется один раз.
func LoadModels(cfg *config.Config) (app.ModelContext, []io.Closer, error) {
	vocab, err := cfg.Vocabulary()
	if err != nil {
		return app.ModelContext{}, nil, err
	}

	var closers []io.Closer
	models := app.ModelContext{Vocabulary: vocab}

	opts := vision.LocatorOptions{
		ScaleFactor:  cfg.ScaleFactor,
		MinNeighbors: cfg.MinNeighbors,
		MinSize:      cfg.MinSize,
	}
	locator, err := loadLocator(cfg, opts)
	if err != nil {
		return app.ModelContext{}, nil, err
	}
	if c, ok := locator.(io.Closer); ok {
		closers = append(closers, c)
	}
	models.Locator = vision.NewScaledLocator(locator, cfg.MaxImageSide)

	classifier, err := vision.NewCaffeClassifier(vision.ModelPaths{
		GenderProto: cfg.ModelPath(cfg.GenderProto),
		GenderModel: cfg.ModelPath(cfg.GenderModel),
		AgeProto:    cfg.ModelPath(cfg.AgeProto),
		AgeModel:    cfg.ModelPath(cfg.AgeModel),
	})
	if err != nil {
		models.LoadErr = err
		log.Printf("Gender/age models unavailable, using intensity fallback: %v", err)
	} else {
		closers = append(closers, classifier)
		if err := verifyClassifier(context.Background(), classifier, vocab); err != nil {
			closeAll(closers)
			return app.ModelContext{}, nil, err
		}
		models.Classifier = classifier
	}

	log.Printf("Face locator: %s, attribute source: %s", locator.Name(), models.Source())
	return models, closers, nil
}

// verifyClassifier прогоняет пустой кроп и сверяет число выходов сетей со словарём меток.
func verifyClassifier(ctx context.Context, classifier port.AttributeClassifier, vocab entity.Vocabulary) error {
	blank := image.NewRGBA(image.Rect(0, 0, 64, 64))
	scores, err := classifier.Classify(ctx, blank)
	if err != nil {
		return fmt.Errorf("test forward pass: %w", err)
	}
	if n, want := len(scores.Gender), len(vocab.GenderLabels()); n != want {
		return fmt.Errorf("gender net has %d outputs, GENDER_LABELS has %d labels", n, want)
	}
	if n, want := len(scores.Age), len(vocab.AgeLabels()); n != want {
		return fmt.Errorf("age net has %d outputs, AGE_LABELS has %d labels", n, want)
	}
	return nil
}

func loadLocator(cfg *config.Config, opts vision.LocatorOptions) (port.FaceLocator, error) {
	haar := func() (port.FaceLocator, error) {
		l, err := vision.NewCascadeLocator(cfg.ModelPath(cfg.FaceCascade), opts)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	pigo := func() (port.FaceLocator, error) {
		l, err := vision.NewPigoLocator(cfg.ModelPath(cfg.PigoCascade), opts)
		if err != nil {
			return nil, err
		}
		return l, nil
	}

	switch cfg.FaceLocator {
	case config.LocatorHaar:
		return haar()
	case config.LocatorPigo:
		return pigo()
	}

	l, haarErr := haar()
	if haarErr == nil {
		return l, nil
	}
	l, pigoErr := pigo()
	if pigoErr != nil {
		return nil, fmt.Errorf("no face locator available: %w", errors.Join(haarErr, pigoErr))
	}
	log.Printf("Haar cascade unavailable (%v), using pigo", haarErr)
	return l, nil
}

func newSnapshotStore(cfg *config.Config) (port.SnapshotStore, error) {
	if cfg.S3Bucket != "" {
		return storage.NewS3SnapshotStore(storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		})
	}
	if cfg.SnapshotDir != "" {
		return storage.NewDiskSnapshotStore(cfg.SnapshotDir), nil
	}
	return nil, nil
}

// Close освобождает модели и соединение с базой
func (c *Container) Close() error {
	errs := []error{closeAll(c.closers)}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
