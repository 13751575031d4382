package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
)

// DetectionService связывает декодер, пайплайн, разметку и историю.
// Фронтенды (REST, бот, CLI, вебкамера) работают только через него.
type DetectionService struct {
	pipeline  *Pipeline
	decoder   port.ImageDecoder
	annotator port.Annotator
	history   port.DetectionRepository
	snapshots port.SnapshotStore
	now       func() time.Time
}

// PhotoRequest загруженное изображение и его происхождение
type PhotoRequest struct {
	Owner        string
	Channel      entity.Channel
	Data         []byte
	KeepSnapshot bool // сохранить размеченный кадр в хранилище снимков
}

// FrameRequest уже декодированный кадр (вебкамера, поток)
type FrameRequest struct {
	Owner        string
	Channel      entity.Channel
	Image        image.Image
	KeepSnapshot bool
}

// DetectionOutput содержит результат и картинку с разметкой.
type DetectionOutput struct {
	Result      *entity.DetectionResult
	Annotated   []byte // JPEG; пусто, если лиц нет или разметка не настроена
	SnapshotKey string
}

// NewDetectionService создаёт сервис. annotator, history и snapshots могут быть nil.
func NewDetectionService(pipeline *Pipeline, decoder port.ImageDecoder, annotator port.Annotator, history port.DetectionRepository, snapshots port.SnapshotStore) *DetectionService {
	return &DetectionService{
		pipeline:  pipeline,
		decoder:   decoder,
		annotator: annotator,
		history:   history,
		snapshots: snapshots,
		now:       time.Now,
	}
}

// Pipeline возвращает пайплайн сервиса
func (s *DetectionService) Pipeline() *Pipeline {
	return s.pipeline
}

// Decode превращает байты в изображение
func (s *DetectionService) Decode(data []byte) (image.Image, error) {
	if s.decoder == nil {
		return nil, errors.New("image decoder is not configured")
	}
	if len(data) == 0 {
		return nil, entity.ErrInvalidImage
	}
	return s.decoder.Decode(data)
}

// Detect декодирует байты и прогоняет пайплайн без записи в историю.
func (s *DetectionService) Detect(ctx context.Context, data []byte) (*entity.DetectionResult, image.Image, error) {
	img, err := s.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.pipeline.Detect(ctx, img)
	if err != nil {
		return nil, nil, err
	}
	return result, img, nil
}

// Annotate рисует рамки; без аннотатора возвращает nil.
func (s *DetectionService) Annotate(img image.Image, result *entity.DetectionResult) ([]byte, error) {
	if s.annotator == nil || result == nil || !result.HasFaces {
		return nil, nil
	}
	return s.annotator.Annotate(img, result)
}

// ProcessPhoto полный сценарий для загруженного файла.
func (s *DetectionService) ProcessPhoto(ctx context.Context, req PhotoRequest) (*DetectionOutput, error) {
	img, err := s.Decode(req.Data)
	if err != nil {
		return nil, err
	}
	return s.ProcessFrame(ctx, FrameRequest{
		Owner:        req.Owner,
		Channel:      req.Channel,
		Image:        img,
		KeepSnapshot: req.KeepSnapshot,
	})
}

// ProcessFrame распознаёт кадр, размечает, сохраняет снимок и историю.
// Ошибки разметки и сохранения только логируются: результат уже получен.
func (s *DetectionService) ProcessFrame(ctx context.Context, req FrameRequest) (*DetectionOutput, error) {
	result, err := s.pipeline.Detect(ctx, req.Image)
	if err != nil {
		return nil, err
	}

	out := &DetectionOutput{Result: result}
	if !result.HasFaces {
		return out, nil
	}

	out.Annotated, err = s.Annotate(req.Image, result)
	if err != nil {
		log.Printf("Annotate error: %v", err)
	}

	if req.KeepSnapshot && s.snapshots != nil && len(out.Annotated) > 0 {
		key := s.snapshotKey(req.Channel)
		if err := s.snapshots.Save(ctx, key, out.Annotated); err != nil {
			log.Printf("Snapshot save error: %v", err)
		} else {
			out.SnapshotKey = key
		}
	}

	if err := s.Record(ctx, req.Owner, req.Channel, result, out.SnapshotKey); err != nil {
		log.Printf("History save error: %v", err)
	}

	return out, nil
}

// Record пишет по одной строке истории на каждое лицо.
func (s *DetectionService) Record(ctx context.Context, owner string, channel entity.Channel, result *entity.DetectionResult, snapshotKey string) error {
	if s.history == nil || result == nil || len(result.Faces) == 0 {
		return nil
	}

	now := s.now().UTC()
	records := make([]entity.DetectionRecord, 0, len(result.Faces))
	for _, face := range result.Faces {
		records = append(records, entity.DetectionRecord{
			CreatedAt:   now,
			Owner:       owner,
			Channel:     channel,
			Face:        face.Record(),
			SnapshotKey: snapshotKey,
		})
	}
	if err := s.history.Save(ctx, records); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// OpenSnapshot отдаёт снимок, только если он есть в истории владельца.
// Чужой ключ неотличим от несуществующего: entity.ErrNotFound.
func (s *DetectionService) OpenSnapshot(ctx context.Context, owner, key string) (io.ReadCloser, error) {
	if s.snapshots == nil || s.history == nil || key == "" {
		return nil, entity.ErrNotFound
	}
	ok, err := s.history.HasSnapshot(ctx, owner, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, entity.ErrNotFound
	}
	return s.snapshots.Open(ctx, key)
}

func (s *DetectionService) snapshotKey(channel entity.Channel) string {
	return fmt.Sprintf("%s/%s/%s.jpg", channel, s.now().UTC().Format("2006/01/02"), uuid.NewString())
}
