package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
)

// detectionRow одна строка истории, одно лицо
type detectionRow struct {
	ID               uint64    `gorm:"primaryKey"`
	CreatedAt        time.Time `gorm:"index"`
	Owner            string    `gorm:"type:varchar(100);index"`
	Channel          string    `gorm:"type:varchar(20)"`
	BoxX             int
	BoxY             int
	BoxW             int
	BoxH             int
	Gender           string `gorm:"type:varchar(50)"`
	GenderConfidence float64
	AgeGroup         string `gorm:"type:varchar(50)"`
	AgeConfidence    float64
	Source           string `gorm:"type:varchar(20)"`
	SnapshotKey      string `gorm:"type:varchar(255)"`
}

func (detectionRow) TableName() string { return "detections" }

func rowFromRecord(r entity.DetectionRecord) detectionRow {
	return detectionRow{
		ID:               r.ID,
		CreatedAt:        r.CreatedAt,
		Owner:            r.Owner,
		Channel:          string(r.Channel),
		BoxX:             r.Face.BoxX,
		BoxY:             r.Face.BoxY,
		BoxW:             r.Face.BoxW,
		BoxH:             r.Face.BoxH,
		Gender:           r.Face.Gender,
		GenderConfidence: r.Face.GenderConfidence,
		AgeGroup:         r.Face.AgeGroup,
		AgeConfidence:    r.Face.AgeConfidence,
		Source:           string(r.Face.Source),
		SnapshotKey:      r.SnapshotKey,
	}
}

func (row detectionRow) record() entity.DetectionRecord {
	return entity.DetectionRecord{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
		Owner:     row.Owner,
		Channel:   entity.Channel(row.Channel),
		Face: entity.FaceRecord{
			BoxX:             row.BoxX,
			BoxY:             row.BoxY,
			BoxW:             row.BoxW,
			BoxH:             row.BoxH,
			Gender:           row.Gender,
			GenderConfidence: row.GenderConfidence,
			AgeGroup:         row.AgeGroup,
			AgeConfidence:    row.AgeConfidence,
			Source:           entity.Source(row.Source),
		},
		SnapshotKey: row.SnapshotKey,
	}
}

// DetectionRepository история распознаваний в SQL через gorm
type DetectionRepository struct {
	db *gorm.DB
}

// NewDetectionRepository создаёт репозиторий истории
func NewDetectionRepository(db *gorm.DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// Save пишет все записи одной транзакцией
func (r *DetectionRepository) Save(ctx context.Context, records []entity.DetectionRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]detectionRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rowFromRecord(rec))
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
}

// List последние записи владельца, новые первыми
func (r *DetectionRepository) List(ctx context.Context, owner string, limit int) ([]entity.DetectionRecord, error) {
	var rows []detectionRow
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	records := make([]entity.DetectionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

type labelCount struct {
	Label string
	N     int
}

// Stats агрегаты по полу, возрасту и источнику
func (r *DetectionRepository) Stats(ctx context.Context, owner string) (*entity.HistoryStats, error) {
	stats := &entity.HistoryStats{
		ByGender: map[string]int{},
		ByAge:    map[string]int{},
		BySource: map[entity.Source]int{},
	}

	groups := []struct {
		column string
		add    func(label string, n int)
	}{
		{"gender", func(l string, n int) { stats.ByGender[l] = n }},
		{"age_group", func(l string, n int) { stats.ByAge[l] = n }},
		{"source", func(l string, n int) { stats.BySource[entity.Source(l)] = n }},
	}
	for _, g := range groups {
		var counts []labelCount
		if err := r.scoped(ctx, owner).
			Select(g.column + " AS label, COUNT(*) AS n").
			Group(g.column).
			Scan(&counts).Error; err != nil {
			return nil, fmt.Errorf("stats by %s: %w", g.column, err)
		}
		for _, c := range counts {
			g.add(c.Label, c.N)
			if g.column == "gender" {
				stats.Total += c.N
			}
		}
	}
	return stats, nil
}

// HasSnapshot есть ли у владельца запись с этим ключом снимка
func (r *DetectionRepository) HasSnapshot(ctx context.Context, owner, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	var n int64
	err := r.db.WithContext(ctx).Model(&detectionRow{}).
		Where("owner = ? AND snapshot_key = ?", owner, key).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *DetectionRepository) scoped(ctx context.Context, owner string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&detectionRow{})
	if owner != "" {
		q = q.Where("owner = ?", owner)
	}
	return q
}

var _ port.DetectionRepository = (*DetectionRepository)(nil)
