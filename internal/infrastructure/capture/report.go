package capture

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"genderage/internal/domain/entity"
)

var reportHeader = []string{"Timestamp", "Gender", "Age", "Image"}

// Report CSV-журнал снимков с вебкамеры: строка на каждое лицо.
type Report struct {
	mu     sync.Mutex
	path   string
	imgDir string
	now    func() time.Time
}

// NewReport создаёт журнал; каталог снимков создаётся при первой записи.
func NewReport(path, imageDir string) *Report {
	return &Report{path: path, imgDir: imageDir, now: time.Now}
}

// Capture сохраняет кадр в JPEG и дописывает строки в CSV. Возвращает путь к снимку.
func (r *Report) Capture(frame image.Image, result *entity.DetectionResult) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now()
	if err := os.MkdirAll(r.imgDir, 0o755); err != nil {
		return "", err
	}
	imgPath := filepath.Join(r.imgDir, fmt.Sprintf("capture_%s.jpg", ts.Format("20060102_150405.000")))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return "", err
	}
	if err := os.WriteFile(imgPath, buf.Bytes(), 0o644); err != nil {
		return "", err
	}

	if result == nil || len(result.Faces) == 0 {
		return imgPath, nil
	}
	rows := make([][]string, 0, len(result.Faces))
	for _, f := range result.Faces {
		rows = append(rows, []string{ts.Format("2006-01-02 15:04:05"), f.Gender.Label, f.Age.Label, imgPath})
	}
	return imgPath, r.append(rows)
}

func (r *Report) append(rows [][]string) error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	_, statErr := os.Stat(r.path)
	newFile := os.IsNotExist(statErr)

	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if newFile {
		if err := w.Write(reportHeader); err != nil {
			return err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

// Counter счётчик лиц по полу за сессию
type Counter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewCounter() *Counter {
	return &Counter{counts: map[string]int{}}
}

// Add учитывает лица кадра
func (c *Counter) Add(result *entity.DetectionResult) {
	if result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for label, n := range result.CountByGender() {
		c.counts[label] += n
	}
}

// Snapshot копия счётчиков
func (c *Counter) Snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
