package app

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"sort"
	"sync"

	"genderage/internal/domain/entity"
)

type fakeLocator struct {
	boxes []entity.BoundingBox
	err   error
}

func (f *fakeLocator) Locate(ctx context.Context, img image.Image) ([]entity.BoundingBox, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]entity.BoundingBox(nil), f.boxes...), nil
}

func (f *fakeLocator) Name() string { return "fake" }

type fakeClassifier struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, face image.Image) (entity.Scores, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, face image.Image) (entity.Scores, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(call, face)
}

func (f *fakeClassifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fixedScores(gender, age []float64) func(int, image.Image) (entity.Scores, error) {
	return func(int, image.Image) (entity.Scores, error) {
		return entity.Scores{Gender: gender, Age: age}, nil
	}
}

func grayImage(w, h int, level uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return img
}

func jpegBytes(img image.Image) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

type fakeDecoder struct{}

func (fakeDecoder) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, entity.ErrInvalidImage
	}
	return img, nil
}

type fakeAnnotator struct {
	err error
}

func (a fakeAnnotator) Annotate(img image.Image, result *entity.DetectionResult) ([]byte, error) {
	if a.err != nil {
		return nil, a.err
	}
	return []byte("annotated"), nil
}

type memoryHistory struct {
	mu      sync.Mutex
	records []entity.DetectionRecord
	err     error
}

func (m *memoryHistory) Save(ctx context.Context, records []entity.DetectionRecord) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		r.ID = uint64(len(m.records) + 1)
		m.records = append(m.records, r)
	}
	return nil
}

func (m *memoryHistory) List(ctx context.Context, owner string, limit int) ([]entity.DetectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.DetectionRecord
	for _, r := range m.records {
		if r.Owner == owner {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryHistory) HasSnapshot(ctx context.Context, owner, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Owner == owner && r.SnapshotKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryHistory) Stats(ctx context.Context, owner string) (*entity.HistoryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &entity.HistoryStats{ByGender: map[string]int{}, ByAge: map[string]int{}, BySource: map[entity.Source]int{}}
	for _, r := range m.records {
		if owner != "" && r.Owner != owner {
			continue
		}
		stats.Total++
		stats.ByGender[r.Face.Gender]++
		stats.ByAge[r.Face.AgeGroup]++
		stats.BySource[r.Face.Source]++
	}
	return stats, nil
}

type memorySnapshots struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memorySnapshots) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = data
	return nil
}

func (m *memorySnapshots) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type memoryAccounts struct {
	mu       sync.Mutex
	accounts []*entity.Account
}

func (m *memoryAccounts) Create(ctx context.Context, a *entity.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uint64(len(m.accounts) + 1)
	cp := *a
	m.accounts = append(m.accounts, &cp)
	return nil
}

func (m *memoryAccounts) find(match func(*entity.Account) bool) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if match(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (m *memoryAccounts) ByUsername(ctx context.Context, username string) (*entity.Account, error) {
	return m.find(func(a *entity.Account) bool { return a.Username == username })
}

func (m *memoryAccounts) ByAPIKey(ctx context.Context, key string) (*entity.Account, error) {
	return m.find(func(a *entity.Account) bool { return a.APIKey == key })
}

func (m *memoryAccounts) UpdateAPIKey(ctx context.Context, id uint64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ID == id {
			a.APIKey = key
			return nil
		}
	}
	return entity.ErrNotFound
}
