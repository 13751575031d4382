package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "genderage/internal/application"
	"genderage/internal/domain/entity"
	"genderage/internal/infrastructure/capture"
	"genderage/internal/infrastructure/vision"
)

type boxLocator struct {
	boxes []entity.BoundingBox
}

func (l boxLocator) Name() string { return "fake" }

func (l boxLocator) Locate(ctx context.Context, img image.Image) ([]entity.BoundingBox, error) {
	return l.boxes, nil
}

func newTestDetections(t *testing.T, boxes ...entity.BoundingBox) *app.DetectionService {
	t.Helper()
	pipeline, err := app.NewPipeline(app.ModelContext{
		Locator:    boxLocator{boxes: boxes},
		Vocabulary: entity.DefaultVocabulary(),
	}, app.PipelineOptions{})
	require.NoError(t, err)
	return app.NewDetectionService(pipeline, vision.NewDecoder(), vision.NewRasterAnnotator(), nil, nil)
}

func grayImage(w, h int, level uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return img
}

func writeJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func TestCollectImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	for _, name := range []string{"b.JPG", "a.png", "sub/c.webp", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	paths, err := collectImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.JPG"),
		filepath.Join(dir, "sub", "c.webp"),
	}, paths)

	_, err = collectImages(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestScanImages_KeepsOrderAndErrors(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.jpg")
	writeJPEG(t, good, grayImage(100, 100, 120))
	broken := filepath.Join(dir, "broken.jpg")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o644))
	missing := filepath.Join(dir, "missing.jpg")

	svc := newTestDetections(t, entity.BoundingBox{X: 10, Y: 10, Width: 40, Height: 40})

	var done atomic.Int32
	paths := []string{good, broken, missing, good}
	results := scanImages(context.Background(), svc, paths, 3, func() { done.Add(1) })

	require.Len(t, results, 4)
	assert.Equal(t, int32(4), done.Load())
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}
	require.NoError(t, results[0].Err)
	assert.Len(t, results[0].Result.Faces, 1)
	assert.ErrorIs(t, results[1].Err, entity.ErrInvalidImage)
	assert.Error(t, results[2].Err)
	assert.Equal(t, results[0].Result, results[3].Result)
}

func TestScanImages_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestDetections(t)
	results := scanImages(ctx, svc, []string{"a.jpg", "b.jpg"}, 1, nil)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestWriteScanCSV(t *testing.T) {
	face := entity.FaceResult{
		Box:    entity.BoundingBox{X: 1, Y: 2, Width: 3, Height: 4},
		Gender: entity.AttributePrediction{Label: "Female", Confidence: 97.5},
		Age:    entity.AttributePrediction{Label: "25-32", Confidence: 61.25},
		Source: entity.SourceModel,
	}
	results := []scanResult{
		{Path: "a.jpg", Result: &entity.DetectionResult{Faces: []entity.FaceResult{face}, HasFaces: true}},
		{Path: "b.jpg", Err: entity.ErrInvalidImage},
		{Path: "c.jpg", Result: &entity.DetectionResult{}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeScanCSV(&buf, results))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Path", rows[0][0])
	assert.Equal(t, []string{"a.jpg", "1", "2", "3", "4", "Female", "97.50", "25-32", "61.25", "model"}, rows[1])
}

func TestPrintSummary(t *testing.T) {
	results := []scanResult{
		{Path: "a.jpg", Result: &entity.DetectionResult{HasFaces: true, Faces: []entity.FaceResult{
			{Gender: entity.AttributePrediction{Label: "Male"}},
			{Gender: entity.AttributePrediction{Label: "Female"}},
		}}},
		{Path: "b.jpg", Err: entity.ErrInvalidImage},
	}

	var buf bytes.Buffer
	printSummary(&buf, results)
	out := buf.String()
	assert.Contains(t, out, "Images: 1, failed: 1, faces: 2")
	assert.Contains(t, out, "Female: 1")
	assert.Contains(t, out, "Male: 1")
	assert.Less(t, strings.Index(out, "Female"), strings.Index(out, "Male"))
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, "empty.jpg", &entity.DetectionResult{})
	assert.Equal(t, "empty.jpg: no face detected\n", buf.String())

	buf.Reset()
	printResult(&buf, "one.jpg", &entity.DetectionResult{HasFaces: true, Faces: []entity.FaceResult{{
		Box:    entity.BoundingBox{X: 5, Y: 6, Width: 70, Height: 80},
		Gender: entity.AttributePrediction{Label: "Male", Confidence: 75},
		Age:    entity.AttributePrediction{Label: "(38-43)", Confidence: 70},
		Source: entity.SourceFallback,
	}}})
	assert.Contains(t, buf.String(), "one.jpg: 1 face(s)")
	assert.Contains(t, buf.String(), "1. [5,6 70x80] Male (75.00%), age (38-43) (70.00%), fallback")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, &entity.DetectionResult{ImageWidth: 10, ImageHeight: 20}))
	assert.Contains(t, buf.String(), `"width": 10`)
	assert.Contains(t, buf.String(), `"faces": []`)
}

func TestReadKeys(t *testing.T) {
	keys := readKeys(context.Background(), strings.NewReader("c\n\n  Q \nhello\n"))
	var got []int
	for k := range keys {
		got = append(got, k)
	}
	assert.Equal(t, []int{'c', 'q', 'h'}, got)
}

func TestReadKeys_StopsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	keys := readKeys(ctx, strings.NewReader("c\nq\n"))
	select {
	case _, ok := <-keys:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("key reader did not stop")
	}
}

func TestWebcamSession_CaptureAndQuit(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	session := &webcamSession{
		detections: newTestDetections(t, entity.BoundingBox{X: 0, Y: 0, Width: 32, Height: 32}),
		report:     capture.NewReport(filepath.Join(dir, "report.csv"), filepath.Join(dir, "img")),
		counter:    capture.NewCounter(),
		out:        &out,
	}
	ctx := context.Background()

	assert.False(t, session.handleKey(ctx, keyCapture))
	assert.Empty(t, session.counter.Snapshot())

	require.NoError(t, session.process(ctx, grayImage(64, 64, 100)))
	assert.Contains(t, out.String(), "Faces in frame: 1")

	assert.False(t, session.handleKey(ctx, keyCapture))
	assert.Contains(t, out.String(), "Captured 1 face(s)")
	assert.FileExists(t, filepath.Join(dir, "report.csv"))

	total := 0
	for _, n := range session.counter.Snapshot() {
		total += n
	}
	assert.Equal(t, 1, total)

	session.printTotals()
	assert.Contains(t, out.String(), "Captured totals:")

	assert.True(t, session.handleKey(ctx, keyQuit))
	assert.True(t, session.handleKey(ctx, keyEscape))
	assert.False(t, session.handleKey(ctx, -1))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "bot", "detect", "scan", "webcam", "user"} {
		assert.True(t, names[want], want)
	}
}
