package app

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"genderage/internal/domain/entity"
)

var (
	maleScores = []float64{0.9, 0.1}
	ageScores  = []float64{0.01, 0.02, 0.03, 0.04, 0.8, 0.05, 0.03, 0.02}
)

func newTestPipeline(t *testing.T, loc *fakeLocator, cls *fakeClassifier, opts PipelineOptions) *Pipeline {
	t.Helper()
	models := ModelContext{Locator: loc, Vocabulary: entity.DefaultVocabulary()}
	if cls != nil {
		models.Classifier = cls
	}
	p, err := NewPipeline(models, opts)
	require.NoError(t, err)
	return p
}

func TestNewPipeline_RequiresLocator(t *testing.T) {
	_, err := NewPipeline(ModelContext{Vocabulary: entity.DefaultVocabulary()}, PipelineOptions{})
	require.Error(t, err)
}

func TestPipeline_Source(t *testing.T) {
	loc := &fakeLocator{}
	p := newTestPipeline(t, loc, nil, PipelineOptions{})
	require.Equal(t, entity.SourceFallback, p.Source())
	require.ErrorIs(t, p.LoadErr(), entity.ErrModelUnavailable)
	require.Equal(t, "fake", p.LocatorName())

	p = newTestPipeline(t, loc, &fakeClassifier{fn: fixedScores(maleScores, ageScores)}, PipelineOptions{})
	require.Equal(t, entity.SourceModel, p.Source())
	require.NoError(t, p.LoadErr())
}

func TestPipeline_InvalidImage(t *testing.T) {
	p := newTestPipeline(t, &fakeLocator{}, nil, PipelineOptions{})

	_, err := p.Detect(context.Background(), nil)
	require.ErrorIs(t, err, entity.ErrInvalidImage)

	_, err = p.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)))
	require.ErrorIs(t, err, entity.ErrInvalidImage)
}

func TestPipeline_NoFaces(t *testing.T) {
	cls := &fakeClassifier{fn: fixedScores(maleScores, ageScores)}
	p := newTestPipeline(t, &fakeLocator{}, cls, PipelineOptions{})

	result, err := p.Detect(context.Background(), grayImage(64, 48, 50))
	require.NoError(t, err)
	require.False(t, result.HasFaces)
	require.Empty(t, result.Faces)
	require.Equal(t, 64, result.ImageWidth)
	require.Equal(t, 48, result.ImageHeight)
	require.Zero(t, cls.Calls())
}

func TestPipeline_LocatorError(t *testing.T) {
	boom := errors.New("boom")
	p := newTestPipeline(t, &fakeLocator{err: boom}, nil, PipelineOptions{})

	_, err := p.Detect(context.Background(), grayImage(10, 10, 1))
	require.ErrorIs(t, err, boom)
}

func TestPipeline_TwoFacesInOrder(t *testing.T) {
	loc := &fakeLocator{boxes: []entity.BoundingBox{
		{X: 50, Y: 10, Width: 30, Height: 30},
		{X: 5, Y: 5, Width: 20, Height: 20},
	}}
	cls := &fakeClassifier{fn: func(call int, face image.Image) (entity.Scores, error) {
		if call == 2 {
			return entity.Scores{Gender: []float64{0.2, 0.8}, Age: ageScores}, nil
		}
		return entity.Scores{Gender: maleScores, Age: ageScores}, nil
	}}
	p := newTestPipeline(t, loc, cls, PipelineOptions{})

	result, err := p.Detect(context.Background(), grayImage(100, 100, 90))
	require.NoError(t, err)
	require.True(t, result.HasFaces)
	require.Len(t, result.Faces, 2)

	require.Equal(t, entity.BoundingBox{X: 50, Y: 10, Width: 30, Height: 30}, result.Faces[0].Box)
	require.Equal(t, "Male", result.Faces[0].Gender.Label)
	require.Equal(t, 90.0, result.Faces[0].Gender.Confidence)
	require.Equal(t, "25-32", result.Faces[0].Age.Label)
	require.Equal(t, 80.0, result.Faces[0].Age.Confidence)
	require.Equal(t, entity.SourceModel, result.Faces[0].Source)

	require.Equal(t, "Female", result.Faces[1].Gender.Label)
	require.Equal(t, 80.0, result.Faces[1].Gender.Confidence)

	for _, f := range result.Faces {
		require.GreaterOrEqual(t, f.Gender.Confidence, 0.0)
		require.LessOrEqual(t, f.Gender.Confidence, 100.0)
		require.GreaterOrEqual(t, f.Age.Confidence, 0.0)
		require.LessOrEqual(t, f.Age.Confidence, 100.0)
	}
}

func TestPipeline_SkipsEmptyAndClipsBoxes(t *testing.T) {
	loc := &fakeLocator{boxes: []entity.BoundingBox{
		{X: 10, Y: 10, Width: 0, Height: 20},
		{X: 200, Y: 200, Width: 20, Height: 20},
		{X: 90, Y: 90, Width: 20, Height: 20},
	}}
	cls := &fakeClassifier{fn: fixedScores(maleScores, ageScores)}
	p := newTestPipeline(t, loc, cls, PipelineOptions{})

	result, err := p.Detect(context.Background(), grayImage(100, 100, 90))
	require.NoError(t, err)
	require.Len(t, result.Faces, 1)
	require.Equal(t, entity.BoundingBox{X: 90, Y: 90, Width: 10, Height: 10}, result.Faces[0].Box)
	require.Equal(t, 1, cls.Calls())
}

func TestPipeline_OffsetImageBounds(t *testing.T) {
	base := grayImage(100, 100, 40)
	sub := base.SubImage(image.Rect(20, 20, 80, 80))

	var seen image.Rectangle
	cls := &fakeClassifier{fn: func(_ int, face image.Image) (entity.Scores, error) {
		seen = face.Bounds()
		return entity.Scores{Gender: maleScores, Age: ageScores}, nil
	}}
	loc := &fakeLocator{boxes: []entity.BoundingBox{{X: 10, Y: 10, Width: 20, Height: 20}}}
	p := newTestPipeline(t, loc, cls, PipelineOptions{})

	result, err := p.Detect(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, result.Faces, 1)
	require.Equal(t, image.Rect(30, 30, 50, 50), seen)
	require.Equal(t, entity.BoundingBox{X: 10, Y: 10, Width: 20, Height: 20}, result.Faces[0].Box)
}

func TestPipeline_ClassifierFailureDropsFace(t *testing.T) {
	loc := &fakeLocator{boxes: []entity.BoundingBox{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 20, Y: 20, Width: 10, Height: 10},
		{X: 40, Y: 40, Width: 10, Height: 10},
	}}
	cls := &fakeClassifier{fn: func(call int, face image.Image) (entity.Scores, error) {
		switch call {
		case 2:
			return entity.Scores{}, errors.New("forward failed")
		case 3:
			return entity.Scores{Gender: maleScores, Age: []float64{1}}, nil
		}
		return entity.Scores{Gender: maleScores, Age: ageScores}, nil
	}}
	p := newTestPipeline(t, loc, cls, PipelineOptions{})

	result, err := p.Detect(context.Background(), grayImage(60, 60, 10))
	require.NoError(t, err)
	require.Len(t, result.Faces, 1)
	require.Equal(t, 0, result.Faces[0].Box.X)
	require.True(t, result.HasFaces)
}

func TestPipeline_AllFacesFail(t *testing.T) {
	loc := &fakeLocator{boxes: []entity.BoundingBox{{X: 0, Y: 0, Width: 10, Height: 10}}}
	cls := &fakeClassifier{fn: func(int, image.Image) (entity.Scores, error) {
		return entity.Scores{}, errors.New("forward failed")
	}}
	p := newTestPipeline(t, loc, cls, PipelineOptions{})

	result, err := p.Detect(context.Background(), grayImage(20, 20, 10))
	require.NoError(t, err)
	require.False(t, result.HasFaces)
	require.Empty(t, result.Faces)
}

func TestPipeline_Degraded(t *testing.T) {
	loc := &fakeLocator{boxes: []entity.BoundingBox{{X: 0, Y: 0, Width: 50, Height: 50}}}
	p := newTestPipeline(t, loc, nil, PipelineOptions{})

	result, err := p.Detect(context.Background(), grayImage(100, 100, 128))
	require.NoError(t, err)
	require.Len(t, result.Faces, 1)

	face := result.Faces[0]
	require.Equal(t, entity.SourceFallback, face.Source)
	require.Equal(t, "Male", face.Gender.Label)
	require.Equal(t, 75.0, face.Gender.Confidence)
	require.Equal(t, "0-2", face.Age.Label)
	require.Equal(t, 70.0, face.Age.Confidence)
}

func TestPipeline_Idempotent(t *testing.T) {
	loc := &fakeLocator{boxes: []entity.BoundingBox{{X: 5, Y: 5, Width: 30, Height: 30}}}
	p := newTestPipeline(t, loc, &fakeClassifier{fn: fixedScores(maleScores, ageScores)}, PipelineOptions{})
	img := grayImage(64, 64, 77)

	first, err := p.Detect(context.Background(), img)
	require.NoError(t, err)
	second, err := p.Detect(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestPipeline_ClassifyTimeout(t *testing.T) {
	loc := &fakeLocator{boxes: []entity.BoundingBox{{X: 0, Y: 0, Width: 10, Height: 10}}}
	release := make(chan struct{})
	defer close(release)
	cls := &fakeClassifier{fn: func(int, image.Image) (entity.Scores, error) {
		<-release
		return entity.Scores{Gender: maleScores, Age: ageScores}, nil
	}}
	p := newTestPipeline(t, loc, cls, PipelineOptions{ClassifyTimeout: 20 * time.Millisecond})

	result, err := p.Detect(context.Background(), grayImage(20, 20, 10))
	require.NoError(t, err)
	require.Empty(t, result.Faces)
}

func TestPipeline_CancelledContext(t *testing.T) {
	loc := &fakeLocator{boxes: []entity.BoundingBox{{X: 0, Y: 0, Width: 10, Height: 10}}}
	p := newTestPipeline(t, loc, &fakeClassifier{fn: fixedScores(maleScores, ageScores)}, PipelineOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Detect(ctx, grayImage(20, 20, 10))
	require.ErrorIs(t, err, context.Canceled)
}
