package entity

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoundingBoxCenter(t *testing.T) {
	b := BoundingBox{X: 10, Y: 20, Width: 8, Height: 6}
	x, y := b.Center()
	require.Equal(t, 14, x)
	require.Equal(t, 23, y)
}

func TestBoundingBoxClip(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 80)

	inside := BoundingBox{X: 10, Y: 10, Width: 20, Height: 20}
	require.Equal(t, image.Rect(10, 10, 30, 30), inside.Clip(bounds))

	partial := BoundingBox{X: 90, Y: 70, Width: 20, Height: 20}
	require.Equal(t, image.Rect(90, 70, 100, 80), partial.Clip(bounds))

	outside := BoundingBox{X: 200, Y: 200, Width: 10, Height: 10}
	require.True(t, outside.Clip(bounds).Empty())

	zero := BoundingBox{X: 10, Y: 10, Width: 0, Height: 10}
	require.True(t, zero.Clip(bounds).Empty())
}

func TestFaceResultRecord(t *testing.T) {
	f := FaceResult{
		Box:    BoundingBox{X: 1, Y: 2, Width: 3, Height: 4},
		Gender: AttributePrediction{Label: "Female", Confidence: 91.5},
		Age:    AttributePrediction{Label: "25-32", Confidence: 40.25},
		Source: SourceModel,
	}
	rec := f.Record()
	require.Equal(t, FaceRecord{
		BoxX: 1, BoxY: 2, BoxW: 3, BoxH: 4,
		Gender: "Female", GenderConfidence: 91.5,
		AgeGroup: "25-32", AgeConfidence: 40.25,
		Source: SourceModel,
	}, rec)
	require.Equal(t, "Female (91.50%), 25-32 (40.25%)", f.Label())
}

func TestDetectionResultCountByGender(t *testing.T) {
	r := &DetectionResult{Faces: []FaceResult{
		{Gender: AttributePrediction{Label: "Male"}},
		{Gender: AttributePrediction{Label: "Female"}},
		{Gender: AttributePrediction{Label: "Male"}},
	}}
	counts := r.CountByGender()
	require.Equal(t, 2, counts["Male"])
	require.Equal(t, 1, counts["Female"])
	require.Len(t, r.Records(), 3)
}
