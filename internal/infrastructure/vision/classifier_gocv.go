//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"genderage/internal/domain/entity"
)

// CaffeClassifier две Caffe-сети (пол и возраст) через модуль dnn OpenCV.
type CaffeClassifier struct {
	mu        sync.Mutex // dnn::Net хранит состояние между SetInput и Forward
	genderNet gocv.Net
	ageNet    gocv.Net
}

// NewCaffeClassifier загружает обе сети. Любой сбой возвращается как entity.ErrModelUnavailable.
func NewCaffeClassifier(paths ModelPaths) (*CaffeClassifier, error) {
	genderNet := gocv.ReadNetFromCaffe(paths.GenderProto, paths.GenderModel)
	if genderNet.Empty() {
		genderNet.Close()
		return nil, fmt.Errorf("%w: cannot read gender net from %s %s", entity.ErrModelUnavailable, paths.GenderProto, paths.GenderModel)
	}

	ageNet := gocv.ReadNetFromCaffe(paths.AgeProto, paths.AgeModel)
	if ageNet.Empty() {
		genderNet.Close()
		ageNet.Close()
		return nil, fmt.Errorf("%w: cannot read age net from %s %s", entity.ErrModelUnavailable, paths.AgeProto, paths.AgeModel)
	}

	return &CaffeClassifier{genderNet: genderNet, ageNet: ageNet}, nil
}

// Classify прогоняет кроп лица через обе сети.
func (c *CaffeClassifier) Classify(ctx context.Context, face image.Image) (entity.Scores, error) {
	if err := ctx.Err(); err != nil {
		return entity.Scores{}, err
	}

	mat, err := imageToMat(face)
	if err != nil {
		return entity.Scores{}, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(
		mat,
		1.0,
		image.Pt(classifierInputSize, classifierInputSize),
		gocv.NewScalar(meanB, meanG, meanR, 0),
		false,
		false,
	)
	defer blob.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	gender, err := forward(&c.genderNet, blob)
	if err != nil {
		return entity.Scores{}, fmt.Errorf("gender net: %w", err)
	}
	age, err := forward(&c.ageNet, blob)
	if err != nil {
		return entity.Scores{}, fmt.Errorf("age net: %w", err)
	}
	return entity.Scores{Gender: gender, Age: age}, nil
}

// Close освобождает обе сети
func (c *CaffeClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.genderNet.Close(); err != nil {
		return err
	}
	return c.ageNet.Close()
}

func forward(net *gocv.Net, blob gocv.Mat) ([]float64, error) {
	net.SetInput(blob, "")
	preds := net.Forward("")
	defer preds.Close()

	if preds.Empty() || preds.Total() == 0 {
		return nil, fmt.Errorf("empty output")
	}
	out := make([]float64, preds.Total())
	for i := range out {
		out[i] = float64(preds.GetFloatAt(0, i))
	}
	return out, nil
}
