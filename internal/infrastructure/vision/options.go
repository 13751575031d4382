package vision

import (
	"errors"
	"image"
)

// ErrNoGoCV сборка без тега gocv
var ErrNoGoCV = errors.New("gocv build tag is not enabled")

// LocatorOptions параметры каскадного детектора лиц
type LocatorOptions struct {
	ScaleFactor  float64 // шаг пирамиды масштабов, > 1
	MinNeighbors int     // сколько перекрывающихся окон нужно для подтверждения лица
	MinSize      int     // минимальная сторона лица в пикселях
	MaxSize      int     // максимальная сторона; 0: без ограничения
}

// DefaultLocatorOptions значения по умолчанию
func DefaultLocatorOptions() LocatorOptions {
	return LocatorOptions{
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      30,
	}
}

func (o LocatorOptions) normalized() LocatorOptions {
	def := DefaultLocatorOptions()
	if o.ScaleFactor <= 1 {
		o.ScaleFactor = def.ScaleFactor
	}
	if o.MinNeighbors < 0 {
		o.MinNeighbors = def.MinNeighbors
	}
	if o.MinSize <= 0 {
		o.MinSize = def.MinSize
	}
	return o
}

func (o LocatorOptions) maxSizeFor(bounds image.Rectangle) int {
	if o.MaxSize > 0 {
		return o.MaxSize
	}
	side := bounds.Dx()
	if bounds.Dy() > side {
		side = bounds.Dy()
	}
	return side
}

// ModelPaths файлы двух Caffe-сетей
type ModelPaths struct {
	GenderProto string
	GenderModel string
	AgeProto    string
	AgeModel    string
}

// Средние значения обучающей выборки в порядке каналов B, G, R.
const (
	meanB = 78.4263377603
	meanG = 87.7689143744
	meanR = 114.895847746
)

// classifierInputSize сторона входа обеих сетей
const classifierInputSize = 227
