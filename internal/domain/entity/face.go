package entity

import "image"

// BoundingBox прямоугольник лица в координатах изображения
type BoundingBox struct {
	X      int // координата X левого верхнего угла
	Y      int // координата Y левого верхнего угла
	Width  int // ширина области в пикселях
	Height int // высота области в пикселях
}

// BoxFromRect переводит image.Rectangle в BoundingBox.
func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect возвращает прямоугольник в виде image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Clip обрезает рамку по границам изображения. Пустой результат означает нулевую площадь.
func (b BoundingBox) Clip(bounds image.Rectangle) image.Rectangle {
	if b.Width <= 0 || b.Height <= 0 {
		return image.Rectangle{}
	}
	return b.Rect().Intersect(bounds)
}

// Center возвращает координаты центра рамки
func (b BoundingBox) Center() (x, y int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Area возвращает площадь рамки
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// Source показывает, откуда взялось предсказание
type Source string

const (
	SourceModel    Source = "model"    // настоящий прогон нейросетей
	SourceFallback Source = "fallback" // эвристика по средней яркости
)

// AttributePrediction метка и уверенность в процентах [0, 100]
type AttributePrediction struct {
	Label      string
	Confidence float64
}

// FaceAttributes пол и возраст одного лица
type FaceAttributes struct {
	Gender AttributePrediction
	Age    AttributePrediction
	Source Source
}

// FaceResult одно найденное лицо с атрибутами
type FaceResult struct {
	Box    BoundingBox
	Gender AttributePrediction
	Age    AttributePrediction
	Source Source
}

// FaceRecord плоская запись лица: так она сохраняется и отдаётся наружу.
type FaceRecord struct {
	BoxX             int     `json:"boxX"`
	BoxY             int     `json:"boxY"`
	BoxW             int     `json:"boxW"`
	BoxH             int     `json:"boxH"`
	Gender           string  `json:"gender"`
	GenderConfidence float64 `json:"genderConfidence"`
	AgeGroup         string  `json:"ageGroup"`
	AgeConfidence    float64 `json:"ageConfidence"`
	Source           Source  `json:"source"`
}

// Record превращает результат в плоскую запись
func (f FaceResult) Record() FaceRecord {
	return FaceRecord{
		BoxX:             f.Box.X,
		BoxY:             f.Box.Y,
		BoxW:             f.Box.Width,
		BoxH:             f.Box.Height,
		Gender:           f.Gender.Label,
		GenderConfidence: f.Gender.Confidence,
		AgeGroup:         f.Age.Label,
		AgeConfidence:    f.Age.Confidence,
		Source:           f.Source,
	}
}

// Label короткая подпись для оверлея, например "Male (98.12%), 25-32 (64.50%)".
func (f FaceResult) Label() string {
	return f.Gender.Label + " (" + formatPct(f.Gender.Confidence) + "), " +
		f.Age.Label + " (" + formatPct(f.Age.Confidence) + ")"
}
