package entity

import "strconv"

// DetectionResult хранит итог анализа изображения.
type DetectionResult struct {
	ImageWidth  int          // ширина изображения
	ImageHeight int          // высота изображения
	Faces       []FaceResult // лица в порядке, в котором их вернул детектор
	HasFaces    bool         // флаг наличия лиц
}

// Records возвращает плоские записи всех лиц
func (r *DetectionResult) Records() []FaceRecord {
	records := make([]FaceRecord, 0, len(r.Faces))
	for _, f := range r.Faces {
		records = append(records, f.Record())
	}
	return records
}

// CountByGender считает лица по метке пола
func (r *DetectionResult) CountByGender() map[string]int {
	counts := make(map[string]int, 2)
	for _, f := range r.Faces {
		counts[f.Gender.Label]++
	}
	return counts
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
