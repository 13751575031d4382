package entity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// DefaultGenderLabels порядок выходов gender_net
	DefaultGenderLabels = []string{"Male", "Female"}
	// DefaultAgeLabels восемь возрастных групп Adience, по числу выходов age_net
	DefaultAgeLabels = []string{"0-2", "4-6", "8-12", "15-20", "25-32", "38-43", "48-53", "60+"}
)

// Scores распределения вероятностей, которые вернули сети
type Scores struct {
	Gender []float64
	Age    []float64
}

// Vocabulary неизменяемые списки меток; индекс выхода сети соответствует позиции метки.
type Vocabulary struct {
	gender []string
	age    []string
}

// NewVocabulary проверяет и копирует списки меток.
func NewVocabulary(gender, age []string) (Vocabulary, error) {
	if len(gender) != 2 {
		return Vocabulary{}, fmt.Errorf("gender vocabulary must have exactly 2 labels, got %d", len(gender))
	}
	if len(age) == 0 {
		return Vocabulary{}, fmt.Errorf("age vocabulary is empty")
	}
	for _, l := range append(append([]string{}, gender...), age...) {
		if l == "" {
			return Vocabulary{}, fmt.Errorf("vocabulary contains an empty label")
		}
	}
	return Vocabulary{
		gender: append([]string(nil), gender...),
		age:    append([]string(nil), age...),
	}, nil
}

// DefaultVocabulary словарь по умолчанию
func DefaultVocabulary() Vocabulary {
	v, _ := NewVocabulary(DefaultGenderLabels, DefaultAgeLabels)
	return v
}

// GenderLabels возвращает копию меток пола
func (v Vocabulary) GenderLabels() []string { return append([]string(nil), v.gender...) }

// AgeLabels возвращает копию возрастных групп
func (v Vocabulary) AgeLabels() []string { return append([]string(nil), v.age...) }

// GenderAt метка пола по индексу, индекс берётся по модулю длины словаря
func (v Vocabulary) GenderAt(i int) string { return v.gender[mod(i, len(v.gender))] }

// AgeAt возрастная группа по индексу, индекс берётся по модулю длины словаря
func (v Vocabulary) AgeAt(i int) string { return v.age[mod(i, len(v.age))] }

// HasGender проверяет, что метка есть в словаре
func (v Vocabulary) HasGender(label string) bool { return contains(v.gender, label) }

// HasAge проверяет, что группа есть в словаре
func (v Vocabulary) HasAge(label string) bool { return contains(v.age, label) }

// Attributes переводит выходы сетей в метки: arg-max и максимум в процентах.
func (v Vocabulary) Attributes(s Scores) (FaceAttributes, error) {
	gender, err := predict(s.Gender, v.gender)
	if err != nil {
		return FaceAttributes{}, fmt.Errorf("gender: %w", err)
	}
	age, err := predict(s.Age, v.age)
	if err != nil {
		return FaceAttributes{}, fmt.Errorf("age: %w", err)
	}
	return FaceAttributes{Gender: gender, Age: age, Source: SourceModel}, nil
}

func predict(scores []float64, labels []string) (AttributePrediction, error) {
	if len(scores) != len(labels) {
		return AttributePrediction{}, fmt.Errorf("%w: %d scores for %d labels", ErrClassification, len(scores), len(labels))
	}
	for _, s := range scores {
		if math.IsNaN(s) {
			return AttributePrediction{}, fmt.Errorf("%w: NaN score", ErrClassification)
		}
	}
	idx := floats.MaxIdx(scores)
	return AttributePrediction{Label: labels[idx], Confidence: Confidence(scores[idx])}, nil
}

// Confidence переводит вероятность в проценты с двумя знаками и зажимает в [0, 100].
func Confidence(p float64) float64 {
	pct := math.Round(p*100*100) / 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func mod(i, n int) int {
	r := i % n
	if r < 0 {
		r += n
	}
	return r
}

func contains(list []string, s string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}
