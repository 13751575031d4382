package app

import (
	"genderage/internal/domain/entity"
	"genderage/internal/domain/port"
)

// ModelContext загруженные на старте ресурсы. После создания не меняется и
// читается конкурентно всеми вызовами пайплайна.
type ModelContext struct {
	Locator    port.FaceLocator
	Classifier port.AttributeClassifier // nil: сети не загрузились, работает эвристика
	Vocabulary entity.Vocabulary
	LoadErr    error // причина деградации, если Classifier == nil
}

// Source откуда будут браться атрибуты лиц
func (m ModelContext) Source() entity.Source {
	if m.Classifier == nil {
		return entity.SourceFallback
	}
	return entity.SourceModel
}
