package port

import (
	"context"

	"food-scale/internal/domain/entity"
)

// Detector интерфейс детектора еды
type Detector interface {
	// Detect распознаёт объекты на изображении
	Detect(ctx context.Context, imageData []byte) ([]entity.Detection, error)

	// Close освобождает ресурсы модели
	Close() error
}

// Annotator рисует рамки обнаружений поверх изображения
type Annotator interface {
	// Annotate возвращает JPEG с подписанными рамками
	Annotate(imageData []byte, detections []entity.Detection) ([]byte, error)
}
