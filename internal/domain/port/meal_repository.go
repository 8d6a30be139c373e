package port

import (
	"context"

	"food-scale/internal/domain/entity"
)

// MealRepository интерфейс журнала распознанных приёмов пищи
type MealRepository interface {
	// Save добавляет запись в журнал
	Save(ctx context.Context, meal *entity.MealRecord) error

	// List возвращает последние записи, новые первыми
	List(ctx context.Context, limit int) ([]*entity.MealRecord, error)

	// Get возвращает запись по ID или entity.ErrMealNotFound
	Get(ctx context.Context, id string) (*entity.MealRecord, error)
}
