package entity

import "time"

// MealSource: откуда пришло фото.
type MealSource string

const (
	SourceWeb      MealSource = "web"
	SourceTelegram MealSource = "telegram"
)

// MealRecord: запись журнала распознанных приёмов пищи.
type MealRecord struct {
	ID              string     `json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	Source          MealSource `json:"source"`
	ImagePath       string     `json:"image_path"` // ссылка на размеченное изображение
	Weight          float64    `json:"weight"`     // вес с весов или из формы, г
	InferenceMillis float64    `json:"inference_ms"`
	Estimate        Estimate   `json:"estimate"`
}
