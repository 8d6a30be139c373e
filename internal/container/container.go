package container

import (
	"log/slog"

	app "food-scale/internal/application"
	"food-scale/internal/domain/entity"
	"food-scale/internal/domain/port"
)

// Deps: инфраструктура, собранная в main.
type Deps struct {
	Users     port.UserRepository
	Detector  port.Detector
	Annotator port.Annotator
	Images    port.ImageStore
	Meals     port.MealRepository
	Sensor    port.WeightSensor
	Table     *entity.NutritionTable
	Logger    *slog.Logger
}

type Container struct {
	UserService        *app.UserService
	WeightService      *app.WeightService
	Calculator         *app.NutritionCalculator
	RecognitionService *app.RecognitionService
	Meals              port.MealRepository
	Logger             *slog.Logger
}

func New(deps Deps) *Container {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	calculator := app.NewNutritionCalculator(deps.Table)
	recognition := app.NewRecognitionService(
		deps.Detector,
		deps.Annotator,
		deps.Images,
		deps.Meals,
		calculator,
		logger.With("component", "recognition"),
	)

	return &Container{
		UserService:        app.NewUserService(deps.Users),
		WeightService:      app.NewWeightService(deps.Sensor),
		Calculator:         calculator,
		RecognitionService: recognition,
		Meals:              deps.Meals,
		Logger:             logger,
	}
}
