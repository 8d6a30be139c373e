package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"food-scale/internal/domain/entity"
	"food-scale/internal/domain/port"
)

const uploadTimeLayout = "20060102-150405"

// RecognitionService распознаёт еду на фото и считает питательность.
type RecognitionService struct {
	detector   port.Detector
	annotator  port.Annotator
	images     port.ImageStore
	meals      port.MealRepository
	calculator *NutritionCalculator
	logger     *slog.Logger
	now        func() time.Time
}

// RecognitionInput: загруженное фото и вес с весов.
type RecognitionInput struct {
	Image    []byte
	FileName string
	Weight   float64
	Source   entity.MealSource
}

// DetectionReport: всё, что нужно для страницы результата.
type DetectionReport struct {
	MealID          string                 `json:"meal_id,omitempty"`
	Timestamp       string                 `json:"timestamp"`
	Detections      map[string]int         `json:"detections"`
	Objects         []entity.Detection     `json:"objects"`
	ResultImage     string                 `json:"result_image"`
	InferenceTime   string                 `json:"inference_time"`
	InferenceMillis float64                `json:"inference_ms"`
	TotalItems      int                    `json:"total_items"`
	DetectionWeight float64                `json:"detection_weight"`
	Estimate        entity.Estimate        `json:"estimate"`
	Nutrition       entity.Nutrients       `json:"nutrition"`
	Recommendations entity.Recommendations `json:"recommendations"`

	Annotated []byte `json:"-"` // размеченный JPEG для ответа в Telegram
}

// NewRecognitionService создаёт сервис распознавания. meals может быть nil, тогда журнал не ведётся.
func NewRecognitionService(
	detector port.Detector,
	annotator port.Annotator,
	images port.ImageStore,
	meals port.MealRepository,
	calculator *NutritionCalculator,
	logger *slog.Logger,
) *RecognitionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecognitionService{
		detector:   detector,
		annotator:  annotator,
		images:     images,
		meals:      meals,
		calculator: calculator,
		logger:     logger,
		now:        time.Now,
	}
}

// Recognize сохраняет фото, запускает детектор, рисует рамки и считает питательность.
// Для нечитаемого изображения возвращает entity.ErrUnreadableImage до любой обработки.
func (s *RecognitionService) Recognize(ctx context.Context, in RecognitionInput) (*DetectionReport, error) {
	if s.detector == nil {
		return nil, errors.New("detector is not configured")
	}
	if len(in.Image) == 0 {
		return nil, entity.ErrEmptyImage
	}
	if err := checkWeight(in.Weight); err != nil {
		return nil, err
	}

	started := s.now()
	timestamp := started.Format(uploadTimeLayout)
	filename := timestamp + "_" + SecureFilename(in.FileName)

	if _, err := s.images.Save(ctx, filename, in.Image, contentTypeFor(filename)); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(in.Image)); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrUnreadableImage, err)
	}

	log := s.logger.With("file", filename, "weight", in.Weight)

	t0 := time.Now()
	detections, err := s.detector.Detect(ctx, in.Image)
	inference := time.Since(t0)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	annotated, err := s.annotator.Annotate(in.Image, detections)
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}

	resultPath, err := s.images.Save(ctx, "result_"+filename, annotated, "image/jpeg")
	if err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}

	counts := entity.CountByClass(detections)
	estimate, err := s.calculator.Estimate(counts, in.Weight)
	if err != nil {
		return nil, err
	}

	inferenceMs := float64(inference.Microseconds()) / 1000
	report := &DetectionReport{
		Timestamp:       timestamp,
		Detections:      counts,
		Objects:         detections,
		ResultImage:     resultPath,
		InferenceTime:   fmt.Sprintf("%.2fms", inferenceMs),
		InferenceMillis: inferenceMs,
		TotalItems:      len(detections),
		DetectionWeight: in.Weight,
		Estimate:        estimate,
		Nutrition:       estimate.Total,
		Recommendations: Recommend(estimate.Total),
		Annotated:       annotated,
	}

	log.Info("food recognised",
		"items", report.TotalItems,
		"classes", len(counts),
		"mode", estimate.Mode,
		"inference", report.InferenceTime,
	)

	if s.meals != nil {
		meal := &entity.MealRecord{
			ID:              uuid.NewString(),
			CreatedAt:       started,
			Source:          sourceOrDefault(in.Source),
			ImagePath:       resultPath,
			Weight:          in.Weight,
			InferenceMillis: inferenceMs,
			Estimate:        estimate,
		}
		// Сбой журнала не должен ломать ответ пользователю.
		if err := s.meals.Save(ctx, meal); err != nil {
			log.Error("failed to save meal", "error", err)
		} else {
			report.MealID = meal.ID
		}
	}

	return report, nil
}

// SecureFilename оставляет в имени файла только безопасные символы.
func SecureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), "._")
	if out == "" {
		return "upload"
	}
	return out
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

func sourceOrDefault(s entity.MealSource) entity.MealSource {
	if s == "" {
		return entity.SourceWeb
	}
	return s
}
