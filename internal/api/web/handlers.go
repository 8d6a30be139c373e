package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	app "food-scale/internal/application"
	"food-scale/internal/container"
	"food-scale/internal/domain/entity"
)

// envelope: общий формат JSON-ответов API.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type handlers struct {
	app            *container.Container
	logger         *slog.Logger
	maxUploadBytes int64
}

type calculateRequest struct {
	FoodType string  `json:"food_type"`
	Weight   float64 `json:"weight"`
}

type calculateResponse struct {
	FoodType        string                 `json:"food_type"`
	Weight          float64                `json:"weight"`
	Nutrition       entity.Nutrients       `json:"nutrition"`
	Recommendations entity.Recommendations `json:"recommendations"`
}

type foodEntry struct {
	Name      string           `json:"name"`
	Nutrients entity.Nutrients `json:"nutrients"`
}

type foodsResponse struct {
	BasisGrams float64     `json:"basis_grams"`
	Foods      []foodEntry `json:"foods"`
}

type indexView struct {
	Foods           []string
	SensorConnected bool
	MaxUploadMB     int64
}

type resultView struct {
	*app.DetectionReport
	Counts []entity.ClassCount
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, envelope{Success: false, Error: msg})
}

func (h *handlers) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", indexView{
		Foods:           h.app.Calculator.Table().Names(),
		SensorConnected: h.app.WeightService.Connected(),
		MaxUploadMB:     h.maxUploadBytes >> 20,
	})
}

func (h *handlers) detect(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		h.redirectBack(c)
		return
	}
	if header.Filename == "" {
		h.redirectBack(c)
		return
	}

	weight, err := app.ParseWeight(c.PostForm("weight"))
	if err != nil {
		fail(c, http.StatusBadRequest, "weight must be a non-negative number")
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("failed to open upload", "error", err)
		fail(c, http.StatusInternalServerError, "failed to read upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("failed to read upload", "error", err)
		fail(c, http.StatusInternalServerError, "failed to read upload")
		return
	}

	report, err := h.app.RecognitionService.Recognize(c.Request.Context(), app.RecognitionInput{
		Image:    data,
		FileName: header.Filename,
		Weight:   weight,
		Source:   entity.SourceWeb,
	})
	switch {
	case errors.Is(err, entity.ErrUnreadableImage), errors.Is(err, entity.ErrEmptyImage):
		fail(c, http.StatusBadRequest, "Could not read image")
		return
	case errors.Is(err, entity.ErrInvalidWeight):
		fail(c, http.StatusBadRequest, "weight must be a non-negative number")
		return
	case err != nil:
		h.logger.Error("detection failed", "file", header.Filename, "error", err)
		fail(c, http.StatusInternalServerError, "detection failed")
		return
	}

	if wantsJSON(c) {
		ok(c, report)
		return
	}
	c.HTML(http.StatusOK, "result.html", resultView{
		DetectionReport: report,
		Counts:          entity.SortedCounts(report.Detections),
	})
}

func (h *handlers) weight(c *gin.Context) {
	ok(c, h.app.WeightService.Current(c.Request.Context()))
}

func (h *handlers) calculate(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.FoodType) == "" {
		fail(c, http.StatusBadRequest, "food_type is required")
		return
	}

	nutrition, err := h.app.Calculator.CalculateFood(req.FoodType, req.Weight)
	switch {
	case errors.Is(err, entity.ErrUnknownFood):
		fail(c, http.StatusBadRequest, "unknown food type: "+req.FoodType)
		return
	case errors.Is(err, entity.ErrInvalidWeight):
		fail(c, http.StatusBadRequest, "weight must be a non-negative number")
		return
	case err != nil:
		h.logger.Error("nutrition calculation failed", "food_type", req.FoodType, "error", err)
		fail(c, http.StatusInternalServerError, "calculation failed")
		return
	}

	ok(c, calculateResponse{
		FoodType:        req.FoodType,
		Weight:          req.Weight,
		Nutrition:       nutrition,
		Recommendations: app.Recommend(nutrition),
	})
}

func (h *handlers) foods(c *gin.Context) {
	table := h.app.Calculator.Table()
	names := table.Names()

	resp := foodsResponse{BasisGrams: table.BasisGrams, Foods: make([]foodEntry, 0, len(names))}
	for _, name := range names {
		n, _ := table.Lookup(name)
		resp.Foods = append(resp.Foods, foodEntry{Name: name, Nutrients: n})
	}
	ok(c, resp)
}

func (h *handlers) listMeals(c *gin.Context) {
	if h.app.Meals == nil {
		fail(c, http.StatusServiceUnavailable, "meal log is disabled")
		return
	}

	limit := defaultMealsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxMealsLimit)
	}

	meals, err := h.app.Meals.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list meals", "error", err)
		fail(c, http.StatusInternalServerError, "failed to list meals")
		return
	}
	if meals == nil {
		meals = []*entity.MealRecord{}
	}
	ok(c, meals)
}

func (h *handlers) getMeal(c *gin.Context) {
	if h.app.Meals == nil {
		fail(c, http.StatusServiceUnavailable, "meal log is disabled")
		return
	}

	meal, err := h.app.Meals.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, entity.ErrMealNotFound):
		fail(c, http.StatusNotFound, "meal not found")
		return
	case err != nil:
		h.logger.Error("failed to load meal", "id", c.Param("id"), "error", err)
		fail(c, http.StatusInternalServerError, "failed to load meal")
		return
	}
	ok(c, meal)
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"sensor_connected": h.app.WeightService.Connected(),
	})
}

// redirectBack повторяет поведение формы: без файла возвращаем пользователя назад.
func (h *handlers) redirectBack(c *gin.Context) {
	target := "/"
	if ref, err := url.Parse(c.Request.Referer()); err == nil && ref.Path != "" &&
		(ref.Host == "" || ref.Host == c.Request.Host) {
		target = ref.RequestURI()
	}
	c.Redirect(http.StatusFound, target)
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
