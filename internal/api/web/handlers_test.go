package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	app "food-scale/internal/application"
	"food-scale/internal/container"
	"food-scale/internal/domain/entity"
	"food-scale/internal/infrastructure/logging"
	"food-scale/internal/infrastructure/storage"
)

type stubDetector struct {
	detections []entity.Detection
}

func (d *stubDetector) Detect(ctx context.Context, imageData []byte) ([]entity.Detection, error) {
	return d.detections, nil
}

func (d *stubDetector) Close() error { return nil }

type stubAnnotator struct{}

func (stubAnnotator) Annotate(imageData []byte, detections []entity.Detection) ([]byte, error) {
	return []byte("annotated"), nil
}

type memoryImages struct {
	mu    sync.Mutex
	names []string
}

func (s *memoryImages) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	return "/static/uploads/" + name, nil
}

type stubSensor struct {
	reading entity.SensorReading
}

func (s *stubSensor) ReadOnce(ctx context.Context) entity.ReadResult {
	return entity.ReadResult{Outcome: entity.ReadValue, Value: s.reading.Weight}
}

func (s *stubSensor) Current(ctx context.Context) entity.SensorReading { return s.reading }

func (s *stubSensor) Snapshot() entity.SensorReading { return s.reading }

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	table, err := entity.NewNutritionTable(100, map[string]entity.Nutrients{
		"apple": {Calories: 52, Protein: 0.3, Carbs: 14, Fiber: 2.4},
		"rice":  {Calories: 130, Protein: 2.7, Carbs: 28, Fiber: 0.4},
	})
	require.NoError(t, err)

	meals, err := storage.NewSQLiteMealRepository(filepath.Join(t.TempDir(), "meals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = meals.Close() })

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := container.New(container.Deps{
		Users: storage.NewMemoryUserRepository(),
		Detector: &stubDetector{detections: []entity.Detection{
			{ClassID: 0, ClassName: "apple", Confidence: 0.9, Box: image.Rect(0, 0, 4, 4)},
			{ClassID: 0, ClassName: "apple", Confidence: 0.8, Box: image.Rect(5, 5, 9, 9)},
			{ClassID: 1, ClassName: "rice", Confidence: 0.7, Box: image.Rect(2, 2, 8, 8)},
		}},
		Annotator: stubAnnotator{},
		Images:    &memoryImages{},
		Meals:     meals,
		Sensor:    &stubSensor{reading: entity.SensorReading{Weight: 152.3, LastUpdate: &now, Connected: true}},
		Table:     table,
		Logger:    logging.Discard(),
	})

	return NewServer(c, Options{Addr: ":0", MaxUploadBytes: 1 << 20}, logging.Discard())
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Set(3, 3, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, fileName string, file []byte, weight string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if file != nil {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	if weight != "" {
		require.NoError(t, w.WriteField("weight", weight))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/detect", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","sensor_connected":true}`, rec.Body.String())
}

func TestWeight(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/weight", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode(t, rec)
	require.True(t, resp.Success)

	var reading entity.SensorReading
	require.NoError(t, json.Unmarshal(resp.Data, &reading))
	require.Equal(t, 152.3, reading.Weight)
	require.True(t, reading.Connected)
	require.NotNil(t, reading.LastUpdate)
}

func TestCalculate(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/nutrition/calculate",
		strings.NewReader(`{"food_type": "apple", "weight": 200}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode(t, rec)
	require.True(t, resp.Success)

	var data calculateResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Equal(t, "apple", data.FoodType)
	require.Equal(t, 200.0, data.Weight)
	require.InDelta(t, 104, data.Nutrition.Calories, 1e-9)
	require.InDelta(t, 4.8, data.Nutrition.Fiber, 1e-9)
	require.NotEmpty(t, data.Recommendations.Messages)
}

func TestCalculate_Errors(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]string{
		"unknown food": `{"food_type": "pizza", "weight": 100}`,
		"missing food": `{"weight": 100}`,
		"negative":     `{"food_type": "apple", "weight": -1}`,
		"invalid json": `{"food_type": `,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/nutrition/calculate", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := serve(s, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode(t, rec)
			require.False(t, resp.Success)
			require.NotEmpty(t, resp.Error)
		})
	}
}

func TestDetect_JSON(t *testing.T) {
	s := newTestServer(t)

	req := multipartRequest(t, "lunch.png", testImage(t), "300")
	req.Header.Set("Accept", "application/json")
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode(t, rec)
	require.True(t, resp.Success)

	var report app.DetectionReport
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	require.Equal(t, map[string]int{"apple": 2, "rice": 1}, report.Detections)
	require.Equal(t, 3, report.TotalItems)
	require.Equal(t, 300.0, report.DetectionWeight)
	require.Equal(t, entity.ModeWeighted, report.Estimate.Mode)
	require.InDelta(t, 52*2+130, report.Nutrition.Calories, 1e-9)
	require.True(t, strings.HasPrefix(report.ResultImage, "/static/uploads/result_"))
	require.NotEmpty(t, report.MealID)

	// Запись попала в журнал.
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/meals/"+report.MealID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var meal entity.MealRecord
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &meal))
	require.Equal(t, entity.SourceWeb, meal.Source)
	require.Equal(t, 300.0, meal.Weight)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/meals", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var meals []entity.MealRecord
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &meals))
	require.Len(t, meals, 1)
}

func TestDetect_HTML(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t, "lunch.png", testImage(t), ""))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "Detection result")
	require.Contains(t, rec.Body.String(), "unweighted")
	require.Contains(t, rec.Body.String(), "<td>apple</td><td>2</td>")
}

func TestDetect_MissingFileRedirects(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t, "", nil, "100"))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	req := multipartRequest(t, "", nil, "")
	req.Header.Set("Referer", "http://evil.example.com/phish")
	rec = serve(s, req)
	require.Equal(t, "/", rec.Header().Get("Location"))

	req = multipartRequest(t, "", nil, "")
	req.Header.Set("Referer", "/?lang=en")
	rec = serve(s, req)
	require.Equal(t, "/?lang=en", rec.Header().Get("Location"))
}

func TestDetect_UnreadableImage(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t, "notes.txt", []byte("definitely not an image"), ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode(t, rec)
	require.False(t, resp.Success)
	require.Equal(t, "Could not read image", resp.Error)
}

func TestDetect_InvalidWeight(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t, "lunch.png", testImage(t), "heavy"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, decode(t, rec).Success)
}

func TestDetect_TooLarge(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t, "big.png", bytes.Repeat([]byte{0}, 2<<20), ""))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestIndex(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `action="/detect"`)
	require.Contains(t, rec.Body.String(), "<li>rice</li>")
	require.Contains(t, rec.Body.String(), "Scale: connected")
}

func TestFoods(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/foods", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var data foodsResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	require.Equal(t, 100.0, data.BasisGrams)
	require.Len(t, data.Foods, 2)
	require.Equal(t, "apple", data.Foods[0].Name)
	require.Equal(t, 130.0, data.Foods[1].Nutrients.Calories)
}

func TestMeals_Errors(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/meals?limit=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/meals/unknown-id", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "meal not found", decode(t, rec).Error)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/meals?limit=500", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, string(decode(t, rec).Data))
}

func TestRecovery(t *testing.T) {
	s := newTestServer(t)
	s.engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal server error", decode(t, rec).Error)
}
