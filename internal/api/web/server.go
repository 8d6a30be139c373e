// Package web реализует HTTP-интерфейс сервиса: загрузка фото, весы, расчёт питательности.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"food-scale/internal/container"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	defaultMaxUploadBytes = 16 << 20
	defaultMealsLimit     = 20
	maxMealsLimit         = 100
)

// Options: настройки HTTP-сервера.
type Options struct {
	Addr           string
	UploadDir      string // каталог для /static/uploads; пусто, если файлы лежат в S3
	MaxUploadBytes int64
}

// Server держит gin-роутер и http.Server.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	logger *slog.Logger
}

// NewServer собирает маршруты поверх сервисов контейнера.
func NewServer(c *container.Container, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	engine := gin.New()
	engine.MaxMultipartMemory = opts.MaxUploadBytes
	engine.Use(recovery(logger), requestLogger(logger))
	engine.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	if opts.UploadDir != "" {
		engine.Static("/static/uploads", opts.UploadDir)
	}

	h := &handlers{
		app:            c,
		logger:         logger,
		maxUploadBytes: opts.MaxUploadBytes,
	}

	engine.GET("/", h.index)
	engine.POST("/detect", h.detect)
	engine.GET("/health", h.health)

	api := engine.Group("/api")
	{
		api.GET("/weight", h.weight)
		api.POST("/nutrition/calculate", h.calculate)
		api.GET("/foods", h.foods)
		api.GET("/meals", h.listMeals)
		api.GET("/meals/:id", h.getMeal)
	}

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Handler возвращает роутер, например для httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start слушает адрес до вызова Shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown дожидается завершения активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
