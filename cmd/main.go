package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"food-scale/config"
	"food-scale/internal/api/telegram"
	"food-scale/internal/api/web"
	"food-scale/internal/container"
	"food-scale/internal/domain/port"
	"food-scale/internal/infrastructure/imagestore"
	"food-scale/internal/infrastructure/logging"
	"food-scale/internal/infrastructure/sensor"
	"food-scale/internal/infrastructure/storage"
	"food-scale/internal/infrastructure/vision"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.AppEnv)
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	table, err := storage.LoadNutritionTable(cfg.NutritionPath)
	if err != nil {
		return err
	}
	logger.Info("nutrition table loaded", "path", cfg.NutritionPath, "foods", table.Len())

	detector, annotator, err := newDetector(cfg, logger)
	if err != nil {
		return err
	}
	defer detector.Close()

	// Весы необязательны: без них сервис работает на весе из запроса.
	scale := sensor.NewScale(sensor.Config{
		PortName:     cfg.SerialPort,
		BaudRate:     cfg.SerialBaud,
		ReadWindow:   cfg.SensorReadWindow,
		PollInterval: cfg.SensorPollInterval,
		Logger:       logger.With("component", "sensor"),
	})
	if err := scale.Connect(); err != nil {
		logger.Warn("weight sensor unavailable", "port", cfg.SerialPort, "error", err)
	} else if cfg.SensorContinuous {
		scale.StartContinuous(ctx)
	}
	defer func() {
		scale.StopContinuous()
		if err := scale.Disconnect(); err != nil {
			logger.Warn("failed to close sensor port", "error", err)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	meals, err := storage.NewSQLiteMealRepository(cfg.DBPath)
	if err != nil {
		return err
	}
	defer meals.Close()

	images, uploadDir, err := newImageStore(ctx, cfg)
	if err != nil {
		return err
	}

	appContainer := container.New(container.Deps{
		Users:     storage.NewMemoryUserRepository(),
		Detector:  detector,
		Annotator: annotator,
		Images:    images,
		Meals:     meals,
		Sensor:    scale,
		Table:     table,
		Logger:    logger,
	})

	server := web.NewServer(appContainer, web.Options{
		Addr:           cfg.HTTPAddr,
		UploadDir:      uploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger.With("component", "http"))

	errCh := make(chan error, 2)
	go func() { errCh <- server.Start() }()

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer, logger)
		if err != nil {
			return err
		}
		go func() { errCh <- bot.Run(ctx) }()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newDetector выбирает бэкенд. GoCV-детектор сам рисует рамки, для ONNX нужен отдельный аннотатор.
func newDetector(cfg *config.Config, logger *slog.Logger) (port.Detector, port.Annotator, error) {
	dcfg := vision.DetectorConfig{
		ModelPath:         cfg.ModelPath,
		MetadataPath:      cfg.ModelMetadataPath,
		ConfThreshold:     cfg.ConfThreshold,
		IoUThreshold:      cfg.IoUThreshold,
		SharedLibraryPath: cfg.ONNXRuntimeLib,
		Logger:            logger.With("component", "vision"),
	}

	if cfg.ModelBackend == config.BackendGoCV {
		d, err := vision.NewGoCVDetector(dcfg)
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	}

	d, err := vision.NewONNXDetector(dcfg)
	if err != nil {
		return nil, nil, err
	}
	return d, vision.NewImageAnnotator(), nil
}

// newImageStore возвращает хранилище и каталог для раздачи через /static/uploads.
func newImageStore(ctx context.Context, cfg *config.Config) (port.ImageStore, string, error) {
	if cfg.ImageStore == config.StoreS3 {
		s, err := imagestore.NewS3Store(ctx, imagestore.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Prefix:    "uploads",
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	}

	s, err := imagestore.NewLocalStore(cfg.UploadDir, "/static/uploads")
	if err != nil {
		return nil, "", err
	}
	return s, s.Dir(), nil
}
