package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendONNX = "onnx"
	BackendGoCV = "gocv"

	StoreLocal = "local"
	StoreS3    = "s3"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPAddr       string
	UploadDir      string
	MaxUploadBytes int64

	ModelBackend      string
	ModelPath         string
	ModelMetadataPath string
	ONNXRuntimeLib    string
	ConfThreshold     float64
	IoUThreshold      float64

	NutritionPath string

	SerialPort         string
	SerialBaud         int
	SensorReadWindow   time.Duration
	SensorPollInterval time.Duration
	SensorContinuous   bool

	DBPath string

	ImageStore  string
	S3Bucket    string
	S3Region    string
	S3PublicURL string

	TelegramToken string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	p := &parser{}
	cfg := &Config{
		AppEnv:   os.Getenv("APP_ENV"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPAddr:       getEnv("HTTP_ADDR", ":5000"),
		UploadDir:      getEnv("UPLOAD_DIR", "static/uploads"),
		MaxUploadBytes: p.getInt64("MAX_UPLOAD_BYTES", 16<<20),

		ModelBackend:      strings.ToLower(getEnv("MODEL_BACKEND", BackendONNX)),
		ModelPath:         getEnv("MODEL_PATH", "models/detect.onnx"),
		ModelMetadataPath: getEnv("MODEL_METADATA_PATH", "models/metadata.json"),
		ONNXRuntimeLib:    os.Getenv("ONNXRUNTIME_LIB"),
		ConfThreshold:     p.getFloat("CONF_THRESHOLD", 0.25),
		IoUThreshold:      p.getFloat("IOU_THRESHOLD", 0.45),

		NutritionPath: getEnv("NUTRITION_PATH", "nutrition_data.json"),

		SerialPort:         getEnv("SERIAL_PORT", "/dev/ttySIF1"),
		SerialBaud:         p.getInt("SERIAL_BAUD", 115200),
		SensorReadWindow:   p.getDuration("SENSOR_READ_WINDOW", 2*time.Second),
		SensorPollInterval: p.getDuration("SENSOR_POLL_INTERVAL", 100*time.Millisecond),
		SensorContinuous:   p.getBool("SENSOR_CONTINUOUS", false),

		DBPath: getEnv("DB_PATH", "data/meals.db"),

		ImageStore:  strings.ToLower(getEnv("IMAGE_STORE", StoreLocal)),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Region:    getEnv("S3_REGION", os.Getenv("AWS_REGION")),
		S3PublicURL: os.Getenv("S3_PUBLIC_URL"),

		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет диапазоны и допустимые значения.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}
	if c.ModelBackend != BackendONNX && c.ModelBackend != BackendGoCV {
		errs = append(errs, fmt.Errorf("MODEL_BACKEND must be %q or %q, got %q", BackendONNX, BackendGoCV, c.ModelBackend))
	}
	if c.ConfThreshold <= 0 || c.ConfThreshold >= 1 {
		errs = append(errs, fmt.Errorf("CONF_THRESHOLD must be in (0, 1), got %v", c.ConfThreshold))
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold >= 1 {
		errs = append(errs, fmt.Errorf("IOU_THRESHOLD must be in (0, 1), got %v", c.IoUThreshold))
	}
	if c.SerialBaud <= 0 {
		errs = append(errs, fmt.Errorf("SERIAL_BAUD must be positive, got %d", c.SerialBaud))
	}
	if c.SensorReadWindow <= 0 || c.SensorPollInterval <= 0 {
		errs = append(errs, errors.New("SENSOR_READ_WINDOW and SENSOR_POLL_INTERVAL must be positive"))
	} else if c.SensorPollInterval > c.SensorReadWindow {
		errs = append(errs, errors.New("SENSOR_POLL_INTERVAL must not exceed SENSOR_READ_WINDOW"))
	}
	switch c.ImageStore {
	case StoreLocal:
	case StoreS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required when IMAGE_STORE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("IMAGE_STORE must be %q or %q, got %q", StoreLocal, StoreS3, c.ImageStore))
	}

	return errors.Join(errs...)
}

// IsProduction сообщает, что сервис запущен в production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// parser копит ошибки разбора, чтобы сообщить обо всех сразу.
type parser struct {
	errs []error
}

func (p *parser) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) fail(key, value string, err error) {
	p.errs = append(p.errs, fmt.Errorf("invalid %s=%q: %w", key, value, err))
}

func (p *parser) getInt(key string, fallback int) int {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) getInt64(key string, fallback int64) int64 {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) getFloat(key string, fallback float64) float64 {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return f
}

func (p *parser) getBool(key string, fallback bool) bool {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

func (p *parser) getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}
