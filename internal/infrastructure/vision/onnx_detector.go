package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"

	"food-scale/internal/domain/entity"
	"food-scale/internal/domain/port"
)

// ONNXDetector запускает YOLOv8 через ONNX Runtime.
// Тензоры общие для всех запросов, поэтому инференс идёт под мьютексом.
type ONNXDetector struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]

	meta   Metadata
	conf   float32
	iou    float64
	logger *slog.Logger
}

// NewONNXDetector загружает метаданные и модель.
func NewONNXDetector(cfg DetectorConfig) (*ONNXDetector, error) {
	cfg.setDefaults()

	meta, err := LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}

	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	cfg.Logger.Info("onnx detector loaded",
		"model", cfg.ModelPath,
		"classes", len(meta.Classes),
		"image_size", meta.ImageSize,
	)

	return &ONNXDetector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		meta:         meta,
		conf:         float32(cfg.ConfThreshold),
		iou:          cfg.IoUThreshold,
		logger:       cfg.Logger.With("component", "onnx_detector"),
	}, nil
}

// Metadata возвращает описание загруженной модели.
func (d *ONNXDetector) Metadata() Metadata {
	return d.meta
}

// Detect распознаёт блюда на изображении.
func (d *ONNXDetector) Detect(ctx context.Context, imageData []byte) ([]entity.Detection, error) {
	if len(imageData) == 0 {
		return nil, entity.ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrUnreadableImage, err)
	}
	if img.Bounds().Empty() {
		return nil, entity.ErrEmptyImage
	}

	inW, inH := d.meta.InputSize()
	input := preprocess(img, inW, inH)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, ErrModelNotLoaded
	}

	copy(d.inputTensor.GetData(), input)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	cands := decodeYOLOv8(d.outputTensor.GetData(), len(d.meta.Classes), d.meta.Anchors(), inW, inH, img.Bounds(), d.conf)
	kept := nonMaxSuppression(cands, d.iou)
	d.logger.Debug("detections decoded", "candidates", len(cands), "kept", len(kept))

	return toDetections(kept, d.meta.Classes), nil
}

// Close освобождает тензоры и сессию.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inputTensor != nil {
		d.inputTensor.Destroy()
		d.inputTensor = nil
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
		d.outputTensor = nil
	}
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
		return ort.DestroyEnvironment()
	}
	return nil
}

// preprocess растягивает изображение до входа сети и раскладывает
// пиксели в CHW float32 в диапазоне 0..1.
func preprocess(img image.Image, w, h int) []float32 {
	resized := resize.Resize(uint(w), uint(h), img, resize.Bilinear)
	b := resized.Bounds()

	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			data[i] = float32(r) / 65535.0
			data[plane+i] = float32(g) / 65535.0
			data[2*plane+i] = float32(bl) / 65535.0
		}
	}
	return data
}

var _ port.Detector = (*ONNXDetector)(nil)
