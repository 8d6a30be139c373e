//go:build gocv
// +build gocv

package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"food-scale/internal/domain/entity"
	"food-scale/internal/domain/port"
)

// GoCVDetector запускает YOLOv8 через OpenCV DNN и умеет сам размечать кадр.
type GoCVDetector struct {
	mu     sync.Mutex
	net    gocv.Net
	loaded bool

	meta   Metadata
	conf   float32
	iou    float32
	logger *slog.Logger
}

// NewGoCVDetector загружает ONNX-модель в OpenCV.
func NewGoCVDetector(cfg DetectorConfig) (*GoCVDetector, error) {
	cfg.setDefaults()

	meta, err := LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	cfg.Logger.Info("gocv detector loaded", "model", cfg.ModelPath, "classes", len(meta.Classes))

	return &GoCVDetector{
		net:    net,
		loaded: true,
		meta:   meta,
		conf:   float32(cfg.ConfThreshold),
		iou:    float32(cfg.IoUThreshold),
		logger: cfg.Logger.With("component", "gocv_detector"),
	}, nil
}

// Detect распознаёт блюда на изображении.
func (d *GoCVDetector) Detect(ctx context.Context, imageData []byte) ([]entity.Detection, error) {
	mat, err := decodeToMat(imageData)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil, ErrModelNotLoaded
	}

	inW, inH := d.meta.InputSize()
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(inW, inH), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	bounds := image.Rect(0, 0, mat.Cols(), mat.Rows())
	cands := decodeYOLOv8(data, len(d.meta.Classes), d.meta.Anchors(), inW, inH, bounds, d.conf)
	if len(cands) == 0 {
		return []entity.Detection{}, nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.box
		scores[i] = c.score
	}

	indices := gocv.NMSBoxes(boxes, scores, d.conf, d.iou)
	kept := make([]candidate, 0, len(indices))
	for _, idx := range indices {
		kept = append(kept, cands[idx])
	}
	d.logger.Debug("detections decoded", "candidates", len(cands), "kept", len(kept))

	return toDetections(kept, d.meta.Classes), nil
}

// Annotate рисует рамки средствами OpenCV.
func (d *GoCVDetector) Annotate(imageData []byte, detections []entity.Detection) ([]byte, error) {
	mat, err := decodeToMat(imageData)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	for _, det := range detections {
		c := colorFor(det.ClassID)
		gocv.Rectangle(&mat, det.Box, c, boxThickness)
		gocv.PutText(&mat, Label(det), image.Pt(det.Box.Min.X, maxInt(det.Box.Min.Y-5, 12)),
			gocv.FontHersheySimplex, 0.5, c, 2)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close освобождает сеть.
func (d *GoCVDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil
	}
	d.loaded = false
	return d.net.Close()
}

// decodeToMat превращает байты изображения в gocv.Mat.
func decodeToMat(imageData []byte) (gocv.Mat, error) {
	if len(imageData) == 0 {
		return gocv.NewMat(), entity.ErrEmptyImage
	}
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	if !mat.Empty() {
		mat.Close()
	}
	return gocv.NewMat(), entity.ErrUnreadableImage
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

var (
	_ port.Detector  = (*GoCVDetector)(nil)
	_ port.Annotator = (*GoCVDetector)(nil)
)
