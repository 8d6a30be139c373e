//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"food-scale/internal/domain/entity"
)

var errGoCVDisabled = errors.New("gocv build tag is not enabled")

// GoCVDetector без тега gocv не может быть создан.
type GoCVDetector struct{}

// NewGoCVDetector возвращает ошибку, если сборка без тега gocv.
func NewGoCVDetector(cfg DetectorConfig) (*GoCVDetector, error) {
	_ = cfg
	return nil, errGoCVDisabled
}

// Detect возвращает ошибку, если сборка без тега gocv.
func (d *GoCVDetector) Detect(ctx context.Context, imageData []byte) ([]entity.Detection, error) {
	_ = ctx
	_ = imageData
	return nil, ErrModelNotLoaded
}

// Annotate возвращает ошибку, если сборка без тега gocv.
func (d *GoCVDetector) Annotate(imageData []byte, detections []entity.Detection) ([]byte, error) {
	_ = imageData
	_ = detections
	return nil, errGoCVDisabled
}

// Close ничего не делает.
func (d *GoCVDetector) Close() error {
	return nil
}
