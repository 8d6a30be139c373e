// Package vision распознаёт блюда на фото моделью YOLOv8 и размечает результат.
package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sort"

	"food-scale/internal/domain/entity"
)

const (
	DefaultImageSize     = 640
	DefaultConfThreshold = 0.25
	DefaultIoUThreshold  = 0.45

	defaultInputName  = "images"
	defaultOutputName = "output0"
)

// ErrModelNotLoaded возвращается, когда модель недоступна или уже закрыта.
var ErrModelNotLoaded = errors.New("detection model is not loaded")

// Metadata описывает экспортированную модель: классы и формы тензоров.
type Metadata struct {
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
}

// LoadMetadata читает метаданные модели из JSON-файла.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return ParseMetadata(data)
}

// ParseMetadata разбирает метаданные и дополняет отсутствующие формы
// значениями стандартного экспорта YOLOv8.
func ParseMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if len(m.Classes) == 0 {
		return Metadata{}, errors.New("metadata: classes are empty")
	}
	if m.ImageSize <= 0 {
		m.ImageSize = DefaultImageSize
	}
	size := int64(m.ImageSize)
	if len(m.InputShape) == 0 {
		m.InputShape = []int64{1, 3, size, size}
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, int64(4 + len(m.Classes)), int64(anchorCount(m.ImageSize))}
	}
	if m.InputName == "" {
		m.InputName = defaultInputName
	}
	if m.OutputName == "" {
		m.OutputName = defaultOutputName
	}

	if len(m.InputShape) != 4 || m.InputShape[1] != 3 {
		return Metadata{}, fmt.Errorf("metadata: input shape %v is not [1,3,H,W]", m.InputShape)
	}
	if len(m.OutputShape) != 3 || m.OutputShape[1] != int64(4+len(m.Classes)) {
		return Metadata{}, fmt.Errorf("metadata: output shape %v does not match %d classes", m.OutputShape, len(m.Classes))
	}
	return m, nil
}

// InputSize возвращает ширину и высоту входа сети.
func (m Metadata) InputSize() (w, h int) {
	return int(m.InputShape[3]), int(m.InputShape[2])
}

// Anchors возвращает число кандидатов на выходе сети.
func (m Metadata) Anchors() int {
	return int(m.OutputShape[2])
}

// anchorCount: число ячеек сетки YOLOv8 на страйдах 8, 16 и 32.
func anchorCount(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		g := size / stride
		n += g * g
	}
	return n
}

// DetectorConfig: общие настройки бэкендов детектора.
type DetectorConfig struct {
	ModelPath         string
	MetadataPath      string
	ConfThreshold     float64
	IoUThreshold      float64
	SharedLibraryPath string // libonnxruntime, только для ONNX-бэкенда
	Logger            *slog.Logger
}

func (c *DetectorConfig) setDefaults() {
	if c.ConfThreshold <= 0 {
		c.ConfThreshold = DefaultConfThreshold
	}
	if c.IoUThreshold <= 0 {
		c.IoUThreshold = DefaultIoUThreshold
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// candidate: рамка до подавления немаксимумов.
type candidate struct {
	classID int
	score   float32
	box     image.Rectangle
}

// decodeYOLOv8 разбирает выход [1, 4+nc, N]: значения лежат по строкам,
// data[row*anchors+i]. Координаты (cx, cy, w, h) в пикселях входа сети
// переводятся в пиксели исходного изображения и обрезаются по его границам.
func decodeYOLOv8(data []float32, numClasses, anchors int, inW, inH int, bounds image.Rectangle, conf float32) []candidate {
	if len(data) < (4+numClasses)*anchors {
		return nil
	}

	scaleX := float32(bounds.Dx()) / float32(inW)
	scaleY := float32(bounds.Dy()) / float32(inH)

	var out []candidate
	for i := 0; i < anchors; i++ {
		best, bestID := float32(0), -1
		for c := 0; c < numClasses; c++ {
			if s := data[(4+c)*anchors+i]; s > best {
				best, bestID = s, c
			}
		}
		if bestID < 0 || best < conf {
			continue
		}

		cx := data[i]
		cy := data[anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		box := image.Rect(
			bounds.Min.X+int((cx-w/2)*scaleX),
			bounds.Min.Y+int((cy-h/2)*scaleY),
			bounds.Min.X+int((cx+w/2)*scaleX),
			bounds.Min.Y+int((cy+h/2)*scaleY),
		).Intersect(bounds)
		if box.Empty() {
			continue
		}

		out = append(out, candidate{classID: bestID, score: best, box: box})
	}
	return out
}

// nonMaxSuppression оставляет лучшие рамки, отбрасывая пересекающиеся
// сильнее порога независимо от класса.
func nonMaxSuppression(cands []candidate, iouThreshold float64) []candidate {
	sorted := make([]candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })

	kept := make([]candidate, 0, len(sorted))
	for _, c := range sorted {
		overlaps := false
		for _, k := range kept {
			if iou(c.box, k.box) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}
	return kept
}

func iou(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

func toDetections(cands []candidate, classes []string) []entity.Detection {
	out := make([]entity.Detection, 0, len(cands))
	for _, c := range cands {
		out = append(out, entity.Detection{
			ClassID:    c.classID,
			ClassName:  className(classes, c.classID),
			Confidence: float64(c.score),
			Box:        c.box,
		})
	}
	return out
}

func className(classes []string, id int) string {
	if id >= 0 && id < len(classes) {
		return classes[id]
	}
	return fmt.Sprintf("class_%d", id)
}
