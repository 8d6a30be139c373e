package entity

import (
	"image"
	"sort"
)

// Detection представляет один распознанный на фото объект
type Detection struct {
	ClassID    int             `json:"class_id"`   // индекс класса в метаданных модели
	ClassName  string          `json:"class_name"` // название класса, ключ таблицы питания
	Confidence float64         `json:"confidence"` // уверенность модели, 0..1
	Box        image.Rectangle `json:"box"`        // рамка в пикселях исходного изображения
}

// Center возвращает координаты центра рамки
func (d Detection) Center() (x, y int) {
	return d.Box.Min.X + d.Box.Dx()/2, d.Box.Min.Y + d.Box.Dy()/2
}

// ClassCount: число обнаружений одного класса.
type ClassCount struct {
	ClassName string `json:"class_name"`
	Count     int    `json:"count"`
}

// CountByClass считает обнаружения по классам.
func CountByClass(detections []Detection) map[string]int {
	counts := make(map[string]int)
	for _, d := range detections {
		counts[d.ClassName]++
	}
	return counts
}

// SortedCounts возвращает счётчики, упорядоченные по имени класса.
func SortedCounts(counts map[string]int) []ClassCount {
	out := make([]ClassCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, ClassCount{ClassName: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassName < out[j].ClassName })
	return out
}
