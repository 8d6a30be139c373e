package port

import "context"

// ImageStore сохраняет загруженные и размеченные изображения
type ImageStore interface {
	// Save записывает файл и возвращает путь или URL, по которому он доступен клиенту
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
}
