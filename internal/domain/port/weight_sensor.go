package port

import (
	"context"

	"food-scale/internal/domain/entity"
)

// WeightSensor интерфейс весов на последовательном порту
type WeightSensor interface {
	// ReadOnce выполняет одно ограниченное по времени чтение
	ReadOnce(ctx context.Context) entity.ReadResult

	// Current выполняет одно чтение и возвращает снимок состояния, даже если значение не обновилось
	Current(ctx context.Context) entity.SensorReading

	// Snapshot возвращает состояние без чтения порта
	Snapshot() entity.SensorReading
}
