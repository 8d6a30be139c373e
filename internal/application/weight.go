package app

import (
	"context"
	"strconv"
	"strings"

	"food-scale/internal/domain/entity"
	"food-scale/internal/domain/port"
)

// WeightService отдаёт показания весов обработчикам.
type WeightService struct {
	sensor port.WeightSensor
}

// NewWeightService создаёт сервис. sensor может быть nil, если весы не настроены.
func NewWeightService(sensor port.WeightSensor) *WeightService {
	return &WeightService{sensor: sensor}
}

// Current читает весы и возвращает последнее показание.
func (s *WeightService) Current(ctx context.Context) entity.SensorReading {
	if s.sensor == nil {
		return entity.SensorReading{}
	}
	return s.sensor.Current(ctx)
}

// Connected сообщает, подключены ли весы.
func (s *WeightService) Connected() bool {
	return s.sensor != nil && s.sensor.Snapshot().Connected
}

// WeightFor выбирает вес для фото: число в подписи, затем вес, запомненный
// командой /weight, затем последнее показание весов. Без источников вес равен 0.
func (s *WeightService) WeightFor(caption string, pending float64) float64 {
	if w, err := ParseWeight(caption); err == nil && w > 0 {
		return w
	}
	if pending > 0 {
		return pending
	}
	if s.sensor == nil {
		return 0
	}
	if r := s.sensor.Snapshot(); r.Connected && r.LastUpdate != nil && r.Weight > 0 {
		return r.Weight
	}
	return 0
}

// ParseWeight разбирает вес из формы или сообщения. Пустая строка даёт 0,
// допускается запятая и суффикс "g".
func ParseWeight(s string) (float64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimSpace(strings.TrimSuffix(s, "g"))
	if s == "" {
		return 0, nil
	}
	w, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, entity.ErrInvalidWeight
	}
	if err := checkWeight(w); err != nil {
		return 0, err
	}
	return w, nil
}
