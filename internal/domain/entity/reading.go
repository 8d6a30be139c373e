package entity

import "time"

// SensorReading: последнее известное показание весов.
type SensorReading struct {
	Weight     float64    `json:"weight"`       // граммы
	LastUpdate *time.Time `json:"last_update"`  // nil, если показаний ещё не было
	Connected  bool       `json:"is_connected"` // состояние последовательного порта
}

// ReadOutcome: исход одной попытки чтения весов.
type ReadOutcome int

const (
	ReadValue ReadOutcome = iota + 1
	ReadTimeout
	ReadChannelError
)

func (o ReadOutcome) String() string {
	switch o {
	case ReadValue:
		return "value"
	case ReadTimeout:
		return "timeout"
	case ReadChannelError:
		return "channel_error"
	default:
		return "unknown"
	}
}

// ReadResult: результат ограниченного по времени чтения.
// Value заполнен только для ReadValue. Err заполнен для ReadChannelError
// и для ReadTimeout при отмене контекста.
type ReadResult struct {
	Outcome ReadOutcome
	Value   float64
	Err     error
}
