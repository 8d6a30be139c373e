package entity

// CalculationMode определяет способ расчёта питательности.
type CalculationMode string

const (
	// ModeWeighted: общий вес делится поровну между обнаруженными объектами.
	ModeWeighted CalculationMode = "weighted"
	// ModeUnweighted: каждое обнаружение считается одной базовой порцией.
	ModeUnweighted CalculationMode = "unweighted"
)

// ItemEstimate: вклад одного класса еды.
type ItemEstimate struct {
	FoodType  string    `json:"food_type"`
	Count     int       `json:"count"`
	Weight    float64   `json:"weight"` // граммы; 0 в режиме unweighted
	Known     bool      `json:"known"`  // есть ли класс в таблице
	Nutrients Nutrients `json:"nutrients"`
}

// Estimate: итог расчёта для одного запроса.
type Estimate struct {
	Mode        CalculationMode `json:"mode"`
	TotalWeight float64         `json:"total_weight"`
	Items       []ItemEstimate  `json:"items"`
	Total       Nutrients       `json:"total"`
}

// Counts восстанавливает счётчики по классам.
func (e Estimate) Counts() map[string]int {
	counts := make(map[string]int, len(e.Items))
	for _, item := range e.Items {
		counts[item.FoodType] += item.Count
	}
	return counts
}

// NutrientStatus: оценка количества нутриента.
type NutrientStatus string

const (
	StatusLow  NutrientStatus = "low"
	StatusOK   NutrientStatus = "ok"
	StatusHigh NutrientStatus = "high"
)

// NutrientAdvice: оценка одного нутриента относительно суточной нормы.
type NutrientAdvice struct {
	Nutrient   string         `json:"nutrient"`
	Amount     float64        `json:"amount"`
	DailyValue float64        `json:"daily_value"`
	Percent    float64        `json:"percent"`
	Status     NutrientStatus `json:"status"`
}

// Recommendations: простые диетические советы по итогу приёма пищи.
type Recommendations struct {
	Nutrients []NutrientAdvice `json:"nutrients"`
	Messages  []string         `json:"messages"`
}
