package app

import (
	"fmt"

	"food-scale/internal/domain/entity"
)

// nutrientRule: суточная норма и пороги в процентах от неё на один приём пищи.
// Нулевой порог отключает проверку.
type nutrientRule struct {
	name       string
	dailyValue float64
	lowPct     float64
	highPct    float64
	amount     func(entity.Nutrients) float64
	lowMsg     string
	highMsg    string
}

// Нормы для рациона 2000 ккал.
var nutrientRules = []nutrientRule{
	{
		name: "calories", dailyValue: 2000, lowPct: 10, highPct: 40,
		amount:  func(n entity.Nutrients) float64 { return n.Calories },
		lowMsg:  "This meal is light on energy; add a portion of whole grains or legumes.",
		highMsg: "This meal covers over 40% of daily calories; consider a smaller portion.",
	},
	{
		name: "protein", dailyValue: 50, lowPct: 10,
		amount: func(n entity.Nutrients) float64 { return n.Protein },
		lowMsg: "Protein is low; add eggs, tofu, fish or lean meat.",
	},
	{
		name: "carbs", dailyValue: 275, highPct: 40,
		amount:  func(n entity.Nutrients) float64 { return n.Carbs },
		highMsg: "Carbohydrates are high; balance the plate with vegetables.",
	},
	{
		name: "fiber", dailyValue: 28, lowPct: 10,
		amount: func(n entity.Nutrients) float64 { return n.Fiber },
		lowMsg: "Fiber is low; add vegetables, fruit or whole grains.",
	},
}

const msgNoNutrition = "No known food was recognised, so no nutrition advice is available."
const msgBalanced = "The meal looks balanced."

// Recommend оценивает итог приёма пищи относительно суточных норм.
func Recommend(total entity.Nutrients) entity.Recommendations {
	rec := entity.Recommendations{
		Nutrients: make([]entity.NutrientAdvice, 0, len(nutrientRules)),
		Messages:  []string{},
	}

	for _, r := range nutrientRules {
		amount := r.amount(total)
		pct := amount / r.dailyValue * 100
		status := entity.StatusOK
		switch {
		case r.highPct > 0 && pct > r.highPct:
			status = entity.StatusHigh
			rec.Messages = append(rec.Messages, r.highMsg)
		case r.lowPct > 0 && pct < r.lowPct:
			status = entity.StatusLow
			if !total.IsZero() {
				rec.Messages = append(rec.Messages, r.lowMsg)
			}
		}

		rec.Nutrients = append(rec.Nutrients, entity.NutrientAdvice{
			Nutrient:   r.name,
			Amount:     amount,
			DailyValue: r.dailyValue,
			Percent:    pct,
			Status:     status,
		})
	}

	switch {
	case total.IsZero():
		rec.Messages = append(rec.Messages, msgNoNutrition)
	case len(rec.Messages) == 0:
		rec.Messages = append(rec.Messages, msgBalanced)
	}
	return rec
}

// Summary возвращает короткую строку с итогами для чат-ответов.
func Summary(n entity.Nutrients) string {
	return fmt.Sprintf("%.0f kcal, protein %.1f g, carbs %.1f g, fiber %.1f g",
		n.Calories, n.Protein, n.Carbs, n.Fiber)
}
