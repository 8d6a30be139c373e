package entity

import (
	"fmt"
	"math"
	"sort"
)

// DefaultBasisGrams: масса порции, на которую заданы значения таблицы, если файл её не указывает.
const DefaultBasisGrams = 100.0

// Nutrients: фиксированный набор нутриентов.
type Nutrients struct {
	Calories float64 `json:"calories"` // ккал
	Protein  float64 `json:"protein"`  // белки, г
	Carbs    float64 `json:"carbs"`    // углеводы, г
	Fiber    float64 `json:"fiber"`    // клетчатка, г
}

// Add возвращает поэлементную сумму.
func (n Nutrients) Add(o Nutrients) Nutrients {
	return Nutrients{
		Calories: n.Calories + o.Calories,
		Protein:  n.Protein + o.Protein,
		Carbs:    n.Carbs + o.Carbs,
		Fiber:    n.Fiber + o.Fiber,
	}
}

// Scale умножает все значения на factor.
func (n Nutrients) Scale(factor float64) Nutrients {
	return Nutrients{
		Calories: n.Calories * factor,
		Protein:  n.Protein * factor,
		Carbs:    n.Carbs * factor,
		Fiber:    n.Fiber * factor,
	}
}

// IsZero сообщает, что все значения нулевые.
func (n Nutrients) IsZero() bool {
	return n == Nutrients{}
}

func (n Nutrients) validate() error {
	for _, v := range []float64{n.Calories, n.Protein, n.Carbs, n.Fiber} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: amount %v", ErrInvalidNutrition, v)
		}
	}
	return nil
}

// NutritionTable: справочник нутриентов по классам еды.
// Значения заданы на BasisGrams граммов продукта. После загрузки только читается.
type NutritionTable struct {
	BasisGrams float64
	foods      map[string]Nutrients
}

// NewNutritionTable проверяет данные и создаёт таблицу.
func NewNutritionTable(basisGrams float64, foods map[string]Nutrients) (*NutritionTable, error) {
	if basisGrams <= 0 || math.IsNaN(basisGrams) || math.IsInf(basisGrams, 0) {
		return nil, fmt.Errorf("%w: basis must be positive, got %v", ErrInvalidNutrition, basisGrams)
	}

	copied := make(map[string]Nutrients, len(foods))
	for name, n := range foods {
		if name == "" {
			return nil, fmt.Errorf("%w: empty food name", ErrInvalidNutrition)
		}
		if err := n.validate(); err != nil {
			return nil, fmt.Errorf("food %q: %w", name, err)
		}
		copied[name] = n
	}

	return &NutritionTable{BasisGrams: basisGrams, foods: copied}, nil
}

// Lookup возвращает нутриенты на BasisGrams граммов.
func (t *NutritionTable) Lookup(foodType string) (Nutrients, bool) {
	n, ok := t.foods[foodType]
	return n, ok
}

// Ratio переводит массу в граммах в долю базовой порции.
func (t *NutritionTable) Ratio(grams float64) float64 {
	return grams / t.BasisGrams
}

// Names возвращает отсортированный список известных продуктов.
func (t *NutritionTable) Names() []string {
	names := make([]string, 0, len(t.foods))
	for name := range t.foods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len: число продуктов в таблице.
func (t *NutritionTable) Len() int {
	return len(t.foods)
}
