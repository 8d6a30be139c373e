package app

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"food-scale/internal/domain/entity"
)

// NutritionCalculator считает питательность по таблице и весу.
type NutritionCalculator struct {
	table *entity.NutritionTable
}

// NewNutritionCalculator создаёт калькулятор поверх загруженной таблицы.
func NewNutritionCalculator(table *entity.NutritionTable) *NutritionCalculator {
	return &NutritionCalculator{table: table}
}

// Table возвращает таблицу питания.
func (c *NutritionCalculator) Table() *entity.NutritionTable {
	return c.table
}

// SelectMode выбирает способ расчёта: распределение веса возможно только
// при положительном весе и хотя бы одном обнаружении.
func SelectMode(counts map[string]int, totalWeight float64) entity.CalculationMode {
	if totalWeight > 0 && totalItems(counts) > 0 {
		return entity.ModeWeighted
	}
	return entity.ModeUnweighted
}

// Apportion делит общий вес поровну между всеми объектами и возвращает вес каждого класса.
// Сумма весов классов равна totalWeight.
func Apportion(counts map[string]int, totalWeight float64) map[string]float64 {
	n := totalItems(counts)
	weights := make(map[string]float64, len(counts))
	if n == 0 || totalWeight <= 0 {
		return weights
	}

	perItem := totalWeight / float64(n)
	for name, count := range counts {
		if count <= 0 {
			continue
		}
		weights[name] = perItem * float64(count)
	}
	return weights
}

// Estimate рассчитывает суммарную питательность для счётчиков обнаружений.
// Классы, которых нет в таблице, дают нулевой вклад.
func (c *NutritionCalculator) Estimate(counts map[string]int, totalWeight float64) (entity.Estimate, error) {
	if err := checkWeight(totalWeight); err != nil {
		return entity.Estimate{}, err
	}

	mode := SelectMode(counts, totalWeight)
	weights := Apportion(counts, totalWeight)

	est := entity.Estimate{
		Mode:        mode,
		TotalWeight: totalWeight,
		Items:       make([]entity.ItemEstimate, 0, len(counts)),
	}

	for _, name := range sortedNames(counts) {
		count := counts[name]
		base, known := c.table.Lookup(name)
		item := entity.ItemEstimate{FoodType: name, Count: count, Known: known}

		switch mode {
		case entity.ModeWeighted:
			item.Weight = weights[name]
			if known {
				item.Nutrients = base.Scale(c.table.Ratio(item.Weight))
			}
		case entity.ModeUnweighted:
			if known {
				item.Nutrients = base.Scale(float64(count))
			}
		}

		est.Total = est.Total.Add(item.Nutrients)
		est.Items = append(est.Items, item)
	}

	return est, nil
}

// CalculateFood считает питательность одного продукта заданного веса.
func (c *NutritionCalculator) CalculateFood(foodType string, weight float64) (entity.Nutrients, error) {
	foodType = strings.TrimSpace(foodType)
	if foodType == "" {
		return entity.Nutrients{}, fmt.Errorf("%w: food_type is required", entity.ErrUnknownFood)
	}
	if err := checkWeight(weight); err != nil {
		return entity.Nutrients{}, err
	}

	base, ok := c.table.Lookup(foodType)
	if !ok {
		return entity.Nutrients{}, fmt.Errorf("%w: %q", entity.ErrUnknownFood, foodType)
	}
	return base.Scale(c.table.Ratio(weight)), nil
}

func checkWeight(w float64) error {
	if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("%w: got %v", entity.ErrInvalidWeight, w)
	}
	return nil
}

func totalItems(counts map[string]int) int {
	n := 0
	for _, count := range counts {
		if count > 0 {
			n += count
		}
	}
	return n
}

func sortedNames(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name, count := range counts {
		if count > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
