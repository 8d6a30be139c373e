package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"food-scale/internal/domain/entity"
)

// nutritionFile: формат файла с явной базой:
//
//	{"basis_grams": 100, "foods": {"apple": {"calories": 52, ...}}}
//
// Плоский формат {"apple": {...}} тоже принимается, база тогда 100 г.
type nutritionFile struct {
	BasisGrams *float64                    `json:"basis_grams"`
	Foods      map[string]entity.Nutrients `json:"foods"`
}

// LoadNutritionTable читает таблицу питания из JSON-файла.
func LoadNutritionTable(path string) (*entity.NutritionTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read nutrition table: %w", err)
	}

	table, err := ParseNutritionTable(data)
	if err != nil {
		return nil, fmt.Errorf("parse nutrition table %s: %w", path, err)
	}
	return table, nil
}

// ParseNutritionTable разбирает JSON таблицы питания.
func ParseNutritionTable(data []byte) (*entity.NutritionTable, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidNutrition, err)
	}

	_, hasFoods := probe["foods"]
	_, hasBasis := probe["basis_grams"]
	if hasFoods || hasBasis {
		var f nutritionFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrInvalidNutrition, err)
		}
		basis := entity.DefaultBasisGrams
		if f.BasisGrams != nil {
			basis = *f.BasisGrams
		}
		return entity.NewNutritionTable(basis, f.Foods)
	}

	var flat map[string]entity.Nutrients
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidNutrition, err)
	}
	return entity.NewNutritionTable(entity.DefaultBasisGrams, flat)
}
