package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"food-scale/internal/domain/entity"
)

func TestParseNutritionTable_Flat(t *testing.T) {
	table, err := ParseNutritionTable([]byte(`{
		"apple": {"calories": 52, "protein": 0.3, "carbs": 14, "fiber": 2.4},
		"rice":  {"calories": 130, "protein": 2.7, "carbs": 28, "fiber": 0.4}
	}`))
	require.NoError(t, err)
	require.Equal(t, entity.DefaultBasisGrams, table.BasisGrams)
	require.Equal(t, []string{"apple", "rice"}, table.Names())

	apple, ok := table.Lookup("apple")
	require.True(t, ok)
	require.Equal(t, entity.Nutrients{Calories: 52, Protein: 0.3, Carbs: 14, Fiber: 2.4}, apple)
}

func TestParseNutritionTable_ExplicitBasis(t *testing.T) {
	table, err := ParseNutritionTable([]byte(`{
		"basis_grams": 50,
		"foods": {"egg": {"calories": 78, "protein": 6.3}}
	}`))
	require.NoError(t, err)
	require.Equal(t, 50.0, table.BasisGrams)

	egg, ok := table.Lookup("egg")
	require.True(t, ok)
	require.Equal(t, 78.0, egg.Calories)
	require.Zero(t, egg.Fiber)
}

func TestParseNutritionTable_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":       `[1, 2`,
		"array":          `[]`,
		"zero basis":     `{"basis_grams": 0, "foods": {}}`,
		"negative value": `{"apple": {"calories": -5}}`,
		"wrong type":     `{"apple": {"calories": "many"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseNutritionTable([]byte(raw))
			require.True(t, errors.Is(err, entity.ErrInvalidNutrition), "got %v", err)
		})
	}
}

func TestLoadNutritionTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nutrition_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"banana": {"calories": 89}}`), 0o644))

	table, err := LoadNutritionTable(path)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	_, err = LoadNutritionTable(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
