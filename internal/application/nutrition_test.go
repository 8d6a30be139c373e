package app

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"food-scale/internal/domain/entity"
)

const eps = 1e-9

var (
	apple = entity.Nutrients{Calories: 52, Protein: 0.3, Carbs: 14, Fiber: 2.4}
	rice  = entity.Nutrients{Calories: 130, Protein: 2.7, Carbs: 28, Fiber: 0.4}
)

func newTestCalculator(t *testing.T) *NutritionCalculator {
	t.Helper()
	table, err := entity.NewNutritionTable(100, map[string]entity.Nutrients{
		"apple": apple,
		"rice":  rice,
	})
	require.NoError(t, err)
	return NewNutritionCalculator(table)
}

func requireNutrientsInDelta(t *testing.T, want, got entity.Nutrients) {
	t.Helper()
	require.InDelta(t, want.Calories, got.Calories, eps)
	require.InDelta(t, want.Protein, got.Protein, eps)
	require.InDelta(t, want.Carbs, got.Carbs, eps)
	require.InDelta(t, want.Fiber, got.Fiber, eps)
}

func TestSelectMode(t *testing.T) {
	require.Equal(t, entity.ModeWeighted, SelectMode(map[string]int{"apple": 1}, 10))
	require.Equal(t, entity.ModeUnweighted, SelectMode(map[string]int{"apple": 1}, 0))
	require.Equal(t, entity.ModeUnweighted, SelectMode(map[string]int{}, 100))
	require.Equal(t, entity.ModeUnweighted, SelectMode(map[string]int{"apple": 0}, 100))
}

func TestApportion_SumEqualsTotal(t *testing.T) {
	cases := []struct {
		counts map[string]int
		total  float64
	}{
		{map[string]int{"apple": 2, "rice": 1}, 300},
		{map[string]int{"apple": 3, "rice": 7, "egg": 1}, 152.3},
		{map[string]int{"banana": 1}, 0.1},
		{map[string]int{"a": 13, "b": 17, "c": 19}, 999.99},
	}
	for _, tc := range cases {
		weights := Apportion(tc.counts, tc.total)
		sum := 0.0
		for _, w := range weights {
			sum += w
		}
		require.InDelta(t, tc.total, sum, 1e-9)
	}
}

func TestEstimate_WeightedExample(t *testing.T) {
	calc := newTestCalculator(t)

	est, err := calc.Estimate(map[string]int{"apple": 2, "rice": 1}, 300)
	require.NoError(t, err)
	require.Equal(t, entity.ModeWeighted, est.Mode)
	require.Len(t, est.Items, 2)

	require.Equal(t, "apple", est.Items[0].FoodType)
	require.InDelta(t, 200, est.Items[0].Weight, eps)
	requireNutrientsInDelta(t, apple.Scale(2), est.Items[0].Nutrients)

	require.Equal(t, "rice", est.Items[1].FoodType)
	require.InDelta(t, 100, est.Items[1].Weight, eps)
	requireNutrientsInDelta(t, rice, est.Items[1].Nutrients)

	requireNutrientsInDelta(t, apple.Scale(2).Add(rice), est.Total)
}

func TestEstimate_Linear(t *testing.T) {
	calc := newTestCalculator(t)
	counts := map[string]int{"apple": 3, "rice": 2}

	single, err := calc.Estimate(counts, 175)
	require.NoError(t, err)
	double, err := calc.Estimate(counts, 350)
	require.NoError(t, err)

	requireNutrientsInDelta(t, single.Total.Scale(2), double.Total)
}

func TestEstimate_UnknownClassContributesZero(t *testing.T) {
	calc := newTestCalculator(t)

	est, err := calc.Estimate(map[string]int{"apple": 1, "pizza": 1}, 200)
	require.NoError(t, err)

	var pizza entity.ItemEstimate
	for _, item := range est.Items {
		if item.FoodType == "pizza" {
			pizza = item
		}
	}
	require.False(t, pizza.Known)
	require.InDelta(t, 100, pizza.Weight, eps)
	require.True(t, pizza.Nutrients.IsZero())
	// Вес неизвестного класса не перераспределяется на известные.
	requireNutrientsInDelta(t, apple, est.Total)
}

func TestEstimate_OnlyUnknownClasses(t *testing.T) {
	calc := newTestCalculator(t)

	est, err := calc.Estimate(map[string]int{"pizza": 2}, 300)
	require.NoError(t, err)
	require.True(t, est.Total.IsZero())
}

func TestEstimate_ZeroWeightFallsBackToCount(t *testing.T) {
	calc := newTestCalculator(t)

	est, err := calc.Estimate(map[string]int{"apple": 2, "rice": 1}, 0)
	require.NoError(t, err)
	require.Equal(t, entity.ModeUnweighted, est.Mode)
	for _, item := range est.Items {
		require.Zero(t, item.Weight)
	}
	requireNutrientsInDelta(t, apple.Scale(2).Add(rice), est.Total)
}

func TestEstimate_NoDetections(t *testing.T) {
	calc := newTestCalculator(t)

	est, err := calc.Estimate(map[string]int{}, 250)
	require.NoError(t, err)
	require.Equal(t, entity.ModeUnweighted, est.Mode)
	require.Empty(t, est.Items)
	require.True(t, est.Total.IsZero())
}

func TestEstimate_InvalidWeight(t *testing.T) {
	calc := newTestCalculator(t)

	for _, w := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := calc.Estimate(map[string]int{"apple": 1}, w)
		require.True(t, errors.Is(err, entity.ErrInvalidWeight), "weight %v", w)
	}
}

func TestEstimate_RespectsTableBasis(t *testing.T) {
	table, err := entity.NewNutritionTable(50, map[string]entity.Nutrients{"apple": apple})
	require.NoError(t, err)
	calc := NewNutritionCalculator(table)

	est, err := calc.Estimate(map[string]int{"apple": 1}, 100)
	require.NoError(t, err)
	requireNutrientsInDelta(t, apple.Scale(2), est.Total)
}

func TestCalculateFood(t *testing.T) {
	calc := newTestCalculator(t)

	n, err := calc.CalculateFood("rice", 150)
	require.NoError(t, err)
	requireNutrientsInDelta(t, rice.Scale(1.5), n)

	n, err = calc.CalculateFood(" rice ", 0)
	require.NoError(t, err)
	require.True(t, n.IsZero())
}

func TestCalculateFood_Errors(t *testing.T) {
	calc := newTestCalculator(t)

	_, err := calc.CalculateFood("", 100)
	require.True(t, errors.Is(err, entity.ErrUnknownFood))

	_, err = calc.CalculateFood("pizza", 100)
	require.True(t, errors.Is(err, entity.ErrUnknownFood))

	_, err = calc.CalculateFood("rice", -5)
	require.True(t, errors.Is(err, entity.ErrInvalidWeight))
}
