package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"food-scale/internal/domain/entity"
)

func newTestMealRepo(t *testing.T) *SQLiteMealRepository {
	t.Helper()
	repo, err := NewSQLiteMealRepository(filepath.Join(t.TempDir(), "meals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testMeal(id string, at time.Time) *entity.MealRecord {
	return &entity.MealRecord{
		ID:              id,
		CreatedAt:       at,
		Source:          entity.SourceWeb,
		ImagePath:       "/static/uploads/result_" + id + ".jpg",
		Weight:          300,
		InferenceMillis: 12.5,
		Estimate: entity.Estimate{
			Mode:        entity.ModeWeighted,
			TotalWeight: 300,
			Items: []entity.ItemEstimate{
				{FoodType: "apple", Count: 2, Weight: 200, Known: true, Nutrients: entity.Nutrients{Calories: 104}},
				{FoodType: "pizza", Count: 1, Weight: 100},
			},
			Total: entity.Nutrients{Calories: 104, Protein: 0.6, Carbs: 28, Fiber: 4.8},
		},
	}
}

func TestSQLiteMealRepository_SaveGet(t *testing.T) {
	repo := newTestMealRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, testMeal("m1", at)))

	got, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	require.True(t, at.Equal(got.CreatedAt))
	require.Equal(t, entity.SourceWeb, got.Source)
	require.Equal(t, entity.ModeWeighted, got.Estimate.Mode)
	require.Equal(t, 300.0, got.Estimate.TotalWeight)
	require.Equal(t, 104.0, got.Estimate.Total.Calories)
	require.Len(t, got.Estimate.Items, 2)
	require.True(t, got.Estimate.Items[0].Known)
	require.False(t, got.Estimate.Items[1].Known)
	require.Equal(t, map[string]int{"apple": 2, "pizza": 1}, got.Estimate.Counts())
}

func TestSQLiteMealRepository_GetMissing(t *testing.T) {
	repo := newTestMealRepo(t)

	_, err := repo.Get(context.Background(), "nope")
	require.True(t, errors.Is(err, entity.ErrMealNotFound))
}

func TestSQLiteMealRepository_ListNewestFirst(t *testing.T) {
	repo := newTestMealRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, testMeal(id, base.Add(time.Duration(i)*time.Hour))))
	}

	meals, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, meals, 2)
	require.Equal(t, "c", meals[0].ID)
	require.Equal(t, "b", meals[1].ID)
	require.Len(t, meals[0].Estimate.Items, 2)
}

func TestSQLiteMealRepository_DuplicateID(t *testing.T) {
	repo := newTestMealRepo(t)
	ctx := context.Background()
	at := time.Now()

	require.NoError(t, repo.Save(ctx, testMeal("dup", at)))
	require.Error(t, repo.Save(ctx, testMeal("dup", at)))

	meals, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, meals, 1)
}
