package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"food-scale/internal/domain/entity"
	"food-scale/internal/domain/port"
)

// Фиксированная ширина, чтобы строки сортировались в хронологическом порядке.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteMealRepository: журнал приёмов пищи в SQLite.
type SQLiteMealRepository struct {
	db *sql.DB
}

// NewSQLiteMealRepository открывает базу и создаёт схему при необходимости.
func NewSQLiteMealRepository(dbPath string) (*SQLiteMealRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Один писатель: SQLite не любит параллельные транзакции на запись.
	db.SetMaxOpenConns(1)

	repo := &SQLiteMealRepository{db: db}
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

func (r *SQLiteMealRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteMealRepository) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS meals (
        id TEXT PRIMARY KEY,
        created_at TEXT NOT NULL,
        source TEXT NOT NULL,
        image_path TEXT NOT NULL,
        weight REAL NOT NULL,
        inference_ms REAL NOT NULL,
        mode TEXT NOT NULL,
        calories REAL NOT NULL,
        protein REAL NOT NULL,
        carbs REAL NOT NULL,
        fiber REAL NOT NULL
    );

    CREATE TABLE IF NOT EXISTS meal_items (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        meal_id TEXT NOT NULL,
        food_type TEXT NOT NULL,
        count INTEGER NOT NULL,
        weight REAL NOT NULL,
        known INTEGER NOT NULL,
        calories REAL NOT NULL,
        protein REAL NOT NULL,
        carbs REAL NOT NULL,
        fiber REAL NOT NULL,
        FOREIGN KEY (meal_id) REFERENCES meals(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_meals_created_at ON meals(created_at);
    CREATE INDEX IF NOT EXISTS idx_meal_items_meal_id ON meal_items(meal_id);
    `

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Save записывает приём пищи и его позиции одной транзакцией.
func (r *SQLiteMealRepository) Save(ctx context.Context, meal *entity.MealRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	total := meal.Estimate.Total
	mealQuery := `
        INSERT INTO meals (id, created_at, source, image_path, weight, inference_ms, mode, calories, protein, carbs, fiber)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = tx.ExecContext(ctx, mealQuery,
		meal.ID, meal.CreatedAt.UTC().Format(dbTimeLayout), string(meal.Source), meal.ImagePath,
		meal.Weight, meal.InferenceMillis, string(meal.Estimate.Mode),
		total.Calories, total.Protein, total.Carbs, total.Fiber)
	if err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}

	itemQuery := `
        INSERT INTO meal_items (meal_id, food_type, count, weight, known, calories, protein, carbs, fiber)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	for _, item := range meal.Estimate.Items {
		n := item.Nutrients
		_, err = tx.ExecContext(ctx, itemQuery,
			meal.ID, item.FoodType, item.Count, item.Weight, boolToInt(item.Known),
			n.Calories, n.Protein, n.Carbs, n.Fiber)
		if err != nil {
			return fmt.Errorf("failed to insert meal item: %w", err)
		}
	}

	return tx.Commit()
}

// List возвращает последние limit записей, новые первыми.
func (r *SQLiteMealRepository) List(ctx context.Context, limit int) ([]*entity.MealRecord, error) {
	query := `
        SELECT id, created_at, source, image_path, weight, inference_ms, mode, calories, protein, carbs, fiber
        FROM meals
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?
    `
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	meals := make([]*entity.MealRecord, 0)
	for rows.Next() {
		meal, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		meals = append(meals, meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meals: %w", err)
	}
	// Позиции читаем после закрытия курсора: соединение у базы одно.
	rows.Close()

	for _, meal := range meals {
		if err := r.loadItems(ctx, meal); err != nil {
			return nil, fmt.Errorf("failed to load items for meal %s: %w", meal.ID, err)
		}
	}

	return meals, nil
}

// Get возвращает запись по ID.
func (r *SQLiteMealRepository) Get(ctx context.Context, id string) (*entity.MealRecord, error) {
	query := `
        SELECT id, created_at, source, image_path, weight, inference_ms, mode, calories, protein, carbs, fiber
        FROM meals
        WHERE id = ?
    `
	meal, err := scanMeal(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrMealNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, meal); err != nil {
		return nil, fmt.Errorf("failed to load items for meal %s: %w", meal.ID, err)
	}
	return meal, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeal(row rowScanner) (*entity.MealRecord, error) {
	meal := &entity.MealRecord{}
	var createdAt, source, mode string
	total := &meal.Estimate.Total

	err := row.Scan(&meal.ID, &createdAt, &source, &meal.ImagePath, &meal.Weight, &meal.InferenceMillis,
		&mode, &total.Calories, &total.Protein, &total.Carbs, &total.Fiber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan meal: %w", err)
	}

	if meal.CreatedAt, err = time.Parse(dbTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	meal.Source = entity.MealSource(source)
	meal.Estimate.Mode = entity.CalculationMode(mode)
	meal.Estimate.TotalWeight = meal.Weight
	return meal, nil
}

func (r *SQLiteMealRepository) loadItems(ctx context.Context, meal *entity.MealRecord) error {
	query := `
        SELECT food_type, count, weight, known, calories, protein, carbs, fiber
        FROM meal_items
        WHERE meal_id = ?
        ORDER BY id
    `
	rows, err := r.db.QueryContext(ctx, query, meal.ID)
	if err != nil {
		return fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := make([]entity.ItemEstimate, 0)
	for rows.Next() {
		var item entity.ItemEstimate
		var known int
		n := &item.Nutrients
		if err := rows.Scan(&item.FoodType, &item.Count, &item.Weight, &known,
			&n.Calories, &n.Protein, &n.Carbs, &n.Fiber); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		item.Known = known != 0
		items = append(items, item)
	}

	meal.Estimate.Items = items
	return rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ port.MealRepository = (*SQLiteMealRepository)(nil)
