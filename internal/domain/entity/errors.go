package entity

import "errors"

// Доменные ошибки, проверяются через errors.Is.
var (
	ErrUnknownFood      = errors.New("unknown food type")
	ErrInvalidWeight    = errors.New("weight must be a finite non-negative number")
	ErrUnreadableImage  = errors.New("unable to decode image")
	ErrEmptyImage       = errors.New("empty image")
	ErrMealNotFound     = errors.New("meal not found")
	ErrNotConnected     = errors.New("weight sensor is not connected")
	ErrInvalidNutrition = errors.New("invalid nutrition table")
)
