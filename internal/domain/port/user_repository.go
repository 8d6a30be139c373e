package port

import (
	"context"

	"food-scale/internal/domain/entity"
)

// UserRepository хранит состояние диалогов Telegram-бота
type UserRepository interface {
	// Get возвращает копию пользователя, при первом обращении создаёт его
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Update атомарно изменяет пользователя через fn и возвращает копию результата
	Update(ctx context.Context, userID, chatID int64, fn func(*entity.User)) (*entity.User, error)
}
