package storage

import (
	"context"
	"errors"
	"sync"

	"food-scale/internal/domain/entity"
	"food-scale/internal/domain/port"
)

// MemoryUserRepository хранит состояние диалогов бота в памяти процесса.
// Наружу отдаются копии, чтобы параллельные обработчики не делили один *User.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[int64]entity.User
}

// NewMemoryUserRepository создаёт новое in-memory хранилище
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]entity.User),
	}
}

// Get возвращает пользователя по ID, создаёт нового если не найден
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.load(userID, chatID)
	return &user, nil
}

// Update применяет fn под блокировкой, так что чтение и запись не разделяются
func (r *MemoryUserRepository) Update(ctx context.Context, userID, chatID int64, fn func(*entity.User)) (*entity.User, error) {
	if fn == nil {
		return nil, errors.New("update user: nil func")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.load(userID, chatID)
	fn(&user)
	user.ID, user.ChatID = userID, chatID
	r.users[userID] = user

	out := user
	return &out, nil
}

func (r *MemoryUserRepository) load(userID, chatID int64) entity.User {
	user, ok := r.users[userID]
	if !ok {
		user = *entity.NewUser(userID, chatID)
		r.users[userID] = user
	}
	return user
}

// Проверка реализации интерфейса
var _ port.UserRepository = (*MemoryUserRepository)(nil)
