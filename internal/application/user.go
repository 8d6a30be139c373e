package app

import (
	"context"

	"food-scale/internal/domain/entity"
	"food-scale/internal/domain/port"
)

// UserService ведёт состояние диалога пользователя в Telegram.
type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, func(u *entity.User) {
		u.SetState(state)
	})
}

func (s *UserService) BeginCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingPhoto)
}

// Cancel возвращает пользователя в меню и забывает сохранённый вес.
func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, (*entity.User).Reset)
}

// RememberWeight сохраняет вес с весов для следующего фото и ждёт фото.
func (s *UserService) RememberWeight(ctx context.Context, userID, chatID int64, weight float64) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, func(u *entity.User) {
		u.PendingWeight = weight
		u.SetState(entity.StateAwaitingPhoto)
	})
}
