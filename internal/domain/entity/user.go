package entity

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateMainMenu      UserState = "main_menu"      // В главном меню
	StateAwaitingPhoto UserState = "awaiting_photo" // Ожидание фото блюда
	StateProcessing    UserState = "processing"     // Распознавание и расчёт
)

// User представляет пользователя бота
type User struct {
	ID            int64     // Telegram User ID
	ChatID        int64     // Telegram Chat ID
	State         UserState // Текущее состояние пользователя
	PendingWeight float64   // Вес с весов для следующего фото, г; 0 если не задан
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// Reset возвращает пользователя в главное меню без сохранённого веса
func (u *User) Reset() {
	u.State = StateMainMenu
	u.PendingWeight = 0
}
