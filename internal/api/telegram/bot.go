package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "food-scale/internal/application"
	"food-scale/internal/container"
	"food-scale/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я считаю калории по фото блюда.

📸 Отправьте фото тарелки, и я распознаю еду и посчитаю питательность.
⚖️ Вес можно указать в подписи к фото (например, 350) или взять с весов командой /weight.

📋 Команды:
/check — распознать блюдо
/weight — взвесить на весах
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Поставьте тарелку на весы и отправьте /weight (или укажите вес в подписи)
2️⃣ Отправьте фото блюда сверху
3️⃣ Получите фото с рамками, калории и рекомендации

💡 Без веса каждая порция считается по 100 г.

📋 Команды:
/check — распознать блюдо
/weight — взвесить на весах
/cancel — отменить операцию`

	msgAwaitingPhoto   = "📸 Отправьте фото блюда."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для нового блюда."
	msgSendPhoto       = "📸 Пожалуйста, отправьте фото блюда."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Распознаю блюдо..."
	msgNothingFound    = "🤷 Еда на фото не распознана."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте сделать другое фото."
	msgScaleOffline    = "⚖️ Весы не подключены. Укажите вес в подписи к фото."
	msgNoWeight        = "⚖️ Весы не прислали показание. Поставьте тарелку и повторите /weight."
	msgWeightFormat    = "⚖️ Вес: %.1f г. Теперь отправьте фото блюда."
)

const downloadTimeout = 30 * time.Second

// botAPI: методы tgbotapi.BotAPI, которыми пользуется бот.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot представляет Telegram-бота
type Bot struct {
	api    botAPI
	app    *container.Container
	client *http.Client
	logger *slog.Logger
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	b := newBot(api, c, logger)
	b.logger.Info("telegram bot authorized", "account", api.Self.UserName)
	return b, nil
}

func newBot(api botAPI, c *container.Container, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:    api,
		app:    c,
		client: &http.Client{Timeout: downloadTimeout},
		logger: logger.With("component", "telegram"),
	}
}

// Run обрабатывает сообщения, пока не отменён ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}

	user, err := b.app.UserService.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.logger.Error("failed to get user", "user_id", msg.From.ID, "error", err)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg, user)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.resetUser(ctx, user)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "check":
		if _, err := b.app.UserService.BeginCheck(ctx, user.ID, user.ChatID); err != nil {
			b.logger.Error("failed to update user", "user_id", user.ID, "error", err)
		}
		b.sendMessage(chatID, msgAwaitingPhoto)

	case "weight":
		b.handleWeight(ctx, chatID, user)

	case "cancel":
		b.resetUser(ctx, user)
		b.sendMessage(chatID, msgCancelled)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handleWeight читает весы и запоминает вес для следующего фото
func (b *Bot) handleWeight(ctx context.Context, chatID int64, user *entity.User) {
	reading := b.app.WeightService.Current(ctx)
	if !reading.Connected {
		b.sendMessage(chatID, msgScaleOffline)
		return
	}
	if reading.LastUpdate == nil || reading.Weight <= 0 {
		b.sendMessage(chatID, msgNoWeight)
		return
	}

	if _, err := b.app.UserService.RememberWeight(ctx, user.ID, user.ChatID, reading.Weight); err != nil {
		b.logger.Error("failed to update user", "user_id", user.ID, "error", err)
	}
	b.sendMessage(chatID, fmt.Sprintf(msgWeightFormat, reading.Weight))
}

// handlePhoto распознаёт блюдо на фото и отвечает размеченной картинкой
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	chatID := msg.Chat.ID
	weight := b.app.WeightService.WeightFor(msg.Caption, user.PendingWeight)

	if _, err := b.app.UserService.SetState(ctx, user.ID, user.ChatID, entity.StateProcessing); err != nil {
		b.logger.Error("failed to update user", "user_id", user.ID, "error", err)
	}
	defer b.resetUser(ctx, user)

	b.sendMessage(chatID, msgProcessing)

	// Берём файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]

	imageData, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		b.logger.Error("failed to download photo", "file_id", photo.FileID, "error", err)
		b.sendMessage(chatID, msgProcessingError)
		return
	}

	report, err := b.app.RecognitionService.Recognize(ctx, app.RecognitionInput{
		Image:    imageData,
		FileName: "telegram_" + photo.FileUniqueID + ".jpg",
		Weight:   weight,
		Source:   entity.SourceTelegram,
	})
	if err != nil {
		if !errors.Is(err, entity.ErrUnreadableImage) {
			b.logger.Error("recognition failed", "user_id", user.ID, "error", err)
		}
		b.sendMessage(chatID, msgProcessingError)
		return
	}

	b.sendPhoto(chatID, report.Annotated, formatCaption(report))
	if len(report.Recommendations.Messages) > 0 {
		b.sendMessage(chatID, "💡 "+strings.Join(report.Recommendations.Messages, "\n💡 "))
	}
}

func (b *Bot) resetUser(ctx context.Context, user *entity.User) {
	if _, err := b.app.UserService.Cancel(ctx, user.ID, user.ChatID); err != nil {
		b.logger.Error("failed to reset user", "user_id", user.ID, "error", err)
	}
}

// formatCaption собирает подпись к размеченному фото
func formatCaption(r *app.DetectionReport) string {
	if r.TotalItems == 0 {
		return msgNothingFound
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🍽 Найдено объектов: %d (%s)\n", r.TotalItems, r.InferenceTime)
	for _, c := range entity.SortedCounts(r.Detections) {
		fmt.Fprintf(&sb, "• %s × %d\n", c.ClassName, c.Count)
	}
	if r.Estimate.Mode == entity.ModeWeighted {
		fmt.Fprintf(&sb, "⚖️ Вес: %.1f г\n", r.DetectionWeight)
	} else {
		sb.WriteString("⚖️ Вес не указан, порции по таблице\n")
	}
	fmt.Fprintf(&sb, "🔥 %s", app.Summary(r.Nutrition))
	return sb.String()
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

// sendPhoto отправляет JPEG с подписью
func (b *Bot) sendPhoto(chatID int64, data []byte, caption string) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "result.jpg", Bytes: data})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Error("failed to send photo", "chat_id", chatID, "error", err)
	}
}
