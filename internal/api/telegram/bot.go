package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "genderage/internal/application"
	"genderage/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я определяю пол и возраст людей на фотографиях.

📸 Отправьте мне фото, и я найду на нём лица.

📋 Команды:
/check — распознать лица на фото
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото с лицами
2️⃣ Бот найдёт лица на изображении
3️⃣ Вы получите результат: текст + фото с рамками и подписями

💡 Рекомендации:
• Лица должны смотреть в камеру
• Снимайте при хорошем освещении
• Фото должно быть чётким

📋 Команды:
/check — начать распознавание
/cancel — отменить операцию`

	msgAwaitingPhoto   = "📸 Отправьте фото с лицами."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для нового распознавания."
	msgSendPhoto       = "📸 Пожалуйста, отправьте фото с лицами."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Обрабатываю изображение..."
	msgNoFaces         = "🙈 Лица не найдены. Попробуйте фото, где лицо видно целиком."
	msgInvalidImage    = "⚠️ Не удалось прочитать изображение. Отправьте JPEG или PNG."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте ещё раз."
	msgFallbackNotice  = "ℹ️ Модели не загружены, результат приблизительный."
)

// botAPI часть tgbotapi.BotAPI, которой пользуется бот
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot представляет Telegram-бота
type Bot struct {
	api        botAPI
	updates    func(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	stop       func()
	users      *app.UserService
	detections *app.DetectionService
	httpClient *http.Client
}

// NewBot создаёт нового бота
func NewBot(token string, users *app.UserService, detections *app.DetectionService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	b := newBot(api, users, detections)
	b.updates = api.GetUpdatesChan
	b.stop = api.StopReceivingUpdates
	return b, nil
}

func newBot(api botAPI, users *app.UserService, detections *app.DetectionService) *Bot {
	return &Bot{
		api:        api,
		users:      users,
		detections: detections,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Run запускает основной цикл обработки сообщений до отмены контекста
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.updates(u)
	go func() {
		<-ctx.Done()
		b.stop()
	}()

	for update := range updates {
		if update.Message == nil {
			continue
		}

		b.handleMessage(ctx, update.Message)
	}

	return ctx.Err()
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		log.Printf("Error getting user: %v", err)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// Обработка фото: сжатое фото или картинка, отправленная файлом
	if fileID, ok := imageFileID(msg); ok {
		b.handlePhoto(ctx, msg, user, fileID)
		return
	}

	// Текстовое сообщение (не команда)
	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	switch msg.Command() {
	case "start":
		b.setState(ctx, user, entity.StateMainMenu)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "check":
		if _, err := b.users.BeginDetection(ctx, user.ID, user.ChatID); err != nil {
			log.Printf("Error saving user: %v", err)
		}
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "cancel":
		b.setState(ctx, user, entity.StateMainMenu)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// handlePhoto обрабатывает входящее фото
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, user *entity.User, fileID string) {
	if _, err := b.users.StartProcessing(ctx, user.ID, user.ChatID); err != nil {
		log.Printf("Error saving user: %v", err)
	}
	// Возвращаем в главное меню в любом случае
	defer b.setState(ctx, user, entity.StateMainMenu)

	b.sendMessage(msg.Chat.ID, msgProcessing)

	imageData, err := b.downloadFile(ctx, fileID)
	if err != nil {
		log.Printf("Error downloading photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	out, err := b.detections.ProcessPhoto(ctx, app.PhotoRequest{
		Owner:        user.Owner(),
		Channel:      entity.ChannelTelegram,
		Data:         imageData,
		KeepSnapshot: true,
	})
	switch {
	case errors.Is(err, entity.ErrInvalidImage):
		b.sendMessage(msg.Chat.ID, msgInvalidImage)
		return
	case err != nil:
		log.Printf("Error processing photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	case !out.Result.HasFaces:
		b.sendMessage(msg.Chat.ID, msgNoFaces)
		return
	}

	text := FormatResult(out.Result)
	if b.detections.Pipeline().Source() == entity.SourceFallback {
		text += "\n\n" + msgFallbackNotice
	}

	if len(out.Annotated) == 0 {
		b.sendMessage(msg.Chat.ID, text)
		return
	}
	photo := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{Name: "faces.jpg", Bytes: out.Annotated})
	photo.Caption = text
	if _, err := b.api.Send(photo); err != nil {
		log.Printf("Error sending photo: %v", err)
		b.sendMessage(msg.Chat.ID, text)
	}
}

// FormatResult текстовая сводка по найденным лицам
func FormatResult(result *entity.DetectionResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 Найдено лиц: %d\n", len(result.Faces))
	for i, f := range result.Faces {
		fmt.Fprintf(&sb, "\n%d. %s (%.2f%%), возраст %s (%.2f%%)",
			i+1, f.Gender.Label, f.Gender.Confidence, f.Age.Label, f.Age.Confidence)
	}
	return sb.String()
}

func imageFileID(msg *tgbotapi.Message) (string, bool) {
	if len(msg.Photo) > 0 {
		// Файл с максимальным разрешением
		return msg.Photo[len(msg.Photo)-1].FileID, true
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID, true
	}
	return "", false
}

func (b *Bot) setState(ctx context.Context, user *entity.User, state entity.UserState) {
	if _, err := b.users.SetState(ctx, user.ID, user.ChatID, state); err != nil {
		log.Printf("Error saving user: %v", err)
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
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
		log.Printf("Error sending message: %v", err)
	}
}
