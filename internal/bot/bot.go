package bot

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/linguaflow/internal/excel"
	"github.com/example/linguaflow/internal/practice"
	"github.com/example/linguaflow/internal/review"
	"github.com/example/linguaflow/internal/scheduler"
	"github.com/example/linguaflow/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// sender is the part of the Telegram client the bot uses
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Practice runs the learner's practice flows
type Practice interface {
	SubmitQuiz(ctx context.Context, quizID string, answers []*int) (practice.QuizOutcome, error)
	RateFlashcard(ctx context.Context, cardID string, rating int) (practice.ReviewOutcome, error)
	MarkPracticeComplete(ctx context.Context, activity models.Activity) (practice.PracticeResult, error)
	TodayStatus() practice.TodayStatus
}

// ProgressReader returns the learner's progress
type ProgressReader interface {
	Snapshot() models.UserProgress
}

// CourseLister lists the catalog
type CourseLister interface {
	GetAll(ctx context.Context) ([]models.Course, error)
}

// QuizFinder finds the quiz of a lesson
type QuizFinder interface {
	GetByLessonID(ctx context.Context, lessonID string) (models.Quiz, error)
}

// CardLister lists the flashcards of a course
type CardLister interface {
	GetByCourseID(ctx context.Context, courseID string) ([]models.Flashcard, error)
}

// Reminders reads and changes the reminder settings
type Reminders interface {
	Settings() models.ReminderSettings
	UpdateSettings(ctx context.Context, s models.ReminderSettings) (models.ReminderSettings, error)
	Status() scheduler.Status
}

// Importer imports flashcards from a spreadsheet
type Importer interface {
	Import(ctx context.Context, r io.Reader, format string, config excel.ImportConfig) (*excel.ImportResult, error)
}

// Deps are the services the bot talks to
type Deps struct {
	Practice   Practice
	Progress   ProgressReader
	Courses    CourseLister
	Quizzes    QuizFinder
	Flashcards CardLister
	Reminders  Reminders
	Importer   Importer
}

// quizSession is a quiz being answered question by question
type quizSession struct {
	Quiz     models.Quiz
	Shuffled []models.Question
	Order    [][]int // Order[q][shown] is the original option index
	Answers  []*int
	Current  int
	Started  time.Time
}

// cardSession is a flashcard review round
type cardSession struct {
	Cards   []models.Flashcard
	Current int
	XP      int
	Started time.Time
}

// Bot represents the Telegram bot application
type Bot struct {
	Deps
	config     *BotConfig
	queue      *review.Queue
	rnd        *rand.Rand
	now        func() time.Time
	httpClient *http.Client

	mu                 sync.Mutex
	api                sender
	quizSessions       map[int64]*quizSession
	cardSessions       map[int64]*cardSession
	awaitingFileUpload map[int64]bool
	running            atomic.Bool
}

// New creates a new bot instance. Deps may be filled in later, before Start.
func New(config *BotConfig, deps Deps) (*Bot, error) {
	if config == nil || config.Token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	return &Bot{
		Deps:               deps,
		config:             config,
		queue:              review.NewQueue(config.CardsPerSession),
		rnd:                rand.New(rand.NewSource(time.Now().UnixNano())),
		now:                time.Now,
		httpClient:         &http.Client{Timeout: 30 * time.Second},
		quizSessions:       make(map[int64]*quizSession),
		cardSessions:       make(map[int64]*cardSession),
		awaitingFileUpload: make(map[int64]bool),
	}, nil
}

// Start connects to Telegram and handles updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	if b.Practice == nil || b.Progress == nil {
		return fmt.Errorf("bot needs the practice service and the progress store")
	}
	botAPI, err := tgbotapi.NewBotAPI(b.config.Token)
	if err != nil {
		return fmt.Errorf("unable to create bot: %w", err)
	}
	b.mu.Lock()
	b.api = botAPI
	b.mu.Unlock()
	log.WithField("account", botAPI.Self.UserName).Info("telegram bot authorized")

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.UpdateTimeout
	updates := botAPI.GetUpdatesChan(updateConfig)

	b.running.Store(true)
	defer b.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			log.Info("telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) client() sender {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.api
}

// send delivers a message and logs failures
func (b *Bot) send(c tgbotapi.Chattable) {
	api := b.client()
	if api == nil {
		return
	}
	if _, err := api.Send(c); err != nil {
		log.WithError(err).Warn("failed to send telegram message")
	}
}

func (b *Bot) reply(chatID int64, text string, buttons [][]MenuButton) {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		msg.ReplyMarkup = createKeyboard(buttons)
	}
	b.send(msg)
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.config.AdminUserIDs[userID]
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.Message != nil && update.Message.IsCommand():
		err = b.HandleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Document != nil && b.awaitingUpload(update.Message.Chat.ID):
		err = b.handleDocument(ctx, update.Message)
	case update.Message != nil:
		b.reply(update.Message.Chat.ID, "I don't understand. Use /help to see the commands.", b.MainMenuButtons())
	case update.CallbackQuery != nil:
		err = b.HandleCallback(ctx, update.CallbackQuery)
	}
	if err != nil {
		log.WithError(err).Warn("failed to handle telegram update")
	}
}

// MainMenuButtons returns the buttons for the main menu
func (b *Bot) MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "📊 Progress", CallbackData: callbackProgress},
			{Text: "📚 Courses", CallbackData: callbackCourses},
		},
		{
			{Text: "✅ Log practice", CallbackData: callbackPractice},
		},
	}
}

func (b *Bot) awaitingUpload(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awaitingFileUpload[chatID]
}

// pruneLocked drops sessions older than the configured TTL
func (b *Bot) pruneLocked() {
	cutoff := b.now().Add(-b.config.SessionTTL)
	for id, s := range b.quizSessions {
		if s.Started.Before(cutoff) {
			delete(b.quizSessions, id)
		}
	}
	for id, s := range b.cardSessions {
		if s.Started.Before(cutoff) {
			delete(b.cardSessions, id)
		}
	}
}

// download fetches an uploaded Telegram file
func (b *Bot) download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	api := b.client()
	if api == nil {
		return nil, fmt.Errorf("bot is not connected")
	}
	url, err := api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
