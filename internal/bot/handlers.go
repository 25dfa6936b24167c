package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/linguaflow/internal/excel"
	"github.com/example/linguaflow/internal/scoring"
	"github.com/example/linguaflow/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Constants for callback data
const (
	callbackMainMenu = "main_menu"
	callbackProgress = "show_progress"
	callbackCourses  = "show_courses"
	callbackPractice = "log_practice"

	prefixCards      = "cards_"
	prefixQuizAnswer = "quiz_answer_"
	prefixCardFlip   = "card_flip_"
	prefixCardRate   = "card_rate_"
)

const helpText = `Welcome to LinguaFlow! 🎓

Available commands:
/progress - XP, streak and course progress
/courses - Browse courses and review flashcards
/quiz <lessonId> - Take the quiz of a lesson
/cards <courseId> - Review flashcards of a course
/practice - Log today's practice
/remind on|off|HH:MM - Daily reminder settings
/help - Show this message`

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message == nil || message.From == nil || message.Chat == nil {
		return fmt.Errorf("invalid message: required fields are missing")
	}

	var err error
	switch message.Command() {
	case "start", "help", "menu":
		b.reply(message.Chat.ID, helpText, b.MainMenuButtons())
	case "progress":
		err = b.handleProgress(ctx, message.Chat.ID)
	case "courses":
		err = b.handleCourses(ctx, message.Chat.ID)
	case "quiz":
		err = b.handleQuiz(ctx, message.Chat.ID, strings.TrimSpace(message.CommandArguments()))
	case "cards":
		err = b.handleCards(ctx, message.Chat.ID, strings.TrimSpace(message.CommandArguments()))
	case "practice":
		err = b.handlePractice(ctx, message.Chat.ID)
	case "remind":
		err = b.handleRemind(ctx, message.Chat.ID, strings.TrimSpace(message.CommandArguments()))
	case "import":
		// Admin-only command
		if !b.isAdmin(message.From.ID) {
			b.reply(message.Chat.ID, "This command is only available for administrators.", b.MainMenuButtons())
			return nil
		}
		b.handleImportCommand(message.Chat.ID)
	default:
		b.reply(message.Chat.ID, "Unknown command. Use /help to see the commands.", b.MainMenuButtons())
	}
	return err
}

func (b *Bot) handleProgress(ctx context.Context, chatID int64) error {
	courses, err := b.Courses.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list courses: %w", err)
	}
	b.reply(chatID, formatProgress(b.Progress.Snapshot(), b.Practice.TodayStatus(), courses), b.MainMenuButtons())
	return nil
}

func (b *Bot) handleCourses(ctx context.Context, chatID int64) error {
	courses, err := b.Courses.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list courses: %w", err)
	}
	if len(courses) == 0 {
		b.reply(chatID, "No courses yet.", nil)
		return nil
	}

	var lines []string
	var buttons [][]MenuButton
	for _, c := range courses {
		lines = append(lines, fmt.Sprintf("• %s (%s, %d lessons) - %s", c.Title, c.Level, c.TotalLessons, c.ID))
		buttons = append(buttons, []MenuButton{{Text: "📇 " + c.Title, CallbackData: prefixCards + c.ID}})
	}
	buttons = append(buttons, []MenuButton{{Text: "⬅️ Menu", CallbackData: callbackMainMenu}})
	b.reply(chatID, "Courses:\n\n"+strings.Join(lines, "\n"), buttons)
	return nil
}

func (b *Bot) handleQuiz(ctx context.Context, chatID int64, lessonID string) error {
	if lessonID == "" {
		b.reply(chatID, "Usage: /quiz <lessonId>", nil)
		return nil
	}
	quiz, err := b.Quizzes.GetByLessonID(ctx, lessonID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("No quiz found for lesson %s.", lessonID), nil)
		return nil
	}
	if len(quiz.Questions) == 0 {
		b.reply(chatID, "This quiz has no questions.", nil)
		return nil
	}

	s := &quizSession{
		Quiz:     quiz,
		Shuffled: make([]models.Question, len(quiz.Questions)),
		Order:    make([][]int, len(quiz.Questions)),
		Answers:  make([]*int, len(quiz.Questions)),
		Started:  b.now(),
	}
	b.mu.Lock()
	for i, q := range quiz.Questions {
		s.Shuffled[i], s.Order[i] = scoring.ShuffleOptions(q, b.rnd)
	}
	b.pruneLocked()
	b.quizSessions[chatID] = s
	b.mu.Unlock()

	b.sendQuestion(chatID, s)
	return nil
}

func (b *Bot) sendQuestion(chatID int64, s *quizSession) {
	q := s.Shuffled[s.Current]
	var buttons [][]MenuButton
	for i, opt := range q.Options {
		buttons = append(buttons, []MenuButton{{
			Text:         opt,
			CallbackData: fmt.Sprintf("%s%d_%d", prefixQuizAnswer, s.Current, i),
		}})
	}
	text := fmt.Sprintf("%s\nQuestion %d/%d\n\n%s", s.Quiz.Title, s.Current+1, len(s.Shuffled), q.Question)
	b.reply(chatID, text, buttons)
}

func (b *Bot) handleQuizAnswer(ctx context.Context, callback *tgbotapi.CallbackQuery, chatID int64, args []int) error {
	if len(args) != 2 {
		return fmt.Errorf("malformed quiz answer %q", callback.Data)
	}
	question, shown := args[0], args[1]

	b.mu.Lock()
	s, ok := b.quizSessions[chatID]
	if !ok || s.Current != question || shown < 0 || shown >= len(s.Order[question]) {
		b.mu.Unlock()
		b.answerCallback(callback, "This question is no longer active.")
		return nil
	}
	orig := s.Order[question][shown]
	s.Answers[question] = &orig
	s.Current++
	done := s.Current == len(s.Shuffled)
	if done {
		delete(b.quizSessions, chatID)
	}
	b.mu.Unlock()

	if shown == s.Shuffled[question].CorrectAnswer {
		b.answerCallback(callback, "✅ Correct")
	} else {
		b.answerCallback(callback, "❌ Not quite")
	}

	if !done {
		b.sendQuestion(chatID, s)
		return nil
	}
	out, err := b.Practice.SubmitQuiz(ctx, s.Quiz.ID, s.Answers)
	if err != nil {
		b.reply(chatID, "Could not submit the quiz, please try again.", b.MainMenuButtons())
		return fmt.Errorf("failed to submit quiz %s: %w", s.Quiz.ID, err)
	}
	b.reply(chatID, formatQuizOutcome(out), b.MainMenuButtons())
	return nil
}

func (b *Bot) handleCards(ctx context.Context, chatID int64, courseID string) error {
	if courseID == "" {
		b.reply(chatID, "Usage: /cards <courseId>", nil)
		return nil
	}
	cards, err := b.Flashcards.GetByCourseID(ctx, courseID)
	if err != nil {
		return fmt.Errorf("failed to get flashcards: %w", err)
	}
	if len(cards) == 0 {
		b.reply(chatID, fmt.Sprintf("No flashcards for %s.", courseID), b.MainMenuButtons())
		return nil
	}
	cards = b.queue.Next(cards)

	s := &cardSession{Cards: cards, Started: b.now()}
	b.mu.Lock()
	b.pruneLocked()
	b.cardSessions[chatID] = s
	b.mu.Unlock()

	b.sendCardFront(chatID, s)
	return nil
}

func (b *Bot) sendCardFront(chatID int64, s *cardSession) {
	card := s.Cards[s.Current]
	text := fmt.Sprintf("Card %d/%d\n\n%s", s.Current+1, len(s.Cards), card.Front)
	b.reply(chatID, text, [][]MenuButton{{
		{Text: "🔄 Show answer", CallbackData: fmt.Sprintf("%s%d", prefixCardFlip, s.Current)},
	}})
}

func (b *Bot) handleCardFlip(callback *tgbotapi.CallbackQuery, chatID int64, args []int) error {
	if len(args) != 1 {
		return fmt.Errorf("malformed card flip %q", callback.Data)
	}
	b.mu.Lock()
	s, ok := b.cardSessions[chatID]
	if !ok || s.Current != args[0] {
		b.mu.Unlock()
		b.answerCallback(callback, "This card is no longer active.")
		return nil
	}
	card := s.Cards[s.Current]
	b.mu.Unlock()

	b.answerCallback(callback, "")
	b.reply(chatID, formatCardBack(card), ratingButtons(args[0]))
	return nil
}

func ratingButtons(idx int) [][]MenuButton {
	return [][]MenuButton{{
		{Text: "😓 Hard", CallbackData: fmt.Sprintf("%s%d_%d", prefixCardRate, idx, models.RatingHard)},
		{Text: "🙂 Good", CallbackData: fmt.Sprintf("%s%d_%d", prefixCardRate, idx, models.RatingGood)},
		{Text: "😎 Easy", CallbackData: fmt.Sprintf("%s%d_%d", prefixCardRate, idx, models.RatingEasy)},
	}}
}

func (b *Bot) handleCardRate(ctx context.Context, callback *tgbotapi.CallbackQuery, chatID int64, args []int) error {
	if len(args) != 2 {
		return fmt.Errorf("malformed card rating %q", callback.Data)
	}
	idx, rating := args[0], args[1]

	b.mu.Lock()
	s, ok := b.cardSessions[chatID]
	if !ok || s.Current != idx {
		b.mu.Unlock()
		b.answerCallback(callback, "This card is no longer active.")
		return nil
	}
	card := s.Cards[idx]
	b.mu.Unlock()

	out, err := b.Practice.RateFlashcard(ctx, card.ID, rating)
	if err != nil {
		b.answerCallback(callback, "Could not save the rating.")
		return fmt.Errorf("failed to rate flashcard %s: %w", card.ID, err)
	}
	b.answerCallback(callback, fmt.Sprintf("+%d XP", out.XPGain))

	b.mu.Lock()
	s.XP += out.XPGain + out.Practice.XPEarned
	s.Current++
	done := s.Current == len(s.Cards)
	if done {
		delete(b.cardSessions, chatID)
	}
	b.mu.Unlock()

	if !done {
		b.sendCardFront(chatID, s)
		return nil
	}
	b.reply(chatID, fmt.Sprintf("Review finished! %d cards, +%d XP 🎉", len(s.Cards), s.XP), b.MainMenuButtons())
	return nil
}

func (b *Bot) handlePractice(ctx context.Context, chatID int64) error {
	res, err := b.Practice.MarkPracticeComplete(ctx, models.ActivityPractice)
	if err != nil {
		return fmt.Errorf("failed to log practice: %w", err)
	}
	b.reply(chatID, formatPractice(res), b.MainMenuButtons())
	return nil
}

func (b *Bot) handleRemind(ctx context.Context, chatID int64, arg string) error {
	settings := b.Reminders.Settings()
	switch strings.ToLower(arg) {
	case "":
		b.reply(chatID, formatReminderStatus(b.Reminders.Status()), nil)
		return nil
	case "on":
		settings.Enabled = true
	case "off":
		settings.Enabled = false
	default:
		if _, err := time.Parse("15:04", arg); err != nil {
			b.reply(chatID, "Usage: /remind on|off|HH:MM", nil)
			return nil
		}
		settings.Time = arg
		settings.Enabled = true
	}

	if _, err := b.Reminders.UpdateSettings(ctx, settings); err != nil {
		b.reply(chatID, "Could not update the reminder: "+err.Error(), nil)
		return nil
	}
	b.reply(chatID, formatReminderStatus(b.Reminders.Status()), nil)
	return nil
}

func (b *Bot) handleImportCommand(chatID int64) {
	b.mu.Lock()
	b.awaitingFileUpload[chatID] = true
	b.mu.Unlock()

	b.reply(chatID, "Send an .xlsx or .csv file with columns:\nfront | back | pronunciation | example | difficulty\n\n"+
		"In CSV files a row with only a course id starts the cards of that course.", nil)
}

func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	b.mu.Lock()
	delete(b.awaitingFileUpload, chatID)
	b.mu.Unlock()

	doc := message.Document
	name := strings.ToLower(doc.FileName)
	if !strings.HasSuffix(name, ".xlsx") && !strings.HasSuffix(name, ".csv") {
		b.reply(chatID, "Only .xlsx and .csv files can be imported.", nil)
		return nil
	}

	body, err := b.download(ctx, doc.FileID)
	if err != nil {
		b.reply(chatID, "Could not download the file.", nil)
		return err
	}
	defer body.Close()

	cfg := excel.DefaultImportConfig()
	cfg.CourseID = strings.TrimSpace(message.Caption)
	result, err := b.Importer.Import(ctx, body, excel.FormatOf(doc.FileName), cfg)
	if err != nil {
		b.reply(chatID, "Import failed: "+err.Error(), nil)
		return nil
	}
	log.WithFields(log.Fields{"file": doc.FileName, "created": result.Created}).Info("flashcards imported from telegram")
	b.reply(chatID, formatImportResult(result), b.MainMenuButtons())
	return nil
}

// HandleCallback handles callback queries from buttons
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil || callback.Message.Chat == nil {
		return fmt.Errorf("callback without message")
	}
	chatID := callback.Message.Chat.ID

	switch callback.Data {
	case callbackMainMenu:
		b.answerCallback(callback, "")
		b.reply(chatID, "Main Menu - choose an option:", b.MainMenuButtons())
		return nil
	case callbackProgress:
		b.answerCallback(callback, "")
		return b.handleProgress(ctx, chatID)
	case callbackCourses:
		b.answerCallback(callback, "")
		return b.handleCourses(ctx, chatID)
	case callbackPractice:
		b.answerCallback(callback, "")
		return b.handlePractice(ctx, chatID)
	}

	if strings.HasPrefix(callback.Data, prefixCards) {
		b.answerCallback(callback, "")
		return b.handleCards(ctx, chatID, strings.TrimPrefix(callback.Data, prefixCards))
	}

	prefix, args, err := parseCallback(callback.Data)
	if err != nil {
		return err
	}
	switch prefix {
	case prefixQuizAnswer:
		return b.handleQuizAnswer(ctx, callback, chatID, args)
	case prefixCardFlip:
		return b.handleCardFlip(callback, chatID, args)
	case prefixCardRate:
		return b.handleCardRate(ctx, callback, chatID, args)
	}
	return fmt.Errorf("unknown callback %q", callback.Data)
}

// parseCallback splits numeric callback data such as "card_rate_2_5" into
// its prefix and arguments
func parseCallback(data string) (string, []int, error) {
	for _, prefix := range []string{prefixQuizAnswer, prefixCardFlip, prefixCardRate} {
		if !strings.HasPrefix(data, prefix) {
			continue
		}
		parts := strings.Split(strings.TrimPrefix(data, prefix), "_")
		args := make([]int, 0, len(parts))
		for _, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil {
				return "", nil, fmt.Errorf("malformed callback %q: %w", data, err)
			}
			args = append(args, n)
		}
		return prefix, args, nil
	}
	return "", nil, fmt.Errorf("unknown callback %q", data)
}

func (b *Bot) answerCallback(callback *tgbotapi.CallbackQuery, text string) {
	api := b.client()
	if api == nil {
		return
	}
	if _, err := api.Request(tgbotapi.NewCallback(callback.ID, text)); err != nil {
		log.WithError(err).Debug("failed to answer callback")
	}
}
