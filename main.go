package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/linguaflow/internal/achievements"
	"github.com/example/linguaflow/internal/ai"
	"github.com/example/linguaflow/internal/api"
	"github.com/example/linguaflow/internal/bot"
	"github.com/example/linguaflow/internal/config"
	"github.com/example/linguaflow/internal/database"
	"github.com/example/linguaflow/internal/downloads"
	"github.com/example/linguaflow/internal/events"
	"github.com/example/linguaflow/internal/excel"
	"github.com/example/linguaflow/internal/leaderboard"
	"github.com/example/linguaflow/internal/notify"
	"github.com/example/linguaflow/internal/practice"
	"github.com/example/linguaflow/internal/progress"
	"github.com/example/linguaflow/internal/scheduler"
	"github.com/example/linguaflow/internal/scoring"
	"github.com/example/linguaflow/internal/speaking"
	"github.com/example/linguaflow/pkg/models"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	config.SetupLogging(cfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("linguaflow stopped with an error")
	}
	log.Info("linguaflow stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := database.Connect(cfg.DBType, cfg.DatabaseDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	seed, err := database.LoadSeed(cfg.SeedFile)
	if err != nil {
		log.WithError(err).Warn("seed catalog unavailable, starting with the stored catalog")
		seed = &database.Seed{}
	}
	if err := database.ApplySeed(ctx, db, seed); err != nil {
		return err
	}

	settings := models.DefaultReminderSettings()
	settings.Time = cfg.ReminderTime
	loc := cfg.Location()

	store, err := restoreProgress(ctx, db, cfg.LearnerID, settings, loc)
	if err != nil {
		return err
	}

	latency := database.Latency{Min: cfg.ContentLatencyMin, Max: cfg.ContentLatencyMax}
	courses := database.NewCourseRepository(db, latency)
	lessons := database.NewLessonRepository(db, latency)
	quizzes := database.NewQuizRepository(db, latency)
	cards := database.NewFlashcardRepository(db, latency)
	exercises := database.NewSpeakingRepository(db, latency)
	kv := database.NewKVStore(db)

	board := leaderboard.New(database.NewLeaderboardRepository(db), cfg.LearnerID, cfg.LearnerName, nil)
	if err := board.Register(ctx, store.Snapshot().TotalXP); err != nil {
		return err
	}
	defer board.Track(store)()

	// notifications: browser clients first, then telegram, then toasts
	toasts := notify.NewToastFeed(0)
	hub := notify.NewHub()
	toasts.OnPush(hub.BroadcastToast)
	defer store.Subscribe(func(ev progress.Event) { hub.BroadcastEvent(ev) })()

	channels := []notify.Channel{hub}
	var telegram *bot.Bot
	if cfg.TelegramBotToken != "" {
		telegram, err = bot.New(bot.NewConfig(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.TelegramAdminIDs), bot.Deps{})
		if err != nil {
			return err
		}
		channels = append(channels, telegram)
	}
	dispatcher := notify.NewDispatcher(toasts, channels...)

	sched := scheduler.New(kv, settings, store, dispatcher, scheduler.WithLocation(loc))
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	dl := downloads.NewManager(kv, lessons, cfg.DownloadStep, cfg.DownloadCap)
	if err := dl.Load(ctx); err != nil {
		return err
	}
	defer dl.Close()

	var coach speaking.Coach
	if cfg.OpenAIKey != "" {
		gpt, err := ai.New(cfg.OpenAIKey, cfg.OpenAIModel)
		if err != nil {
			return err
		}
		coach = gpt
	}

	svc := practice.NewService(practice.Deps{
		Quizzes:    quizzes,
		Flashcards: cards,
		Lessons:    lessons,
		Courses:    courses,
		Exercises:  exercises,
		Store:      store,
		Engine:     scoring.NewEngine(nil),
		Evaluator:  achievements.NewEvaluator(nil),
		Analyzer:   speaking.NewAnalyzer(nil, coach, nil),
		Notifier:   dispatcher,
		Reminders:  sched,
	})
	importer := excel.NewImporter(cards, courses)

	var wg sync.WaitGroup
	if cfg.AMQPURL != "" {
		pub, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		fwd := events.NewForwarder(pub, cfg.LearnerID, 0)
		defer fwd.Attach(store)()
		wg.Add(1)
		go func() {
			defer wg.Done()
			fwd.Run(ctx)
		}()
	}

	if telegram != nil {
		telegram.Deps = bot.Deps{
			Practice:   svc,
			Progress:   store,
			Courses:    courses,
			Quizzes:    quizzes,
			Flashcards: cards,
			Reminders:  sched,
			Importer:   importer,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := telegram.Start(ctx); err != nil {
				log.WithError(err).Error("telegram bot failed")
			}
		}()
	}

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewServer(api.Deps{
			Courses:       courses,
			Lessons:       lessons,
			Quizzes:       quizzes,
			Flashcards:    cards,
			Exercises:     exercises,
			Practice:      svc,
			Store:         store,
			Scheduler:     sched,
			Dispatcher:    dispatcher,
			Toasts:        toasts,
			Downloads:     dl,
			Leaderboard:   board,
			Importer:      importer,
			Hub:           hub,
			LearnerID:     cfg.LearnerID,
			SpeakingPeers: seed.SpeakingLeaders,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown did not complete")
	}
	wg.Wait()
	return nil
}

// restoreProgress loads the stored snapshot or starts a new learner, and
// saves every later change
func restoreProgress(ctx context.Context, db *sqlx.DB, learnerID string, settings models.ReminderSettings, loc *time.Location) (*progress.Store, error) {
	repo := database.NewProgressRepository(db)
	initial, found, err := repo.Load(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	if found {
		initial = progress.MergeCatalog(initial)
	} else {
		initial = progress.Initial(time.Now().In(loc), settings)
		if err := repo.Save(ctx, learnerID, initial); err != nil {
			return nil, err
		}
		log.WithField("learner", learnerID).Info("started new learner progress")
	}

	store := progress.NewStore(initial, progress.WithLocation(loc))
	store.Subscribe(func(ev progress.Event) {
		if err := repo.Save(context.Background(), learnerID, ev.Progress); err != nil {
			log.WithError(err).Error("failed to save progress")
		}
	})
	return store, nil
}
