package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/telebot.v3"

	_ "github.com/mattn/go-sqlite3"

	"shift-scheduler/config"
	"shift-scheduler/internal/app/payroll"
	"shift-scheduler/internal/app/service"
	"shift-scheduler/internal/delivery/rest"
	"shift-scheduler/internal/delivery/telegram"
	"shift-scheduler/internal/domain"
	"shift-scheduler/internal/repository/remote"
	"shift-scheduler/internal/repository/sqlite"
	"shift-scheduler/pkg/calendar"
	"shift-scheduler/pkg/workerpool"
)

func main() {
	log.Println("Запуск планировщика смен...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфига: %v", err)
	}
	if cfg.HTTPAddr != "" && cfg.RemoteBaseURL != "" {
		log.Fatalf("HTTP_ADDR и REMOTE_BASE_URL нельзя задавать одновременно")
	}
	logger := log.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе: %v", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(db); err != nil {
		log.Fatalf("Ошибка миграции: %v", err)
	}

	// Инициализация worker pool
	pool := workerpool.NewWorkerPool(cfg.Workers, cfg.QueueSize)
	defer pool.Close()
	async := service.NewAsyncService(pool)

	localShifts := sqlite.NewSqliteShiftRepo(db, cfg.Rules.MaxRetries, logger)
	var (
		shiftStore   domain.ShiftStore       = localShifts
		availability domain.AvailabilityRepo = sqlite.NewSqliteAvailabilityRepo(db)
		sink         domain.ResolutionSink   = sqlite.NewSqliteResolutionLog(db)
	)
	if cfg.RemoteBaseURL != "" {
		rc := remote.DefaultConfig(cfg.RemoteBaseURL)
		rc.Token = cfg.RemoteToken
		rc.RateLimit = cfg.RemoteRateLimit
		rc.MaxRetries = cfg.Rules.MaxRetries
		client, err := remote.NewClient(rc, logger)
		if err != nil {
			log.Fatalf("Ошибка настройки удалённого хранилища: %v", err)
		}
		shiftStore = remote.NewShiftStore(client, cfg.Rules.MaxRetries, logger)
		availability = remote.NewAvailabilityStore(client, logger)
		sink = client
		log.Printf("[remote] смены и доступность хранятся на %s", cfg.RemoteBaseURL)
	}

	staff := service.NewStaffService(sqlite.NewSqliteStaffRepo(db), sqlite.NewSqliteRoleRepo(db), availability)
	scheduling := service.NewSchedulingService(shiftStore, staff, cfg.Rules, sink, logger)
	shifts := service.NewShiftService(shiftStore, staff, scheduling, logger)
	payrollSvc := service.NewPayrollService(shiftStore, staff, payroll.NewCalculator(cfg.Rules), scheduling, logger)

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		api := &rest.Server{
			Shifts:       localShifts,
			ShiftSvc:     shifts,
			Staff:        staff,
			Availability: availability,
			Resolutions:  sink,
			Scheduling:   scheduling,
			Payroll:      payrollSvc,
			ManagerToken: cfg.ManagerToken,
			Logger:       logger,
		}
		httpSrv = &http.Server{Addr: cfg.HTTPAddr, Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.Printf("[http] слушаю %s", cfg.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Ошибка HTTP сервера: %v", err)
			}
		}()
	}

	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		pref := telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		}
		bot, err = telebot.NewBot(pref)
		if err != nil {
			log.Fatalf("Ошибка запуска бота: %v", err)
		}
		scheduling.Notifier = &telegram.Notifier{Bot: bot}

		handler := &telegram.Handler{
			Bot:        bot,
			Staff:      staff,
			Shifts:     shifts,
			Scheduling: scheduling,
			Payroll:    payrollSvc,
			Async:      async,
			Calendar:   calendar.NewController(cfg.Location),
			Managers:   cfg.ManagerChats,
			Location:   cfg.Location,
		}
		handler.Register()
		go bot.Start()
		log.Println("Бот запущен!")
	}

	<-ctx.Done()
	log.Println("Остановка...")
	if bot != nil {
		bot.Stop()
	}
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[http] shutdown: %v", err)
		}
	}
}
