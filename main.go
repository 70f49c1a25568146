package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"granit/internal/api"
	"granit/internal/config"
	"granit/internal/db"
	"granit/internal/dedup"
	"granit/internal/handlers"
	"granit/internal/logger"
	"granit/internal/telegram_api"
)

func main() {
	invokeName := flag.String("invoke", "", "выполнить одну функцию: событие JSON из stdin, ответ JSON в stdout")
	webhookBase := flag.String("set-webhook", "", "зарегистрировать вебхуки ботов на <base>/telegram-chat и <base>/telegram-bot")
	poll := flag.Bool("poll", false, "получать обновления через getUpdates (локальная разработка)")
	flag.Parse()

	// --- Блок инициализации ---
	if err := godotenv.Load(); err != nil {
		log.Println("Предупреждение: не удалось загрузить файл .env. Переменные окружения должны быть установлены иным способом.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Критическая ошибка: не удалось загрузить конфигурацию: %v", err)
	}

	zlog, err := logger.NewLogger(cfg.IsDev())
	if err != nil {
		log.Fatalf("Критическая ошибка: не удалось инициализировать логгер: %v", err)
	}
	// os.Exit в режиме -invoke пропускает defer, поэтому ресурсы закрываются через стек.
	var cleanup cleanupStack
	defer cleanup.run()
	cleanup.push(func() { _ = zlog.Sync() })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	crmBot, intakeBot := initBots(cfg, zlog)

	if *webhookBase != "" {
		if err := registerWebhooks(*webhookBase, cfg.WebhookSecret, crmBot, intakeBot); err != nil {
			zlog.Fatal("Не удалось зарегистрировать вебхуки", zap.Error(err))
		}
		return
	}

	store, err := db.InitDB(ctx, cfg.DatabaseURL, cfg.DBSchema, zlog)
	if err != nil {
		zlog.Fatal("Критическая ошибка: не удалось инициализировать базу данных", zap.Error(err))
	}
	cleanup.push(store.Close)

	handlerDeps := handlers.HandlerDependencies{
		Config: cfg,
		Store:  store,
		Orders: store,
		Log:    zlog,
	}
	// Интерфейсам присваиваются только ненулевые указатели, иначе проверки на nil не сработают.
	if crmBot != nil {
		handlerDeps.CRMBot = crmBot
		if cfg.BotUsername == "" {
			cfg.BotUsername = crmBot.Username()
		}
	}
	if intakeBot != nil {
		handlerDeps.IntakeBot = intakeBot
	}

	guard, err := dedup.NewUpdateGuard(ctx, cfg.RedisURL, zlog)
	if err != nil {
		zlog.Warn("Redis недоступен, повторные обновления не отсекаются", zap.Error(err))
	}
	if guard != nil {
		handlerDeps.Guard = guard
		cleanup.push(func() { _ = guard.Close() })
	}

	botHandler := handlers.NewBotHandler(handlerDeps)

	apiDeps := api.ApiDependencies{
		Config:    cfg,
		Store:     store,
		Bot:       botHandler,
		CRMBot:    handlerDeps.CRMBot,
		IntakeBot: handlerDeps.IntakeBot,
		Log:       zlog,
	}

	if *invokeName != "" {
		code := invokeOnce(ctx, api.Functions(apiDeps), *invokeName, os.Stdin, os.Stdout, zlog)
		cleanup.run()
		os.Exit(code)
	}

	// --- Настройка роутера и Middleware ---
	router := newRouter(apiDeps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zlog.Info("Запуск HTTP-сервера", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("КРИТИЧЕСКАЯ ОШИБКА: не удалось запустить HTTP-сервер", zap.Error(err))
		}
	}()

	if *poll {
		if crmBot != nil {
			go pollUpdates(ctx, "crm", crmBot, botHandler.HandleUpdate, zlog)
		}
		if intakeBot != nil {
			go pollUpdates(ctx, "intake", intakeBot, botHandler.HandleIntakeUpdate, zlog)
		}
	}

	zlog.Info("Сервер запущен и готов к работе")
	<-ctx.Done()

	zlog.Info("Остановка сервера...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Ошибка при остановке HTTP-сервера", zap.Error(err))
	}
}

// initBots создаёт клиентов обоих ботов. Бот без токена остаётся nil:
// соответствующие функции отвечают "Telegram не настроен".
func initBots(cfg *config.Config, zlog *zap.Logger) (crmBot, intakeBot *telegram_api.BotClient) {
	var err error
	if cfg.CRMBotToken != "" {
		crmBot, err = telegram_api.NewBotClient(cfg.CRMBotToken, cfg.IsDev(), cfg.HTTPTimeout, zlog.Named("crm_bot"))
		if err != nil {
			zlog.Error("Не удалось инициализировать CRM-бота", zap.Error(err))
			crmBot = nil
		}
	} else {
		zlog.Warn("TELEGRAM_NEW_BOT_TOKEN не задан, CRM-бот отключён")
	}
	// Бот заявок отправляет документы, поэтому таймаут больше.
	if cfg.IntakeBotToken != "" {
		intakeBot, err = telegram_api.NewBotClient(cfg.IntakeBotToken, cfg.IsDev(), cfg.DocumentTimeout, zlog.Named("intake_bot"))
		if err != nil {
			zlog.Error("Не удалось инициализировать бота заявок", zap.Error(err))
			intakeBot = nil
		}
	} else {
		zlog.Warn("TELEGRAM_BOT_TOKEN не задан, бот заявок отключён")
	}
	return crmBot, intakeBot
}

func newRouter(deps api.ApiDependencies) chi.Router {
	r := chi.NewRouter()

	// ГЛОБАЛЬНЫЕ MIDDLEWARES ДОЛЖНЫ ИДТИ ПЕРЕД api.SetupRoutes
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", api.AdminTokenHeader},
		MaxAge:         86400,
	}))

	api.SetupRoutes(r, deps)

	// Обработка запроса иконки, чтобы избежать ошибки 404 в логах
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func registerWebhooks(base, secret string, crmBot, intakeBot *telegram_api.BotClient) error {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if crmBot == nil && intakeBot == nil {
		return errors.New("ни один бот не настроен")
	}
	if crmBot != nil {
		if err := crmBot.SetWebhook(base+"/telegram-chat", secret); err != nil {
			return err
		}
	}
	if intakeBot != nil {
		if err := intakeBot.SetWebhook(base+"/telegram-bot", secret); err != nil {
			return err
		}
	}
	return nil
}
