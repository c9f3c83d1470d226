package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/analytics/cache"
	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/auth"
	"github.com/rajivgeraev/flippy-core/internal/config"
	"github.com/rajivgeraev/flippy-core/internal/db"
	"github.com/rajivgeraev/flippy-core/internal/middleware"
	"github.com/rajivgeraev/flippy-core/internal/notify"
	analyticsservice "github.com/rajivgeraev/flippy-core/internal/services/analytics"
	authservice "github.com/rajivgeraev/flippy-core/internal/services/auth"
	"github.com/rajivgeraev/flippy-core/internal/services/chat"
	"github.com/rajivgeraev/flippy-core/internal/services/cloudinary"
	"github.com/rajivgeraev/flippy-core/internal/services/community"
	"github.com/rajivgeraev/flippy-core/internal/services/favorite"
	"github.com/rajivgeraev/flippy-core/internal/services/listing"
	"github.com/rajivgeraev/flippy-core/internal/services/trade"
	"github.com/rajivgeraev/flippy-core/internal/sessions"
	"github.com/rajivgeraev/flippy-core/internal/sessionstore"
	"github.com/rajivgeraev/flippy-core/internal/simnet"
	"github.com/rajivgeraev/flippy-core/internal/store"
	"github.com/rajivgeraev/flippy-core/internal/telemetry"
	"github.com/rajivgeraev/flippy-core/internal/utils"
	"github.com/rajivgeraev/flippy-core/internal/websocket"
)

// backend хранилища данных, общие для всех сессий
type backend struct {
	users auth.UserStore
	chats notify.ChatResolver
	api   store.Collaborators
	close func()
}

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "flippy-api", cfg.OtelEndpoint)
	if err != nil {
		log.Printf("⚠️ Трассировка не настроена: %v", err)
	}

	be, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer be.close()

	sessionsDB, err := sessionstore.Open(cfg.SessionDBPath)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища сессий: %v", err)
	}
	defer sessionsDB.Close()

	jwtService := utils.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	be.api.Auth = auth.NewService(be.users, jwtService, cfg.TelegramBotToken)
	if cfg.StoreConfig.SimulateNetwork {
		be.api = simnet.Wrap(simnet.New(cfg.StoreConfig.NetworkLatency, cfg.StoreConfig.NetworkFailureRate), be.api)
	}

	if cfg.RedisURL != "" {
		leaderboard := cache.New(cache.NewClient(cfg.RedisURL), cfg.StoreConfig.LeaderboardTTL)
		if err := leaderboard.Ping(ctx); err != nil {
			log.Printf("⚠️ Redis недоступен, таблица лидеров считается без кэша: %v", err)
		} else {
			be.api.Analytics = leaderboard
			log.Println("✅ Кэш аналитики подключен")
		}
	}

	wsManager := websocket.NewManager(jwtService, nil)
	notifiers := notify.Multi{wsManager}
	if cfg.TelegramBotToken != "" && !cfg.IsDevelopment() {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, be.chats)
		if err != nil {
			log.Printf("⚠️ Уведомления в Telegram отключены: %v", err)
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	storeConfig := store.Config{
		RequireModeration: cfg.StoreConfig.RequireModeration,
		DeliveryDelay:     cfg.StoreConfig.MessageDeliveryDelay,
		ReviewFlagLimit:   cfg.StoreConfig.ReviewFlagLimit,
	}
	// Реестр сам получает уведомления, поэтому список каналов дополняется после его создания
	var storeNotifier notify.Multi
	registry := sessions.New(func(userID uuid.UUID) *store.Store {
		api := be.api
		api.Session = sessionsDB.For(userID)
		api.Notifier = storeNotifier
		return store.New(store.Options{Config: storeConfig, Collaborators: api})
	})
	storeNotifier = append(notifiers, registry)
	wsManager.SetConversations(registry)

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "Flippy API",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	// Настраиваем middleware для аутентификации
	authMiddleware := middleware.AuthMiddleware(jwtService, registry)

	// Регистрируем маршруты
	authservice.NewAuthService(registry).SetupRoutes(app, authMiddleware)
	listing.NewListingService().SetupRoutes(app, authMiddleware)
	favorite.NewFavoriteService().SetupRoutes(app, authMiddleware)
	trade.NewTradeService().SetupRoutes(app, authMiddleware)
	chat.NewChatService().SetupRoutes(app, authMiddleware)
	community.NewCommunityService().SetupRoutes(app, authMiddleware)
	analyticsservice.NewAnalyticsService().SetupRoutes(app, authMiddleware)
	cloudinary.NewCloudinaryService(cfg.CloudinaryConfig).SetupRoutes(app, authMiddleware)

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "sessions": registry.Len()})
	})

	// WebSocket обслуживается net/http на отдельном порту
	wsServer := &http.Server{Addr: ":" + cfg.WebSocketPort, Handler: wsManager}
	go func() {
		log.Printf("✅ WebSocket сервер запущен на порту %s", cfg.WebSocketPort)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("❌ Ошибка WebSocket сервера: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		log.Println("Останавливаем сервер...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("⚠️ Ошибка остановки HTTP сервера: %v", err)
		}
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️ Ошибка остановки WebSocket сервера: %v", err)
		}
		wsManager.Shutdown()
	}()

	// Запускаем сервер
	log.Printf("✅ Flippy API запущен на порту %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("❌ Ошибка HTTP сервера: %v", err)
	}

	registry.Wait()
	if err := shutdownTracing(context.Background()); err != nil {
		log.Printf("⚠️ Ошибка остановки трассировки: %v", err)
	}
}

// openBackend подключает Postgres или имитацию сети для локальной разработки
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.StoreConfig.SimulateNetwork {
		mem := simnet.NewBackend()
		log.Printf("⚠️ Используется имитация сети: задержка %s, отказы %.0f%%",
			cfg.StoreConfig.NetworkLatency, cfg.StoreConfig.NetworkFailureRate*100)
		return &backend{
			users: mem,
			chats: mem,
			api: store.Collaborators{
				Items:     mem,
				Swaps:     mem,
				Messages:  mem,
				Reviews:   mem,
				Community: mem,
				Commit:    mem,
			},
			close: func() {},
		}, nil
	}

	database, err := db.Connect(ctx, cfg.DatabaseConfig.URL())
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	users := db.NewUserRepo(database)
	return &backend{
		users: users,
		chats: users,
		api: store.Collaborators{
			Items:     db.NewItemRepo(database),
			Swaps:     db.NewSwapRepo(database),
			Messages:  db.NewMessageRepo(database),
			Reviews:   db.NewReviewRepo(database),
			Community: db.NewCommunityRepo(database),
			Commit:    db.NewCommitRepo(database),
		},
		close: database.Close,
	}, nil
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Проверяем, является ли ошибка из Fiber
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	} else if kind := apperr.KindOf(err); kind != apperr.KindUnknown {
		code = kind.HTTPStatus()
	}

	// Отправляем ошибку в JSON
	return c.Status(code).JSON(fiber.Map{
		"error": apperr.Message(err),
	})
}
