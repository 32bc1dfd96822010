package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/tribechat/internal/api"
	"github.com/lalith-99/tribechat/internal/blob"
	"github.com/lalith-99/tribechat/internal/chat"
	"github.com/lalith-99/tribechat/internal/config"
	"github.com/lalith-99/tribechat/internal/db"
	"github.com/lalith-99/tribechat/internal/middleware"
	"github.com/lalith-99/tribechat/internal/observ"
	"github.com/lalith-99/tribechat/internal/realtime"
	"github.com/lalith-99/tribechat/internal/repository"
	"github.com/lalith-99/tribechat/internal/repository/memory"
	"github.com/lalith-99/tribechat/internal/repository/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// stores is the set of repositories the chat core runs on.
type stores struct {
	lobbies       repository.LobbyRepository
	tribeLobbies  repository.TribeLobbyRepository
	messages      repository.MessageRepository
	tribeMessages repository.MessageRepository
	users         repository.UserDirectory
	tribes        repository.TribeMembership
	notes         repository.NotificationStore

	health    func(context.Context) error
	afterAuth []gin.HandlerFunc
	close     func()
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	blobs, err := blob.NewFileStore(cfg.BlobRoot)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	// Realtime: the hub always delivers locally; with Redis configured,
	// broadcasts go through Redis so every instance sees them.
	registry := realtime.NewRegistry()
	hub := realtime.NewHub(registry, logger)
	var bus chat.Broadcaster = hub
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		redisBus := realtime.NewRedisBus(rdb, hub, logger)
		if err := redisBus.Start(ctx); err != nil {
			return fmt.Errorf("start redis bus: %w", err)
		}
		bus = redisBus
	}

	fanout := chat.NewFanout(st.notes, st.users, logger)
	lobbies := chat.NewLobbyService(st.lobbies, st.users, logger)
	tribes := chat.NewTribeLobbyService(st.tribeLobbies, st.tribes, logger)

	direct := chat.NewDirectMessages(lobbies, chat.Deps{
		Messages: st.messages, Users: st.users, Bus: bus, Fanout: fanout, Logger: logger,
	}, chat.WithBlobStore(blobs))
	tribe := chat.NewTribeMessages(tribes, chat.Deps{
		Messages: st.tribeMessages, Users: st.users, Bus: bus, Fanout: fanout, Logger: logger,
	}, chat.WithBlobStore(blobs))

	gateway := realtime.NewGateway(realtime.GatewayConfig{
		Registry:  registry,
		Hub:       hub,
		Bus:       bus,
		Direct:    direct,
		Tribe:     tribe,
		QueueSize: cfg.SendQueueSize,
		Logger:    logger,
	})

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(cfg.JWTSecret, api.Handlers{
		Lobbies:       api.NewLobbyHandler(lobbies, direct, logger),
		Messages:      api.NewMessageHandler(direct, logger),
		Tribes:        api.NewTribeHandler(tribes, tribe, logger),
		Notifications: api.NewNotificationHandler(fanout, logger),
		WS:            api.NewWSHandler(gateway, logger),
		Health:        st.health,
		AfterAuth:     st.afterAuth,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting tribechat",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("storage", cfg.Storage),
			zap.Bool("redis", cfg.RedisURL != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown; their
	// pumps end when the process exits.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		dir := memory.NewDirectory()
		logger.Warn("using in-memory storage; data is lost on restart")
		return &stores{
			lobbies:       memory.NewLobbyStore(),
			tribeLobbies:  memory.NewTribeLobbyStore(),
			messages:      memory.NewMessageStore(),
			tribeMessages: memory.NewMessageStore(),
			users:         dir,
			tribes:        dir,
			notes:         memory.NewNotificationStore(),
			afterAuth:     []gin.HandlerFunc{middleware.RecordCaller(dir)},
			close:         func() {},
		}, nil
	}

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	pool := database.Pool()
	tribes := postgres.NewTribeStore(pool)
	return &stores{
		lobbies:       postgres.NewLobbyStore(pool),
		tribeLobbies:  postgres.NewTribeLobbyStore(pool),
		messages:      postgres.NewMessageStore(pool),
		tribeMessages: postgres.NewTribeMessageStore(pool),
		users:         postgres.NewUserStore(pool),
		tribes:        tribes,
		notes:         postgres.NewNotificationStore(pool),
		health:        database.Health,
		close:         database.Close,
	}, nil
}
