package bootstrap

import (
	"context"
	"log"
	"time"

	"collab-notes-be/internal/config"
	"collab-notes-be/internal/controller"
	"collab-notes-be/internal/handler"
	"collab-notes-be/internal/pkg/logger"
	"collab-notes-be/internal/repository/memory"
	"collab-notes-be/internal/repository/unitofwork"
	"collab-notes-be/internal/service"
	"collab-notes-be/internal/websocket"
	pktNats "collab-notes-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AuthController *controller.AuthController
	NoteController *controller.NoteController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	SyncHandler  *handler.SyncHandler
	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis relay. The hub tolerates a nil client and an unreachable server:
	// both degrade to single-replica fan-out.
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// Snapshot cache + WebSocket hub
	snapshots := memory.NewSnapshotCache(time.Duration(cfg.Sync.SnapshotCacheTTL) * time.Second)
	syncLogger := logger.NewIsolatedLogger("logs/sync.log")
	wsHub := websocket.NewHub(rdb, snapshots, syncLogger)

	// 3. Services
	publisherService := service.NewPublisherService(cfg.Sync.EventsTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Sync.EventsTopic,
		snapshots,
		sysLogger,
	)

	authService := service.NewAuthService(uowFactory, cfg.Auth.JwtSecret)
	syncService := service.NewSyncService(uowFactory, snapshots, wsHub, publisherService, syncLogger)
	noteService := service.NewNoteService(uowFactory, publisherService, wsHub, natsPub, sysLogger)

	// 4. Handlers & Controllers
	syncHandler := handler.NewSyncHandler(wsHub, syncService, cfg, syncLogger)

	return &Container{
		AuthController: controller.NewAuthController(authService, sysLogger),
		NoteController: controller.NewNoteController(noteService, sysLogger),

		ConsumerService: consumerService,

		SyncHandler:  syncHandler,
		WebSocketHub: wsHub,
	}
}
