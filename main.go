package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theleywin/Collab-Nest/src/audit"
	"github.com/theleywin/Collab-Nest/src/cache"
	"github.com/theleywin/Collab-Nest/src/config"
	"github.com/theleywin/Collab-Nest/src/events"
	"github.com/theleywin/Collab-Nest/src/lib"
	"github.com/theleywin/Collab-Nest/src/logger"
	"github.com/theleywin/Collab-Nest/src/routes"
	"github.com/theleywin/Collab-Nest/src/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("Server stopped", nil)
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := lib.ConnectDB(cfg.Database)
	if err != nil {
		return err
	}
	if err := lib.AutoMigrate(db); err != nil {
		return err
	}

	// Redis, NATS and Mongo are optional; each falls back to a no-op
	var unread cache.UnreadCounter = cache.NopUnreadCounter{}
	if cfg.Redis.Address != "" {
		client := cache.NewRedis(cfg.Redis)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable, unread counts will hit the database", nil)
		}
		unread = cache.NewRedisUnreadCounter(client, cfg.Redis.UnreadTTL)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		p, err := events.NewNATSPublisher(cfg.NATS)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable, notification events disabled", nil)
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Mongo.URI != "" {
		r, err := audit.NewMongoRecorder(ctx, cfg.Mongo)
		if err != nil {
			log.WithError(err).Warn("MongoDB unavailable, audit trail disabled", nil)
		} else {
			recorder = r
		}
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = recorder.Close(closeCtx)
	}()

	notifications := services.NewNotificationService(db, unread, publisher, log.WithFields(map[string]interface{}{"component": "notifications"}))
	connections := services.NewConnectionService(db, notifications, recorder, log.WithFields(map[string]interface{}{"component": "connections"}), cfg.Pagination.MaxPageSize)

	app := routes.NewApp(routes.Deps{
		Config:        cfg,
		Log:           log,
		DB:            db,
		Connections:   connections,
		Notifications: notifications,
	})

	go func() {
		<-ctx.Done()
		log.Info("Shutting down", nil)
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Info("Server is running", map[string]interface{}{"port": cfg.Server.Port, "driver": cfg.Database.Driver})
	return app.Listen(":" + cfg.Server.Port)
}
