package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/theleywin/Collab-Nest/src/config"
	"github.com/theleywin/Collab-Nest/src/controllers"
	"github.com/theleywin/Collab-Nest/src/logger"
	"github.com/theleywin/Collab-Nest/src/middleware"
	"github.com/theleywin/Collab-Nest/src/services"
)

// Deps is everything the HTTP layer needs from main.
type Deps struct {
	Config        *config.Config
	Log           logger.Logger
	DB            *gorm.DB
	Connections   *services.ConnectionService
	Notifications *services.NotificationService
}

// NewApp builds the fiber application with operational routes and the protected /api/v1 tree.
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "collab-nest",
		ErrorHandler: controllers.ErrorHandler(d.Log),
		ReadTimeout:  d.Config.Server.ReadTimeout,
		WriteTimeout: d.Config.Server.WriteTimeout,
	})

	app.Use(middleware.RequestLogger(d.Log))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: d.Config.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	app.Get("/healthz", healthz(d.DB))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1", middleware.ProtectRoute(d.Config.Auth.JWTSecret))
	NotificationRoutes(api, controllers.NewNotificationController(d.Notifications))
	ConnectionRoutes(api, controllers.NewConnectionController(d.Connections, d.Config.Pagination.DefaultPageSize))

	return app
}

func healthz(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
