package http

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cruxpanel/backend/internal/config"
	"github.com/cruxpanel/backend/internal/core/ports"
	"github.com/cruxpanel/backend/internal/core/services"
	"github.com/cruxpanel/backend/internal/infrastructure/db"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
	"github.com/cruxpanel/backend/internal/infrastructure/remote"
	"github.com/cruxpanel/backend/internal/transport/http/handlers"
	httpmw "github.com/cruxpanel/backend/internal/transport/http/middleware"
)

type RouterConfig struct {
	DB     *gorm.DB
	Logger *logger.Logger
	Config *config.Config
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) {
	// Repositories. The timeline degrades to a log-only stub without a
	// database.
	var timelineRepo ports.TimelineRepository
	if cfg.DB != nil {
		timelineRepo = db.NewTimelineRepository(cfg.DB, cfg.Logger)
		go services.RunTimelineCleanup(context.Background(), timelineRepo,
			cfg.Config.Database.TimelineRetention, 0, cfg.Logger)
	} else {
		timelineRepo = db.NewTimelineRepoStub(cfg.Logger)
	}

	// Services
	registry := services.NewTaskRegistry(cfg.Config.Tasks.GracePeriod, cfg.Logger)
	hub := services.NewStreamHub(registry, cfg.Logger)

	var executor ports.Executor
	if cfg.Config.Tasks.Remote.Enabled() {
		sshClient := remote.NewSSHClient(remote.SSHConfig{
			Host:       cfg.Config.Tasks.Remote.Host,
			Port:       cfg.Config.Tasks.Remote.Port,
			User:       cfg.Config.Tasks.Remote.User,
			Password:   cfg.Config.Tasks.Remote.Password,
			PrivateKey: cfg.Config.Tasks.Remote.PrivateKey,
			Timeout:    10 * time.Second,
		})
		executor = services.NewRemoteExecutor(sshClient, cfg.Config.Tasks.ScriptDir, cfg.Logger)
	} else {
		executor = services.NewLocalExecutor(cfg.Config.Tasks.ScriptDir, cfg.Logger)
	}

	runner := services.NewTaskRunner(services.TaskRunnerConfig{
		Registry:     registry,
		Executor:     executor,
		TimelineRepo: timelineRepo,
		Logger:       cfg.Logger,
		RunTimeout:   cfg.Config.Tasks.RunTimeout,
	})

	validator := services.NewStaticTokenValidator(cfg.Config.Auth.StreamToken, cfg.Config.Auth.StreamTokenTTL)

	// Handlers
	taskHandler := handlers.NewTaskHandler(runner, cfg.Logger)
	streamHandler := handlers.NewStreamHandler(hub, validator, cfg.Config.Stream, cfg.Logger)
	terminalHandler := handlers.NewTerminalHandler(cfg.Config.Terminal, cfg.Logger)
	timelineHandler := handlers.NewTimelineHandler(timelineRepo)
	systemHandler := handlers.NewSystemHandler(runner, cfg.Logger)

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Websocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws/tasks/:id", httpmw.StreamAuth(validator), websocket.New(streamHandler.Handle))
	app.Get("/ws/terminal", httpmw.StreamAuth(validator), websocket.New(terminalHandler.Handle))

	// API v1 routes
	api := app.Group("/api/v1")

	tasks := api.Group("/tasks", httpmw.AdminAuth(cfg.Config))
	tasks.Post("/", taskHandler.StartTask)
	tasks.Get("/:id", taskHandler.GetTask)
	tasks.Delete("/:id", taskHandler.CancelTask)

	timeline := api.Group("/timeline", httpmw.AdminAuth(cfg.Config))
	timeline.Get("/", timelineHandler.GetEvents)

	system := api.Group("/system", httpmw.AdminAuth(cfg.Config))
	system.Post("/update", systemHandler.TriggerUpdate)
}
