package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kolibrisuite/chatsync/core/config"
	coreDB "github.com/kolibrisuite/chatsync/core/database"
	"github.com/kolibrisuite/chatsync/engine"
	"github.com/kolibrisuite/chatsync/engine/router"
	"github.com/kolibrisuite/chatsync/infrastructure/gateway"
	infraValkey "github.com/kolibrisuite/chatsync/infrastructure/valkey"
	"github.com/kolibrisuite/chatsync/pkg/evtworker"
	"github.com/kolibrisuite/chatsync/repository"
	"github.com/kolibrisuite/chatsync/ui/rest"
	"github.com/kolibrisuite/chatsync/ui/rest/middleware"
	uiWebsocket "github.com/kolibrisuite/chatsync/ui/websocket"
	"github.com/kolibrisuite/chatsync/usecase"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Run the synchronization engine with its HTTP and websocket API",
	Run:   restServer,
}

func init() {
	restCmd.Flags().String("basic-auth", "", "Basic auth for API (format: user:pass,user2:pass2)")
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	cfg := config.Global

	if baFlag, _ := cmd.Flags().GetString("basic-auth"); baFlag != "" {
		cfg.App.BasicAuth = strings.Split(baFlag, ",")
	}

	db, err := coreDB.NewConnection(cfg.Database)
	if err != nil {
		logrus.Fatalf("[REST] Failed to open database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repositories
	sessionRepo := repository.NewSessionGormRepository(db)
	messageRepo := repository.NewMessageGormRepository(db)
	contactRepo := repository.NewContactGormRepository(db)
	for _, init := range []func(context.Context) error{sessionRepo.Init, messageRepo.Init, contactRepo.Init} {
		if err := init(ctx); err != nil {
			logrus.Fatalf("[REST] Failed to migrate schema: %v", err)
		}
	}

	// Usecases
	sessionService := usecase.NewSessionService(sessionRepo, cfg.Engine.QRValidity)
	if err := sessionService.WarmRegistry(ctx); err != nil {
		logrus.Fatalf("[REST] Failed to warm session registry: %v", err)
	}
	contactService := usecase.NewContactService(contactRepo)
	sendGateway := gateway.NewHTTPGateway(gateway.Config{
		BaseURL: cfg.Gateway.BaseURL,
		Timeout: cfg.Gateway.Timeout,
	})
	messageService := usecase.NewMessageService(
		messageRepo, contactService, sessionService, sendGateway,
		cfg.Engine.HistoryPageDefault, cfg.Engine.HistoryPageMax,
	)

	// Engine
	hub := uiWebsocket.NewHub(cfg.Engine.ClientQueueSize, cfg.Engine.HeartbeatInterval)
	pool := evtworker.NewPool(cfg.Engine.PoolSize, cfg.Engine.PoolQueueSize)
	rtr := router.New(func(orgID, sessionName string) bool {
		return sessionService.Owns(context.Background(), orgID, sessionName)
	})
	dispatcher := engine.NewDispatcher(pool, rtr, messageService, sessionService, hub)
	hub.SetDispatcher(dispatcher)
	sessionService.OnTransition = dispatcher.HandleTransition

	// Optional cross-node relay
	var vkClient *infraValkey.Client
	if cfg.Database.ValkeyEnabled {
		vkClient, err = infraValkey.NewClient(infraValkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: "chatsync",
		})
		if err != nil {
			logrus.Fatalf("[REST] Failed to connect to valkey: %v", err)
		}
		relay := infraValkey.NewEventRelay(vkClient, cfg.App.ServerID)
		dispatcher.SetRelay(relay)
		relay.StartSubscriber(ctx, dispatcher.DeliverLocal)
		logrus.Info("[REST] Cross-node event relay enabled")
	}

	dispatcher.Start(ctx)
	go hub.Run(ctx)

	app := fiber.New(fiber.Config{
		Network:               "tcp",
		AppName:               "ChatSync Engine",
		DisableStartupMessage: false,
		ServerHeader:          "Hidden",
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Organization-ID, X-Request-ID",
	}))
	app.Use(middleware.Recovery())

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	if len(cfg.App.BasicAuth) == 0 {
		logrus.Fatalln("APP_BASIC_AUTH is required. Nothing should be public; please set APP_BASIC_AUTH=<user>:<secret>[,<user2>:<secret2>] and restart.")
	}

	account := make(map[string]string)
	for _, basicAuth := range cfg.App.BasicAuth {
		ba := strings.Split(basicAuth, ":")
		if len(ba) != 2 {
			logrus.Fatalln("Basic auth is not valid, please use the format <user>:<secret>")
		}
		account[ba[0]] = ba[1]
	}

	apiGroup := app.Group("/api")
	apiGroup.Use(basicauth.New(basicauth.Config{
		Users: account,
		Next: func(c *fiber.Ctx) bool {
			// Allow CORS preflight without credentials.
			return c.Method() == fiber.MethodOptions
		},
	}))

	rest.InitRestSession(apiGroup, sessionService)
	rest.InitRestMessage(apiGroup, messageService)
	rest.InitRestContact(apiGroup, contactService)
	rest.InitRestIngest(apiGroup, dispatcher)
	rest.InitRestStats(apiGroup, dispatcher)
	rest.InitRestHealth(apiGroup, db)

	hub.RegisterRoutes(apiGroup)

	// Graceful shutdown: stop accepting requests, then drain shards.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Termination signal received, shutting down gracefully...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.Errorf("[REST] Error during shutdown: %v", err)
		}
		cancel()
		dispatcher.Stop()
		if vkClient != nil {
			vkClient.Close()
		}
	}()

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalln("Failed to start server:", err)
	}

	logrus.Info("[REST] Server stopped")
}
