package app

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargepilot/internal/auth"
	"chargepilot/internal/config"
	"chargepilot/internal/db"
	"chargepilot/internal/handlers"
	httpserver "chargepilot/internal/http"
	httphandlers "chargepilot/internal/http/handlers"
	"chargepilot/internal/http/middleware"
	"chargepilot/internal/ocpp"
	"chargepilot/internal/ocpp/protocol"
	"chargepilot/internal/payment"
	"chargepilot/internal/repository"
	"chargepilot/internal/service"
	"chargepilot/internal/telemetry"
	"chargepilot/internal/ws"
)

// App wires all dependencies for the charge point server.
type App struct {
	httpServer *httpserver.Server
	db         *sql.DB
	redis      *redis.Client
	manager    *ws.Manager
	hub        *telemetry.Hub
	sink       *telemetry.RedisSink
	logger     *zap.Logger
}

// New builds the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	stationRepo := repository.NewStationRepository(sqlDB)
	txRepo := repository.NewTransactionRepository(sqlDB)

	hub := telemetry.NewHub(logger)
	pending := service.NewPendingCommands()
	payments := payment.NewClient(cfg.Payments.BaseURL, cfg.Payments.SecretKey, cfg.Payments.Currency, logger)

	manager := ws.NewManager(cfg.PingInterval())
	lookup := func(stationID string) (service.FrameSender, bool) {
		conn, ok := manager.Get(stationID)
		if !ok {
			return nil, false
		}
		return conn, true
	}

	engine := service.NewEngine(txRepo, stationRepo, payments, hub, lookup, pending, logger)

	parser := ocpp.NewParser()
	ocppRouter := ocpp.NewRouter()
	ocppRouter.Register(protocol.ActionBootNotification, handlers.NewBootNotificationHandler(logger))
	ocppRouter.Register(protocol.ActionMeterValues, handlers.NewMeterValuesHandler(engine, logger))
	processor := ocpp.NewProcessor(parser, ocppRouter, engine, logger)

	wsServer := ws.NewServer(manager, processor, cfg.WriteTimeout(), logger)

	tokens := auth.NewTokenService(cfg.Admin.JWTSecret, cfg.TokenTTL())
	hasher := auth.NewBcryptHasher()

	routerDeps := httpserver.RouterDeps{
		ChargeHandlers:    httphandlers.NewChargeHandlers(engine, logger),
		PaymentHandlers:   httphandlers.NewPaymentHandlers(payments, stationRepo, txRepo, logger),
		AdminHandlers:     httphandlers.NewAdminHandlers(cfg.Admin.Login, cfg.Admin.PasswordHash, hasher, tokens, stationRepo, txRepo, logger),
		TelemetryHandlers: httphandlers.NewTelemetryHandlers(hub, logger),
		OCPPHandler:       wsServer.HandleWS,
	}
	router := httpserver.NewRouter(routerDeps, middleware.AuthMiddleware(tokens))
	httpServer := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	app := &App{
		httpServer: httpServer,
		db:         sqlDB,
		manager:    manager,
		hub:        hub,
		logger:     logger,
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := db.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		app.redis = redisClient
		app.sink = telemetry.NewRedisSink(redisClient, cfg.Redis.Channel, logger)
	}

	return app, nil
}

// Run starts the connection manager, telemetry sink, and HTTP server.
func (a *App) Run(ctx context.Context) error {
	go a.manager.Start(ctx)
	if a.sink != nil {
		go a.sink.Run(ctx, a.hub)
	}
	return a.httpServer.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
