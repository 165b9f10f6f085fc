package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/NeuralTrust/callgate/pkg/app/session"
	"github.com/NeuralTrust/callgate/pkg/callapi"
	"github.com/NeuralTrust/callgate/pkg/config"
	handlers "github.com/NeuralTrust/callgate/pkg/handlers/http"
	"github.com/NeuralTrust/callgate/pkg/infra/cache"
	"github.com/NeuralTrust/callgate/pkg/infra/cache/channel"
	"github.com/NeuralTrust/callgate/pkg/infra/cache/event"
	"github.com/NeuralTrust/callgate/pkg/infra/cache/subscriber"
	"github.com/NeuralTrust/callgate/pkg/infra/httpx"
	infraLogger "github.com/NeuralTrust/callgate/pkg/infra/logger"
	"github.com/NeuralTrust/callgate/pkg/interceptor"
	"github.com/NeuralTrust/callgate/pkg/server"
	"github.com/NeuralTrust/callgate/pkg/server/middleware"
	"github.com/NeuralTrust/callgate/pkg/server/router"
	"github.com/NeuralTrust/callgate/pkg/store"
	"github.com/NeuralTrust/callgate/pkg/types"
	"github.com/NeuralTrust/callgate/pkg/version"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config"
	}
	if err := config.Load(configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	logger, err := infraLogger.NewLogger(infraLogger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	logger.Info(version.GetInfo().String())

	var tokens cache.Client
	if cfg.Redis.Enabled {
		tokens, err = cache.NewClient(cache.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS:      cfg.Redis.TLS,
			LocalTTL: cfg.Redis.LocalTTL,
		}, logger)
		if err != nil {
			logger.Fatalf("failed to initialize cache: %v", err)
		}
		defer func() {
			_ = tokens.RedisClient().Close()
		}()
	}

	settings, err := interceptor.DecodeSettings(cfg.Interceptor)
	if err != nil {
		logger.Fatalf("invalid interceptor settings: %v", err)
	}

	client := httpx.NewFastHTTPClient(
		httpx.WithTimeout(cfg.HTTPClient.Timeout),
		httpx.WithMaxConnsPerHost(cfg.HTTPClient.MaxConnsPerHost),
		httpx.WithInsecureSkipVerify(cfg.HTTPClient.InsecureSkipVerify),
		httpx.WithUserAgent(cfg.HTTPClient.UserAgent),
		httpx.WithMaxResponseBodySize(cfg.HTTPClient.MaxResponseBodySize),
	)
	breaker := httpx.NewCircuitBreaker(cfg.Breaker.Name, cfg.Breaker.Timeout, cfg.Breaker.MaxFailures)

	sessionKey := settings.HeaderToken.SessionKey()
	appStore := store.New(
		store.SessionReducer(sessionKey, store.RequestsReducer),
		nil,
		interceptor.New(settings.Config(tokens, logger), logger),
		callapi.NewMiddleware(client, breaker, logger),
	)
	appStore.Subscribe(func(_ types.State, action *types.Action) {
		logger.WithFields(logrus.Fields{
			"type":  action.Type,
			"error": action.Error,
		}).Debug("action reduced")
	})

	handlerTransport := handlers.HandlerTransport{
		DispatchHandler:   handlers.NewDispatchHandler(logger, appStore, sessionKey),
		GetStateHandler:   handlers.NewGetStateHandler(logger, appStore),
		GetVersionHandler: handlers.NewGetVersionHandler(logger),
	}

	var tokenEvents cache.EventListener
	if tokens != nil {
		publisher := cache.NewRedisEventPublisher(tokens, channel.TokensChannel)
		tokenWriter := session.NewTokenWriter(logger, tokens, publisher, settings.HeaderToken.KeyPattern)
		handlerTransport.PutSessionTokenHandler = handlers.NewPutSessionTokenHandler(logger, tokenWriter)
		handlerTransport.DeleteSessionTokenHandler = handlers.NewDeleteSessionTokenHandler(logger, tokenWriter)

		tokenEvents = cache.NewRedisEventListener(logger, tokens, event.Registry)
		cache.RegisterEventSubscriber[event.TokenRotatedEvent](tokenEvents, subscriber.NewTokenRotatedEventSubscriber(logger, tokens))
		cache.RegisterEventSubscriber[event.TokenRevokedEvent](tokenEvents, subscriber.NewTokenRevokedEventSubscriber(logger, tokens))
	}
	middlewareTransport := middleware.NewTransport(middleware.NewRequestLogMiddleware(logger))

	servers := []server.Server{
		server.NewAPIServer(server.APIServerDI{
			Config:  cfg,
			Logger:  logger,
			Routers: []router.ServerRouter{router.NewAPIRouter(middlewareTransport, handlerTransport)},
		}),
	}
	if cfg.Metrics.Enabled {
		servers = append(servers, server.NewMetricsServer(cfg, logger))
	} else {
		logger.Info("prometheus metrics are disabled by configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(srv.Run)
	}
	if tokenEvents != nil {
		g.Go(func() error {
			tokenEvents.Listen(gctx, channel.TokensChannel)
			return nil
		})
		g.Go(func() error {
			cache.RunJanitor(gctx, tokens, cfg.Redis.PurgeInterval, logger, cache.TokenTTLName)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped with error")
		os.Exit(1)
	}
	logger.Info("servers gracefully stopped")
}
