package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-relay/internal/media"
	"media-relay/internal/platform/config"
	"media-relay/internal/platform/logger"
	"media-relay/internal/platform/metrics"
	"media-relay/internal/server"
	"media-relay/internal/session"
	"media-relay/internal/watch"
)

const shutdownTimeout = 10 * time.Second

func runServe(ctx context.Context, cfg config.Config) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	met := metrics.New()

	hub := watch.NewHub()
	notifiers := watch.Fanout{hub}

	var mqttPub *watch.MQTTPublisher
	if cfg.MQTT.Broker != "" {
		var err error
		mqttPub, err = watch.DialMQTT(watch.MQTTOptions{
			BrokerURL: cfg.MQTT.Broker,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			TopicBase: cfg.MQTT.TopicBase,
		}, log)
		if err != nil {
			return err
		}
		defer mqttPub.Close()
		notifiers = append(notifiers, mqttPub)
		log.Info("publishing session state to mqtt", "broker", cfg.MQTT.Broker, "topic_base", cfg.MQTT.TopicBase)
	}

	svc := session.NewService(session.NewInMemoryRepository(), notifiers, cfg.Session.TTL)

	resolver := media.NewResolver(newProvider(cfg, log), cfg.Resolver.ResolveTimeout)
	delivery := media.NewDelivery(media.DeliveryOptions{
		HeaderTimeout:  cfg.Resolver.UpstreamHeaderTimeout,
		IdleTimeout:    cfg.Resolver.StreamIdleTimeout,
		FilenameSuffix: cfg.Resolver.FilenameSuffix,
	})

	r := server.NewRouter(server.Deps{
		Log:      log,
		Metrics:  met,
		Sessions: svc,
		Media:    media.NewHandler(resolver, delivery, log, met),
		Watch:    watch.NewSocketHandler(hub, svc, log),
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go svc.RunJanitor(ctx, cfg.Session.JanitorInterval, func(ids []session.ID) {
		met.AddSessionsEvicted(len(ids))
		if mqttPub != nil {
			mqttPub.Clear(ids)
		}
		log.Info("evicted idle sessions", "count", len(ids))
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"provider", cfg.Resolver.Provider,
		"session_ttl", cfg.Session.TTL.String(),
		"log_level", cfg.LogLevel,
	)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped")
	return nil
}

// newProvider builds the configured media-info provider behind the lookup
// cache.
func newProvider(cfg config.Config, log *slog.Logger) media.Provider {
	var p media.Provider
	switch cfg.Resolver.Provider {
	case "ytdlp":
		p = media.NewYTDLPProvider(cfg.Resolver.YTDLPPath)
	default:
		p = media.NewHTTPProvider(cfg.Resolver.InfoEndpoint, nil)
	}
	return media.NewCachingProvider(p, media.CacheOptions{
		SizeBytes: cfg.Resolver.CacheBytes,
		TTL:       cfg.Resolver.CacheTTL,
		Compress:  cfg.Resolver.CacheCompress,
	}, log)
}
