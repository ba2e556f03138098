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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"timeline-service/configs"
	"timeline-service/internal/event"
	"timeline-service/internal/kafka"
	"timeline-service/internal/redisx"
	"timeline-service/internal/shared/httpx"
	"timeline-service/internal/shared/jwt"
	"timeline-service/internal/shared/logx"
	"timeline-service/internal/store"
	"timeline-service/internal/timeline"
)

func initOTEL(ctx context.Context, cfg *configs.Config, log *zap.Logger) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	if cfg.OTELEndpoint == "" {
		log.Info("tracing disabled, no OTLP endpoint")
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTELEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.OTELServiceName),
			attribute.String("service.instance.id", cfg.InstanceID),
			attribute.String("deployment.environment", os.Getenv("ENV")),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	tp := trace.NewTracerProvider(
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.OTELSampleRatio))),
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func main() {
	cfg := configs.LoadConfig()
	log, err := logx.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("timeline-service stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *configs.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := initOTEL(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(c)
	}()

	hub := event.NewHub(log)
	st := store.New(store.Options{
		Delay:       cfg.StoreDelay,
		PageSize:    cfg.StorePageSize,
		FailureRate: cfg.StoreFailureRate,
		Seed:        cfg.StoreSeed,
	}, hub, log.Named("store"))
	reg := timeline.NewRegistry(st, hub, timeline.DefaultMaxSessions, log.Named("timeline"))
	defer reg.CloseAll()

	// Redis backs the rate limiter and envelope dedupe. Without it writes are
	// not throttled.
	var rdb *redis.Client
	var limits timeline.Limits
	if cfg.EventBridge != configs.BridgeNone || os.Getenv("REDIS_HOST") != "" {
		rdb = redisx.Open(cfg.RedisHost, cfg.RedisPort)
		defer func() { _ = rdb.Close() }()
		if err := redisx.Ping(ctx, rdb, 3*time.Second); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		limiter := redisx.NewLimiter(rdb, log)
		limits.Action = limiter.Middleware(redisx.ClassAction, redisx.Policy{
			Limit:    cfg.RateLimit,
			Window:   cfg.RateLimitSpan,
			FailOpen: cfg.RateLimitFailOpen,
		})
		limits.Authoring = limiter.Middleware(redisx.ClassAuthoring, redisx.Policy{
			Limit:    cfg.AuthoringLimit,
			Window:   cfg.RateLimitSpan,
			FailOpen: cfg.RateLimitFailOpen,
		})
	}

	g, ctx := errgroup.WithContext(ctx)

	switch cfg.EventBridge {
	case configs.BridgeRedis:
		relay := event.NewRelay(cfg.InstanceID, hub, redisx.NewIdem(rdb), log)
		bridge := redisx.NewBridge(rdb, cfg.RedisChannel, relay, log)
		g.Go(func() error { return bridge.Run(ctx) })
	case configs.BridgeKafka:
		relay := event.NewRelay(cfg.InstanceID, hub, redisx.NewIdem(rdb), log)
		w := kafka.NewWriter(cfg.KafkaBootstrap, cfg.KafkaTopic, cfg.KafkaAcks, cfg.KafkaAsync)
		fwd := kafka.NewForwarder(w, relay, log)
		consumer := kafka.NewConsumer(cfg.KafkaBootstrap, cfg.ConsumerGroup(), cfg.KafkaTopic, kafka.Inbound(relay), log)
		g.Go(func() error { return fwd.Run(ctx) })
		g.Go(func() error { return consumer.Run(ctx) })
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, map[string]any{"status": "ok", "sessions": reg.Len()}, http.StatusOK)
	})
	protect := httpx.AuthMiddleware(jwt.NewVerifier(cfg.JWTSecret))
	timeline.NewHandler(reg, st, log.Named("http")).Register(mux, protect, limits)

	srv := &http.Server{
		Addr:              cfg.AppPort,
		Handler:           otelhttp.NewHandler(mux, "http.server"),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
	g.Go(func() error {
		log.Info("timeline-service listening",
			zap.String("addr", cfg.AppPort),
			zap.String("bridge", string(cfg.EventBridge)),
			zap.String("instance", cfg.InstanceID),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(c)
	})

	return g.Wait()
}
