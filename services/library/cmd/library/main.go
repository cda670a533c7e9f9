package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"libmgmt/internal/ratelimit"
	"libmgmt/internal/security"
	"libmgmt/internal/tracing"
	"libmgmt/internal/util"
	"libmgmt/pkg/events"
	"libmgmt/pkg/storage"
	"libmgmt/pkg/store"
	"libmgmt/services/library/internal/app"
	"libmgmt/services/library/internal/config"
	"libmgmt/services/library/internal/server"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, "library", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "err", err)
		}
	}()

	db, err := store.NewGormStore(cfg.DatabaseURL, store.WithMaxOpenConns(cfg.DBMaxOpenConns))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()
	}

	var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
	if rdb != nil {
		revoker = store.NewRedisTokenRevoker(rdb, cfg.SessionTTLDuration())
	}
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTLDuration(), revoker, store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   cfg.JWTLeewayDuration(),
	})
	if err != nil {
		log.Fatalf("failed to init sessions: %v", err)
	}

	publisher, closePublisher, err := newPublisher(cfg, rdb, logger)
	if err != nil {
		log.Fatalf("failed to init event publisher: %v", err)
	}
	defer closePublisher()

	archive, err := newArchive(cfg)
	if err != nil {
		log.Fatalf("failed to init import archive: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:    db,
		Sessions: sessions,
		Events:   publisher,
		Archive:  archive,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("invalid trusted proxy list: %v", err)
	}
	limiters, err := newLimiters(cfg, rdb)
	if err != nil {
		log.Fatalf("failed to init rate limiters: %v", err)
	}
	httpServer, err := server.New(server.Config{
		App:            appCore,
		Limiters:       limiters,
		Alerter:        security.NewAlerter(rdb, "library:alerts"),
		TrustedProxies: trusted,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "err", err)
		}
	}()

	slog.Info("library server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

// newLimiters shares quotas across instances through Redis when it is
// configured. Without Redis the server falls back to local limiters.
func newLimiters(cfg config.FileConfig, rdb *redis.Client) (server.Limiters, error) {
	if rdb == nil {
		return server.Limiters{
			Login:    ratelimit.NewLocalLimiter(cfg.LoginRateLimitPerMinute, time.Minute),
			Register: ratelimit.NewLocalLimiter(cfg.RegisterRateLimitPerMinute, time.Minute),
			Password: ratelimit.NewLocalLimiter(cfg.PasswordRateLimitPerMinute, time.Minute),
			Import:   ratelimit.NewLocalLimiter(cfg.ImportRateLimitPerMinute, time.Minute),
		}, nil
	}
	var out server.Limiters
	for _, l := range []struct {
		name  string
		limit int
		dst   *ratelimit.Limiter
	}{
		{"login", cfg.LoginRateLimitPerMinute, &out.Login},
		{"register", cfg.RegisterRateLimitPerMinute, &out.Register},
		{"password", cfg.PasswordRateLimitPerMinute, &out.Password},
		{"import", cfg.ImportRateLimitPerMinute, &out.Import},
	} {
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(rdb, "library:ratelimit:"+l.name, l.limit, time.Minute)
		if err != nil {
			return server.Limiters{}, err
		}
		*l.dst = limiter
	}
	return out, nil
}

// newPublisher prefers AMQP, then a Redis stream, then the log.
func newPublisher(cfg config.FileConfig, rdb *redis.Client, logger *slog.Logger) (events.Publisher, func(), error) {
	noop := func() {}
	switch {
	case cfg.AMQPURL != "":
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, noop, err
		}
		return p, func() { _ = p.Close() }, nil
	case rdb != nil:
		p, err := events.NewRedisStreamPublisher(rdb, cfg.EventStream, 10000)
		if err != nil {
			return nil, noop, err
		}
		return p, noop, nil
	default:
		return events.NewLogPublisher(logger), noop, nil
	}
}

// newArchive prefers MinIO, then a local directory. With neither configured
// imports are not archived.
func newArchive(cfg config.FileConfig) (storage.ObjectStore, error) {
	switch {
	case cfg.MinioEndpoint != "":
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	case cfg.ArchiveDir != "":
		return storage.NewFileStore(cfg.ArchiveDir)
	default:
		return nil, nil
	}
}
