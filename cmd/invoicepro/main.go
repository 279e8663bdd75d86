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

	"invoicepro/internal/config"
	"invoicepro/internal/jwtsigner"
	"invoicepro/internal/observability/logging"
	"invoicepro/internal/observability/metrics"
	"invoicepro/internal/ratelimit"
	impl "invoicepro/internal/service/impl"
	"invoicepro/internal/store"
	"invoicepro/internal/store/mongostore"
	httpx "invoicepro/internal/transport/http"

	"github.com/go-chi/httprate"
)

const serviceName = "invoicepro-auth"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	metrics.MustRegister(serviceName)

	logger.Info("starting service", "store_driver", cfg.StoreDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) Storage
	users, ping, closeStore, err := openUserStore(ctx, cfg)
	if err != nil {
		logger.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// 2) Services
	signer, err := jwtsigner.NewFromBase64(cfg.SessionSigningKey, cfg.SessionKeyID, cfg.Issuer, cfg.Audience)
	if err != nil {
		logger.Error("session signing key", "error", err)
		os.Exit(1)
	}
	if cfg.SessionSigningKey == "" {
		logger.Warn("SESSION_SIGNING_KEY not set; sessions will not survive a restart")
	}

	pw := impl.NewPasswordServiceArgon2id()
	ts := impl.NewTokenServiceEdDSA(impl.TokenConfig{TTL: cfg.SessionTTL}, signer)
	cs := impl.NewCodeServiceImpl(cfg.CodeLength, impl.LogCodeSender{})
	as := impl.NewAuthServiceImpl(users, pw, ts, cs)

	// 3) HTTP router
	var counter httprate.LimitCounter
	if cfg.RedisURL != "" {
		rdb, err := ratelimit.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		counter = ratelimit.NewRedisCounter(rdb)
		logger.Info("rate limits shared via redis")
	}

	handler := httpx.NewRouter(as, ts, cs, httpx.Options{
		SecureCookies:     cfg.IsProduction(),
		CodeTTL:           cfg.CodeTTL,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		LimitCounter:      counter,
		CORSOrigins:       cfg.CORSOrigins,
		HealthCheck:       ping,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	slog.Info("auth service listening", "addr", srv.Addr, "issuer", cfg.Issuer)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("service stopped")
}

func openUserStore(ctx context.Context, cfg config.Config) (impl.UserStore, func(context.Context) error, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, nil, err
		}
		users := mongostore.New(client.Database(cfg.MongoDatabase))
		if err := users.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, err
		}
		return users, users.Ping, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		gdb, err := store.Open(store.Config{Driver: cfg.StoreDriver, DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
		if err != nil {
			return nil, nil, nil, err
		}
		st := store.New(gdb)
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, nil, nil, err
		}
		return st.Users(), st.Ping, func() { _ = st.Close() }, nil
	}
}
