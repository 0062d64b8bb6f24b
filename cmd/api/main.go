package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"autodialer-platform/internal/auth"
	"autodialer-platform/internal/calllog"
	"autodialer-platform/internal/command"
	"autodialer-platform/internal/config"
	"autodialer-platform/internal/dialer"
	"autodialer-platform/internal/httpapi"
	"autodialer-platform/internal/phonebook"
	"autodialer-platform/internal/store"
	"autodialer-platform/pkg/logger"
	"autodialer-platform/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	phoneSnap, logSnap, cleanup, err := openStores(rootCtx, cfg)
	if err != nil {
		log.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	registry, err := phonebook.NewRegistry(rootCtx, phoneSnap)
	if err != nil {
		log.Error("phone registry init failed", "err", err)
		os.Exit(1)
	}
	callLog, err := calllog.NewLog(rootCtx, logSnap)
	if err != nil {
		log.Error("call log init failed", "err", err)
		os.Exit(1)
	}

	// Gateway selection happens once, here: every batch dispatched by this
	// process is homogeneous.
	var gateway dialer.Gateway
	if cfg.Twilio.Configured() {
		gateway, err = dialer.NewTwilioGateway(cfg.Twilio)
		if err != nil {
			log.Error("twilio gateway init failed", "err", err)
			os.Exit(1)
		}
		log.Info("using twilio gateway", "from", cfg.Twilio.FromNumber)
	} else {
		gateway = dialer.NewSimulatedGateway(
			rand.NewSource(time.Now().UnixNano()),
			cfg.Dialer.SimMinDelay,
			cfg.Dialer.SimMaxDelay,
		)
		log.Info("twilio credentials not set, using simulated gateway")
	}

	dispatcher := dialer.NewDispatcher(registry, callLog, gateway, cfg.Dialer.Concurrency)

	// The oracle is always constructed: a per-request key can enable it even
	// when no key is configured. Missing keys degrade to the heuristic parser.
	oracle := command.NewGeminiOracle(cfg.Gemini)
	interpreter := command.NewInterpreter(oracle, dispatcher)

	var authManager *auth.Manager
	if cfg.Auth.Enabled() {
		authManager, err = auth.NewManager(cfg.Auth)
		if err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id"},
	}))

	registerRoutes(r, httpapi.Handlers{
		Registry:    registry,
		Log:         callLog,
		Dispatcher:  dispatcher,
		Interpreter: interpreter,
		Auth:        authManager,
		Cfg:         cfg,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Call batches can take a while; keep the write window generous.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "gateway", gateway.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// openStores builds the two snapshot stores for the selected backend.
func openStores(ctx context.Context, cfg config.Config) (phone, callLog store.Snapshot, cleanup func(), err error) {
	switch cfg.Store.Backend {
	case "redis":
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return nil, nil, nil, err
		}
		return store.NewRedis(rdb, "autodialer:phone_numbers"),
			store.NewRedis(rdb, "autodialer:call_logs"),
			func() { _ = rdb.Close() },
			nil
	default:
		return store.NewFile(cfg.Store.PhonePath),
			store.NewFile(cfg.Store.CallLogPath),
			func() {},
			nil
	}
}
