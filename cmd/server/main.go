package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/autodca/autodca-backend/internal/adapter/exchange"
	"github.com/autodca/autodca-backend/internal/adapter/httpapi"
	"github.com/autodca/autodca-backend/internal/adapter/notify"
	"github.com/autodca/autodca-backend/internal/adapter/repository/memory"
	"github.com/autodca/autodca-backend/internal/adapter/repository/postgres"
	"github.com/autodca/autodca-backend/internal/domain"
	"github.com/autodca/autodca-backend/internal/usecase/executor"
	"github.com/autodca/autodca-backend/internal/usecase/overview"
	"github.com/autodca/autodca-backend/internal/usecase/scheduler"
	"github.com/autodca/autodca-backend/internal/usecase/sessionkey"
	"github.com/autodca/autodca-backend/internal/usecase/vault"
)

const (
	defaultHTTPAddr          = ":8080"
	defaultSchedulerInterval = time.Minute
	defaultSlippageBps       = 100 // 1%
)

type repositories struct {
	keys       domain.SessionKeyRepository
	vaults     domain.VaultRepository
	executions domain.ExecutionRepository
	committer  domain.CycleCommitter
}

func main() {
	// .env is optional; real deployments set vars directly
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	repos, err := setupRepositories(logger)
	if err != nil {
		logger.Fatal("failed to set up storage", zap.Error(err))
	}

	// Exchange client covers both fund movement and quotes
	routerURL := envOr("ROUTER_URL", "http://localhost:9090")
	routerKey := os.Getenv("ROUTER_API_KEY")
	router := exchange.NewClient(routerURL, routerKey)

	clock := domain.SystemClock()
	sink := notify.NewLogSink(logger)

	sessionKeyService := sessionkey.NewService(repos.keys, clock)
	vaultService := vault.NewService(repos.vaults, router, clock, sink)
	coordinator := executor.NewCoordinator(repos.vaults, repos.keys, repos.committer, router, clock, sink)
	overviewService := overview.NewService(repos.vaults, repos.keys)

	// Scheduler drives due vaults in the background
	interval := envDuration("SCHEDULER_INTERVAL", defaultSchedulerInterval)
	slippageBps := envInt64("SLIPPAGE_BPS", defaultSlippageBps)
	worker := scheduler.NewWorker(repos.vaults, repos.keys, coordinator, router, clock, logger, interval, slippageBps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	// HTTP API
	verifier := httpapi.NewStaticTokenVerifier(parseTokenMap(envOr("API_TOKENS", "dev-token=dev-wallet")))
	server := httpapi.NewServer(sessionKeyService, vaultService, coordinator, overviewService, repos.executions, logger)

	addr := envOr("HTTP_ADDR", defaultHTTPAddr)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(verifier),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	waitForShutdown(httpServer, cancel, logger)
}

// setupRepositories connects to Postgres, or falls back to the in-memory
// store when STORAGE=memory (local development without a database)
func setupRepositories(logger *zap.Logger) (*repositories, error) {
	if os.Getenv("STORAGE") == "memory" {
		logger.Info("using in-memory storage")
		store := memory.NewStore()
		return &repositories{
			keys:       store.SessionKeys(),
			vaults:     store.Vaults(),
			executions: store.Executions(),
			committer:  store.Committer(),
		}, nil
	}

	connStr := os.Getenv("DB_CONN_STR")
	if connStr == "" {
		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			envOr("DB_HOST", "localhost"),
			envOr("DB_PORT", "5432"),
			envOr("DB_USER", "postgres"),
			envOr("DB_PASSWORD", "postgres"),
			envOr("DB_NAME", "autodca"),
		)
	}

	db, err := postgres.NewDB(connStr)
	if err != nil {
		return nil, err
	}

	return &repositories{
		keys:       postgres.NewSessionKeyRepository(db),
		vaults:     postgres.NewVaultRepository(db),
		executions: postgres.NewExecutionRepository(db),
		committer:  postgres.NewCycleCommitter(db),
	}, nil
}

// waitForShutdown waits for SIGTERM or SIGINT, stops the scheduler, and
// drains the HTTP server
func waitForShutdown(httpServer *http.Server, cancel context.CancelFunc, logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
}

// parseTokenMap parses "token=address,token2=address2" into a lookup map
func parseTokenMap(raw string) map[string]string {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		tokens[parts[0]] = parts[1]
	}
	return tokens
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
