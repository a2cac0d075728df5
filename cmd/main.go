package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"movie-recommender/handler"
	"movie-recommender/internal/cache"
	"movie-recommender/internal/catalog"
	"movie-recommender/internal/conversation"
	"movie-recommender/internal/domain"
	"movie-recommender/internal/gateway"
	"movie-recommender/internal/integrations/anthropic"
	"movie-recommender/internal/integrations/paramstore"
	"movie-recommender/internal/ledger"
	"movie-recommender/internal/repository"
	"movie-recommender/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	databaseURL := mustEnv("DATABASE_URL")
	redisAddr := os.Getenv("REDIS_ADDR")
	chatWindow := time.Duration(envInt("CHAT_EXPIRY_MINUTES", 2)) * time.Minute
	usageLimit := domain.Dollars(envFloat("AGENT_USAGE_LIMIT", 0.05))
	maxTokens := envInt("MAX_OUTPUT_TOKENS", gateway.DefaultMaxTokens)
	trustMemberHeader := envBool("ALLOW_MEMBER_HEADER")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	stateClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		slog.Error("failed to connect to catalog database", "err", err)
		os.Exit(1)
	}
	catalogRepo, err := catalog.New(db)
	if err != nil {
		slog.Error("failed to create catalog repository", "err", err)
		os.Exit(1)
	}

	var store cache.Store = cache.NewMemoryStore()
	if redisAddr != "" {
		redisStore, err := cache.NewRedisStore(ctx, redisAddr, "movie-recommender:")
		if err != nil {
			slog.Warn("redis unavailable, using in-process cache", "addr", redisAddr, "err", err)
		} else {
			store = redisStore
		}
	}
	responseCache, err := cache.New(store, slog.Default())
	if err != nil {
		slog.Error("failed to create cache", "err", err)
		os.Exit(1)
	}

	// Loaded from SSM on the first model call.
	provider, err := gateway.NewLazy(func(ctx context.Context) (gateway.Provider, error) {
		client, err := anthropic.Load(ctx, ssmClient, paramPrefix)
		if err != nil {
			return nil, err
		}
		slog.Info("model provider loaded", "model", client.Model())
		return client, nil
	})
	if err != nil {
		slog.Error("failed to create provider loader", "err", err)
		os.Exit(1)
	}
	model, err := gateway.New(provider, gateway.WithMaxTokens(maxTokens))
	if err != nil {
		slog.Error("failed to create model gateway", "err", err)
		os.Exit(1)
	}

	// ---- Services ----
	budget, err := ledger.New(stateClient, usageLimit)
	if err != nil {
		slog.Error("failed to create ledger", "err", err)
		os.Exit(1)
	}
	conv, err := conversation.New(stateClient, chatWindow)
	if err != nil {
		slog.Error("failed to create conversation service", "err", err)
		os.Exit(1)
	}
	engine, err := usecase.NewEngine(usecase.EngineDeps{
		Members:       stateClient,
		Catalog:       catalogRepo,
		Budget:        budget,
		Model:         model,
		Conversation:  conv,
		Cache:         responseCache,
		ChatSampleTTL: conv.Window(),
	})
	if err != nil {
		slog.Error("failed to create recommendation engine", "err", err)
		os.Exit(1)
	}
	chat, err := usecase.NewChatService(engine, conv, budget, catalogRepo, responseCache, slog.Default())
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}
	watchlist, err := usecase.NewWatchlistService(usecase.WatchlistDeps{
		Store:        catalogRepo,
		Members:      stateClient,
		Engine:       engine,
		Conversation: conv,
		Cache:        responseCache,
	})
	if err != nil {
		slog.Error("failed to create watchlist service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(handler.Deps{
		Engine:    engine,
		Chat:      chat,
		Watchlist: watchlist,
		Budget:    budget,

		TrustMemberHeader: trustMemberHeader,
	})
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}
