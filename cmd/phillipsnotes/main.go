package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/phillipshepard1/phillipsnotes/internal/ai"
	"github.com/phillipshepard1/phillipsnotes/internal/chunker"
	"github.com/phillipshepard1/phillipsnotes/internal/config"
	"github.com/phillipshepard1/phillipsnotes/internal/db"
	"github.com/phillipshepard1/phillipsnotes/internal/embedcache"
	"github.com/phillipshepard1/phillipsnotes/internal/handler"
	"github.com/phillipshepard1/phillipsnotes/internal/job"
	"github.com/phillipshepard1/phillipsnotes/internal/middleware"
	"github.com/phillipshepard1/phillipsnotes/internal/repo"
	"github.com/phillipshepard1/phillipsnotes/internal/schedule"
	"github.com/phillipshepard1/phillipsnotes/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "phillipsnotes",
		Short: "phillipsnotes retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run retrieval server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("embed_model", cfg.AI.EmbedModel),
	)

	docRepo := repo.NewDocumentRepo(database)
	chunkRepo := repo.NewChunkRepo(database)
	cacheRepo := repo.NewEmbeddingCacheRepo(database)

	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	embedder := ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel)
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.EmbedCacheSize, time.Duration(cfg.AI.EmbedCacheTTL)*time.Minute)

	var (
		streamer  ai.IChatStreamer
		generator ai.IGenerator
	)
	if cfg.AI.ChatModel != "" {
		aiProvider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
		if err != nil {
			return fmt.Errorf("init ai provider: %w", err)
		}
		streamer = ai.NewChatStreamer(aiProvider, cfg.AI.ChatModel)
		generator = ai.NewGenerator(aiProvider, cfg.AI.ChatModel)
	}

	indexerService := service.NewIndexerService(docRepo, chunkRepo, embedder, chunker.Options{
		MaxChunkSize: cfg.Retrieval.MaxChunkSize,
		Overlap:      cfg.Retrieval.ChunkOverlap,
		MinChunkSize: cfg.Retrieval.MinChunkSize,
	})
	searchService := service.NewSearchService(chunkRepo, docRepo, embedder, cfg.Retrieval)
	chatService := service.NewChatService(chunkRepo, embedder, streamer, generator, cfg.Retrieval, cfg.AI.MaxContextChars)

	deps := handler.RouterDeps{
		Index:         handler.NewIndexHandler(indexerService),
		Search:        handler.NewSearchHandler(searchService),
		Chat:          handler.NewChatHandler(chatService),
		JWTSecret:     []byte(cfg.JWTSecret),
		ChatRateLimit: time.Duration(cfg.ChatRateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if cfg.Jobs.ReindexSpec != "" {
		if err := scheduler.AddJob(job.NewReindexJob(indexerService, cfg.Jobs.ReindexBatch), cfg.Jobs.ReindexSpec); err != nil {
			return fmt.Errorf("schedule reindex job: %w", err)
		}
	}
	if cfg.Jobs.CacheCleanupSpec != "" {
		if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.Jobs.CacheKeepDays), cfg.Jobs.CacheCleanupSpec); err != nil {
			return fmt.Errorf("schedule cache cleanup job: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
