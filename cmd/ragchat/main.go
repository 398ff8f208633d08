package main

import (
	"context"
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

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/config"
	"github.com/xxxsen/ragchat/internal/db"
	"github.com/xxxsen/ragchat/internal/embedcache"
	"github.com/xxxsen/ragchat/internal/filestore"
	"github.com/xxxsen/ragchat/internal/handler"
	"github.com/xxxsen/ragchat/internal/job"
	"github.com/xxxsen/ragchat/internal/middleware"
	"github.com/xxxsen/ragchat/internal/rag"
	"github.com/xxxsen/ragchat/internal/repo"
	"github.com/xxxsen/ragchat/internal/schedule"
	"github.com/xxxsen/ragchat/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragchat",
		Short: "ragchat backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ragchat server",
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
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("file_store", cfg.FileStore.Type),
	)

	dbc, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(dbc); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	conversationRepo := repo.NewConversationRepo(dbc)
	messageRepo := repo.NewMessageRepo(dbc)
	uploadRepo := repo.NewUploadRepo(dbc)

	cacheStore, err := cache.NewMemoryStore(cfg.Cache.MaxEntries)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	chatProvider, err := ai.NewChatProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init chat provider: %w", err)
	}
	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	visionProvider, err := ai.NewVisionProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init vision provider: %w", err)
	}
	generator := ai.NewGenerator(chatProvider, cfg.AI.Model)
	embedder := embedcache.WrapLruCacheToEmbedder(
		ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel),
		cfg.Cache.EmbedCacheSize,
		time.Duration(cfg.Cache.EmbedCacheHours)*time.Hour,
	)
	describer := ai.NewDescriber(visionProvider, cfg.AI.VisionModel)

	indexStore := rag.NewIndexStore(embedder)
	chunker := rag.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	retriever := rag.NewRetriever(indexStore, embedder, generator, cfg.RAG.SemanticWeight, !cfg.RAG.DisableQueryExpansion)
	streamer := rag.NewStreamer(retriever, indexStore, generator, cacheStore, rag.StreamerConfig{
		MinRelevanceThreshold: cfg.RAG.MinRelevanceThreshold,
		MaxContextLength:      cfg.RAG.MaxContextLength,
		TopK:                  cfg.RAG.DefaultTopK,
		CacheTTL:              time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		DisableCache:          cfg.RAG.DisableResponseCache,
	})

	files, err := filestore.New(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	conversationService := service.NewConversationService(
		conversationRepo,
		messageRepo,
		cacheStore,
		cfg.Cache.MessageHistory,
		time.Duration(cfg.Cache.TTLSeconds)*time.Second,
	)
	chatService := service.NewChatService(conversationService, streamer)
	documentService, err := service.NewDocumentService(uploadRepo, files, chunker, indexStore, describer, service.DocumentServiceConfig{
		MaxFileSize:   cfg.Upload.MaxTotalBytes,
		MaxBatchFiles: cfg.Upload.MaxBatchFiles,
		Workers:       cfg.Upload.Workers,
	})
	if err != nil {
		return fmt.Errorf("init document service: %w", err)
	}
	defer documentService.Close()

	deps := handler.RouterDeps{
		Chat:    handler.NewChatHandler(conversationService),
		RAG:     handler.NewRAGHandler(chatService, documentService),
		Uploads: handler.NewUploadHandler(documentService),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			middleware.RequestID(),
			middleware.Identity(),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewUploadCleanupJob(uploadRepo, files, cfg.Upload.RetentionDays), "0 3 * * *"); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
