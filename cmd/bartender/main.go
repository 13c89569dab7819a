package main

import (
	"context"
	"database/sql"
	"errors"
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

	"github.com/barbartender/bartender/internal/ai"
	"github.com/barbartender/bartender/internal/config"
	"github.com/barbartender/bartender/internal/db"
	"github.com/barbartender/bartender/internal/filestore"
	"github.com/barbartender/bartender/internal/handler"
	"github.com/barbartender/bartender/internal/job"
	"github.com/barbartender/bartender/internal/middleware"
	"github.com/barbartender/bartender/internal/repo"
	"github.com/barbartender/bartender/internal/schedule"
	"github.com/barbartender/bartender/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bartender",
		Short: "bar & bartender backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "remove expired verification codes once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			store, err := openVerificationStore(cfg, conn)
			if err != nil {
				return err
			}
			verification := service.NewVerificationService(store, nil, codeTTL(cfg))
			return schedule.RunOnce(cmd.Context(), job.NewVerificationCleanupJob(verification))
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd, cleanupCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func bootstrap(configPath string) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded",
		zap.String("config", configPath),
		zap.String("db_driver", cfg.Database.Driver),
	)
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, conn, nil
}

func codeTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Verification.TTLMinutes) * time.Minute
}

func openVerificationStore(cfg *config.Config, conn *sql.DB) (service.VerificationStore, error) {
	if cfg.Verification.Store != "redis" {
		return repo.NewVerificationRepo(conn, cfg.Database.Driver), nil
	}
	client, err := repo.OpenRedis(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("open redis: %w", err)
	}
	return repo.NewVerificationRedisRepo(client, cfg.Redis.KeyPrefix), nil
}

func buildCategorizer(ctx context.Context, cfg *config.Config) (*service.CategorizeService, error) {
	gen, err := ai.BuildGenerator(ctx, cfg.AI.Providers)
	if err != nil {
		return nil, fmt.Errorf("init ai providers: %w", err)
	}
	if gen == nil {
		logutil.GetLogger(ctx).Info("no ai provider configured, categorization disabled")
	}
	categorizer := ai.NewCategorizer(gen, ai.CategorizerConfig{
		Timeout: time.Duration(cfg.AI.Timeout) * time.Second,
	})
	return service.NewCategorizeService(categorizer, cfg.AI.CacheSize, time.Duration(cfg.AI.CacheTTLMinutes)*time.Minute), nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("verification_store", cfg.Verification.Store),
		zap.String("file_store", cfg.FileStore.Type),
	)

	store, err := openVerificationStore(cfg, conn)
	if err != nil {
		return err
	}
	archive, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	categorizer, err := buildCategorizer(ctx, cfg)
	if err != nil {
		return err
	}

	userRepo := repo.NewUserRepo(conn, cfg.Database.Driver)
	productRepo := repo.NewProductRepo(conn, cfg.Database.Driver)

	verifyService := service.NewVerificationService(store, service.NewEmailSender(cfg.Mail), codeTTL(cfg))
	authService := service.NewAuthService(userRepo, verifyService, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	productService := service.NewProductService(productRepo, cfg.AI.Categories, cfg.AI.SubCategories)
	importService := service.NewImportService(productRepo, categorizer, archive, cfg.AI.Categories, cfg.AI.SubCategories)

	deps := handler.RouterDeps{
		Auth:          handler.NewAuthHandler(authService),
		Products:      handler.NewProductHandler(productService, importService, cfg.Upload.MaxSize),
		Archives:      handler.NewArchiveHandler(importService),
		JWTSecret:     []byte(cfg.JWTSecret),
		RatePerMinute: cfg.RateLimit.PerMinute,
		RateBurst:     cfg.RateLimit.Burst,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewVerificationCleanupJob(verifyService), cfg.Verification.CleanupCron); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
