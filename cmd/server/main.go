package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pixnest/internal/config"
	apphttp "pixnest/internal/http"
	"pixnest/internal/maintenance"
	"pixnest/internal/repository/sqlite"
	"pixnest/internal/service"
	"pixnest/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, keeping %s", cfg.Log.Level, logger.GetLevel())
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(db); err != nil {
		logger.Fatalf("migrate database: %v", err)
	}

	userRepo := sqlite.NewUserRepository(db)
	postRepo := sqlite.NewPostRepository(db)
	linkRepo := sqlite.NewPostLinkRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)

	store, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	credentialService := service.NewCredentialService(userRepo, linkRepo, cfg.Auth.BcryptCost, logger)
	sessionService, err := service.NewSessionService(sessionRepo, service.SessionOptions{
		Secret: cfg.Auth.JWTSecret,
		TTL:    cfg.Auth.SessionTTL,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("setup sessions: %v", err)
	}
	mediaService := service.NewMediaService(store, service.MediaOptions{
		MaxBytes:       cfg.Media.MaxBytes,
		AllowedTypes:   cfg.Media.AllowedTypes,
		UploadTimeout:  cfg.Media.UploadTimeout,
		UploadAttempts: cfg.Media.UploadAttempts,
		Logger:         logger,
	})
	postService := service.NewPostService(postRepo, linkRepo, logger)
	profileService := service.NewProfileService(credentialService, mediaService, cfg.Media.AvatarFolder, logger)
	reconciler := service.NewReconciler(userRepo, postRepo, linkRepo, store, logger)

	housekeeping := maintenance.NewManager(maintenance.Config{
		Interval: cfg.Maintenance.Interval,
		Logger:   logger,
	}, sessionService, reconciler)

	// repair whatever the previous run left behind before serving
	housekeeping.RunOnce(ctx)
	if err := housekeeping.Start(ctx); err != nil {
		logger.Fatalf("start maintenance: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = cfg.Media.MaxBytes
	handler := apphttp.NewHandler(apphttp.Services{
		Credentials: credentialService,
		Sessions:    sessionService,
		Media:       mediaService,
		Posts:       postService,
		Profile:     profileService,
		Auditor:     reconciler,
	}, apphttp.Options{
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
		SessionTTL:   cfg.Auth.SessionTTL,
		PostFolder:   cfg.Media.PostFolder,
		CleanupGrace: cfg.Maintenance.CleanupGrace,
		Logger:       logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	housekeeping.Shutdown()

	logger.Info("bye")
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Gateway, error) {
	switch cfg.Storage.Backend {
	case "minio":
		svc, err := storage.NewMinioService(ctx, storage.MinioOptions{
			Endpoint:   cfg.Storage.Endpoint,
			AccessKey:  cfg.Storage.AccessKey,
			SecretKey:  cfg.Storage.SecretKey,
			Bucket:     cfg.Storage.Bucket,
			KeyPrefix:  cfg.Storage.KeyPrefix,
			PublicBase: cfg.Storage.PublicBaseURL,
			UseSSL:     cfg.Storage.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("using minio bucket %s at %s", cfg.Storage.Bucket, cfg.Storage.Endpoint)
		return svc, nil
	case "s3":
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}
	if cfg.Storage.AccessKey != "" && cfg.Storage.SecretKey != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client, cfg.Storage.Bucket, cfg.Storage.KeyPrefix, cfg.Storage.PublicBaseURL), nil
}
