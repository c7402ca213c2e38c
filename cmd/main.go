package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"willcloud/internal/auth"
	"willcloud/internal/config"
	"willcloud/internal/handler"
	"willcloud/internal/repository"
	"willcloud/internal/service"
	"willcloud/internal/storage"
	"willcloud/internal/storage/minio"
	"willcloud/internal/storage/s3"
)

func connectWithRetry(cfg *config.DatabaseConfig, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	// The system database always exists; use it to create ours on first start.
	system := *cfg
	system.Name = "postgres"
	pgDB, err := sqlx.Connect("postgres", system.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}

	if !exists {
		log.Printf("Database %s does not exist, creating...", cfg.Name)
		if _, err = pgDB.Exec(fmt.Sprintf("CREATE DATABASE %q", cfg.Name)); err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", cfg.GetDSN())
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.DatabaseConfig) error {
	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", cfg.GetURL())
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func newObjectStore(ctx context.Context, cfg *s3.Config) (storage.Storage, error) {
	if cfg.Driver == s3.DriverMinio {
		endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
		client, err := minio.New(ctx, endpoint, cfg.AccessKeyID, cfg.SecretAccessKey, cfg.Bucket, cfg.UseSSL)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := s3.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newRevocations(ctx context.Context, cfg *config.RedisConfig) (auth.Revocations, func()) {
	if cfg.Addr == "" {
		log.Println("Redis is not configured, keeping sign-out revocations in memory")
		return auth.NewMemoryRevocations(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to redis at %s: %v", cfg.Addr, err)
	}

	return auth.NewRedisRevocations(client), func() {
		if err := client.Close(); err != nil {
			log.Printf("Error closing redis connection: %v", err)
		}
	}
}

func main() {
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}

	db, err := connectWithRetry(&appConfig.Database, 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(&appConfig.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	objectStore, err := newObjectStore(startCtx, s3Config)
	if err != nil {
		startCancel()
		log.Fatalf("Failed to create %s object store: %v", s3Config.Driver, err)
	}
	revocations, closeRevocations := newRevocations(startCtx, &appConfig.Redis)
	startCancel()
	defer closeRevocations()

	fileRepo := repository.NewFileRepository(db)
	userRepo := repository.NewUserRepository(db, appConfig.Storage.DefaultLimit)

	provider := auth.NewProvider(auth.NewVerifier(authConfig), revocations, userRepo)
	quotaService := service.NewStorageQuotaService(userRepo)
	uploadService := service.NewUploadService(fileRepo, userRepo, objectStore)
	listingService := service.NewListingService(fileRepo, objectStore)
	sessions := service.NewSessions(provider, uploadService, listingService, userRepo, appConfig.Dashboard.ReloadInterval)

	router := handler.NewRouter(handler.Handlers{
		Session: handler.NewSessionHandler(sessions),
		File:    handler.NewFileHandler(sessions, appConfig.Storage.MaxUploadMemory),
		Quota:   handler.NewStorageQuotaHandler(sessions, quotaService),
		Events:  handler.NewEventsHandler(sessions),
	}, appConfig.Server.AllowedOrigins)

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", appConfig.Server.GRPCPort))
		if err != nil {
			log.Fatalf("Failed to listen for gRPC: %v", err)
		}
		log.Printf("Starting gRPC server on port %s", appConfig.Server.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC: %v", err)
		}
	}()

	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down servers...")
	healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	sessions.Close()
	grpcServer.GracefulStop()

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
