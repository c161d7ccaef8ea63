package main

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	api "github.com/rpupo63/portfolio-backend/api"
	"github.com/rpupo63/portfolio-backend/auth"
	"github.com/rpupo63/portfolio-backend/config"
	"github.com/rpupo63/portfolio-backend/database"
	"github.com/rpupo63/portfolio-backend/images"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: Error loading .env file: %v\n", err)
	}

	c := config.New()
	setupLogging(c)
	log.Info().Msg("Initializing app...")

	ctx := context.Background()

	if prefix := config.GetString(c, "SSM_PARAMETER_PREFIX", ""); prefix != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Error loading AWS config for SSM")
		}
		if err := config.LoadSSMSecrets(ctx, ssm.NewFromConfig(awsCfg), prefix, c); err != nil {
			log.Fatal().Err(err).Msg("Error loading secrets from SSM")
		}
	}

	settings, err := config.Load(c)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	var s3Client *s3.Client
	if settings.UsesS3() {
		s3Client, err = newS3Client(ctx, settings)
		if err != nil {
			log.Fatal().Err(err).Msg("Error creating S3 client")
		}
	}

	backend, err := newBackend(settings, s3Client)
	if err != nil {
		log.Fatal().Err(err).Str("backend", settings.StorageBackend).Msg("Error initializing document storage")
	}
	log.Info().Str("backend", backend.Name()).Msg("Document storage ready")

	store := database.NewDocumentStore(backend, database.WithTimeout(settings.StoreTimeout))
	currentDB := database.New(store)

	services, err := newServices(settings, s3Client)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing services")
	}

	errChannel := make(chan error)
	defer close(errChannel)

	server, err := api.NewServer(currentDB, settings, services)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing server")
	}

	go server.Start(errChannel)

	// Listen for interrupt signals to gracefully shutdown the server
	go listenToInterrupt(errChannel)

	fatalErr := <-errChannel
	log.Info().Msgf("Closing server: %v", fatalErr)

	server.ShutdownGracefully(30 * time.Second)

	if err := currentDB.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing document store")
	}
}

func setupLogging(c map[string]string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if config.GetString(c, "ENVIRONMENT", "development") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if level, err := zerolog.ParseLevel(config.GetString(c, "LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(level)
	}
}

func newBackend(settings config.Settings, s3Client *s3.Client) (database.Backend, error) {
	switch settings.StorageBackend {
	case config.StoragePostgres:
		db, err := openPostgres(settings.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return database.NewPostgresBackend(db, settings.DocumentName)
	case config.StorageS3:
		return database.NewS3Backend(s3Client, settings.S3Bucket, settings.S3DocumentKey)
	default:
		return database.NewFileBackend(settings.DataFile)
	}
}

func openPostgres(dsn string) (*gorm.DB, error) {
	newLogger := logger.New(
		stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold:             10 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		PrepareStmt: false,
		Logger:      newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// Test database connection
	var result int
	if err := db.Raw("SELECT 1").Scan(&result).Error; err != nil {
		return nil, fmt.Errorf("test database connection: %w", err)
	}
	return db, nil
}

// newS3Client builds a client for AWS S3 or, when S3_ENDPOINT is set, an
// S3-compatible store such as R2 or MinIO.
func newS3Client(ctx context.Context, settings config.Settings) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(settings.S3Region),
	}
	if settings.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.S3AccessKeyID, settings.S3SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if settings.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func newServices(settings config.Settings, s3Client *s3.Client) (api.Services, error) {
	keys, err := auth.DeriveKeys(settings.SessionSecret)
	if err != nil {
		return api.Services{}, err
	}

	var store sessions.Store
	switch settings.SessionBackend {
	case config.SessionsRedis:
		redisStore, err := auth.NewRedisStore(settings.RedisURL, keys.SessionKeyPairs()...)
		if err != nil {
			return api.Services{}, err
		}
		redisStore.Options.Secure = settings.SecureCookies
		redisStore.MaxAge(int(settings.SessionMaxAge.Seconds()))
		store = redisStore
	default:
		store = auth.NewCookieStore(settings.SessionMaxAge, settings.SecureCookies, keys.SessionKeyPairs()...)
	}

	var guardOpts []images.GuardOption
	if settings.ClamdAddr != "" {
		log.Info().Str("addr", settings.ClamdAddr).Msg("Scanning uploads with clamd")
		guardOpts = append(guardOpts, images.WithScanner(images.NewClamdScanner(settings.ClamdAddr)))
	}

	var uploads images.UploadStore
	switch settings.UploadBackend {
	case config.UploadsS3:
		s3Uploads, err := images.NewS3Uploads(s3Client, settings.S3Bucket, settings.UploadPrefix, settings.UploadPublicBaseURL)
		if err != nil {
			return api.Services{}, err
		}
		uploads = s3Uploads
	default:
		diskUploads, err := images.NewDiskUploads(settings.UploadDir, images.DefaultPublicPrefix)
		if err != nil {
			return api.Services{}, err
		}
		uploads = diskUploads
	}

	return api.Services{
		Gate:    auth.NewGate(store, settings.AdminKey, settings.SessionMaxAge),
		CSRF:    auth.NewCSRFGuard(keys.CSRF, auth.WithSecureCookie(settings.SecureCookies)),
		Guard:   images.NewUploadGuard(guardOpts...),
		Uploads: uploads,
	}, nil
}

// listenToInterrupt waits for SIGINT or SIGTERM and then sends an error to the error channel.
func listenToInterrupt(errChannel chan<- error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	errChannel <- fmt.Errorf("%s", <-c)
}
