package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/umutisafe/api/internal/config"
	"github.com/umutisafe/api/internal/platform/auth"
	"github.com/umutisafe/api/internal/platform/blobstore"
	"github.com/umutisafe/api/internal/platform/events"
	"github.com/umutisafe/api/internal/platform/notification"
)

// signingSecret returns JWT_SECRET, or outside production a random secret
// that invalidates tokens on every restart.
func signingSecret(cfg *config.Config, logger zerolog.Logger) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}
	if cfg.IsProduction() {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	secret := make([]byte, 32)
	if _, err := crypto_rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate signing secret: %w", err)
	}
	logger.Warn().Msg("JWT_SECRET not set, using an ephemeral secret")
	return secret, nil
}

func newRevocationStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (auth.RevocationStore, func(), error) {
	if cfg.RedisURL == "" {
		return auth.NewMemoryRevocationStore(), func() {}, nil
	}
	store, err := auth.NewRedisRevocationStore(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis revocation store: %w", err)
	}
	logger.Info().Msg("token revocation backed by redis")
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing redis failed")
		}
	}, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.StorageBackend {
	case "s3":
		return blobstore.NewS3Store(ctx, cfg.S3Bucket)
	case "minio":
		return blobstore.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	case "local", "":
		return blobstore.NewLocalStore(cfg.UploadDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "sqs":
		return events.NewSQSPublisher(ctx, cfg.SQSQueueURL)
	case "webhook":
		return events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret)
	case "none", "":
		return events.NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
	}
}

// newEmailSender delivers over SMTP when a host is configured and logs the
// mail otherwise.
func newEmailSender(cfg *config.Config, logger zerolog.Logger) notification.EmailSender {
	if cfg.SMTPHost == "" {
		return notification.LogSender{Logger: logger}
	}
	return &notification.SMTPSender{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.EmailFrom,
	}
}
