// Package objectstore holds the MinIO client used for raw report
// payloads delivered by the external job runner.
package objectstore

import (
	"errors"

	"github.com/stackcheck-labs/stackcheck-go/internal/platform/env"
)

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	Region        string
	BucketReports string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("STACKCHECK_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Endpoint:      env.String("STACKCHECK_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:     env.String("STACKCHECK_MINIO_ACCESS_KEY", "stackcheck"),
		SecretKey:     env.String("STACKCHECK_MINIO_SECRET_KEY", "stackcheck"),
		UseSSL:        useSSL,
		Region:        env.String("STACKCHECK_MINIO_REGION", "us-east-1"),
		BucketReports: env.String("STACKCHECK_MINIO_BUCKET_REPORTS", "stackcheck-reports"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("STACKCHECK_MINIO_ENDPOINT is required")
	}
	if c.AccessKey == "" {
		return errors.New("STACKCHECK_MINIO_ACCESS_KEY is required")
	}
	if c.SecretKey == "" {
		return errors.New("STACKCHECK_MINIO_SECRET_KEY is required")
	}
	if c.BucketReports == "" {
		return errors.New("STACKCHECK_MINIO_BUCKET_REPORTS is required")
	}
	return nil
}
