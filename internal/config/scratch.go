package config

import (
	"DriverWatch/pkg/scratch"
	"fmt"
)

// NewScratchStore builds the backend selected by SCRATCH_BACKEND.
func NewScratchStore(cfg *AppConfig) (scratch.Store, error) {
	switch cfg.ScratchBackend {
	case "s3":
		store, err := scratch.NewS3(scratch.S3Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Bucket:          cfg.AWSBucket,
			Prefix:          cfg.ScratchPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 scratch store: %w", err)
		}
		return store, nil
	default:
		store, err := scratch.NewLocal(cfg.ScratchDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local scratch store: %w", err)
		}
		return store, nil
	}
}
