package vault

import (
	"context"
	"fmt"

	"capsule-go/internal/capsule"
	"capsule-go/internal/config"
)

// NewObjectStoreFromConfig creates an ObjectStore based on the vault config type.
func NewObjectStoreFromConfig(ctx context.Context, cfg config.VaultConfig) (capsule.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(), nil
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("fs_vault_root required for filesystem vault")
		}
		return NewFileSystemVault(cfg.FSVaultRoot)
	case "s3":
		return NewS3Vault(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
