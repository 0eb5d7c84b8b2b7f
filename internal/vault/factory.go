package vault

import (
	"context"
	"fmt"

	"github.com/guijianchou/IDM-Download-Monitor/internal/config"
	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// NewVaultFromConfig creates a Vault implementation based on the vault config type.
// Type "none" (or empty) disables archiving and returns a nil Vault.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (monitor.Vault, error) {
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}

	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryVault(name), nil
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		v, err := NewFileSystemVault(name, cfg.FSVaultRoot)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "s3":
		v, err := NewS3Vault(ctx, name, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
