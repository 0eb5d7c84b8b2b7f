package encryption

import (
	"fmt"

	"github.com/guijianchou/IDM-Download-Monitor/internal/config"
	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// The encryptor is built even when archives are stored in plaintext, so
// `archive setup` can prepare keys before encryption is switched on.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (monitor.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
