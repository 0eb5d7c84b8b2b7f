package monitor

import "io"

// Encryptor protects archived store snapshots. Encrypting needs only the public
// key; decrypting needs the passphrase that unlocks the private key.
type Encryptor interface {
	// Setup generates the key pair once, storing the private key encrypted
	// with passphrase.
	Setup(passphrase string) error

	// Encrypt writes ciphertext of r to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key for the duration of a restore.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
