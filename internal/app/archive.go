package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/guijianchou/IDM-Download-Monitor/internal/database"
	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// Archive names in the vault. Encrypted archives carry an ".age" suffix so a
// restore knows whether it needs the passphrase.
const (
	StoreArchiveName   = "results.csv"
	HistoryArchiveName = "history.db"
	encryptedSuffix    = ".age"
)

var (
	// ErrNoVault is returned by archive operations when [vault] type is "none".
	ErrNoVault = errors.New("no vault configured")

	// ErrKeysMissing is returned when archives must be encrypted but
	// `dlmon archive setup` has not been run.
	ErrKeysMissing = errors.New("encryption keys not set up (run: dlmon archive setup)")

	// ErrHistoryBehind is returned by CheckArchiveVersion when the vault holds
	// history newer than the local database.
	ErrHistoryBehind = errors.New("local history is behind the archive")
)

// RestoreResult describes what RestoreArchive replaced.
type RestoreResult struct {
	Records         int
	Warnings        []monitor.Warning
	StoreVersion    int64
	Encrypted       bool
	HistoryRestored bool
}

func archiveName(base string, encrypted bool) string {
	if encrypted {
		return base + encryptedSuffix
	}
	return base
}

// archive uploads the store and a snapshot of the history database.
func (a *MonitorApp) archive(ctx context.Context, version int64) error {
	if a.cfg.Encryption.Encrypt && !a.encryptor.IsConfigured() {
		return fmt.Errorf("archiving: %w", ErrKeysMissing)
	}

	tmpDir, err := os.MkdirTemp("", "dlmon-archive-*")
	if err != nil {
		return fmt.Errorf("creating archive staging dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := a.uploadFile(ctx, tmpDir, StoreArchiveName, a.storePath, version); err != nil {
		return err
	}

	if a.history != nil {
		dbPath := filepath.Join(tmpDir, HistoryArchiveName)
		if err := a.history.BackupTo(dbPath); err != nil {
			return fmt.Errorf("snapshotting history: %w", err)
		}
		if err := a.uploadFile(ctx, tmpDir, HistoryArchiveName, dbPath, version); err != nil {
			return err
		}
	}

	a.logger.Info("archive uploaded", "vault", a.cfg.Vault.Type, "version", version, "encrypted", a.cfg.Encryption.Encrypt)
	return nil
}

// uploadFile puts path into the vault under base, encrypting it first when
// configured. Encrypted data is staged in tmpDir so its size is known upfront.
func (a *MonitorApp) uploadFile(ctx context.Context, tmpDir, base, path string, version int64) error {
	src := path
	if a.cfg.Encryption.Encrypt {
		src = filepath.Join(tmpDir, base+encryptedSuffix)
		if err := a.encryptFile(path, src); err != nil {
			return fmt.Errorf("encrypting %s: %w", base, err)
		}
	}

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s for upload: %w", base, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", base, err)
	}

	name := archiveName(base, a.cfg.Encryption.Encrypt)
	if err := a.vault.PutArchive(ctx, name, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading %s to vault: %w", name, err)
	}
	return nil
}

func (a *MonitorApp) encryptFile(srcPath, destPath string) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := a.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CheckArchiveVersion refuses to continue when the vault holds history from
// cycles the local database has never seen; running on would fork the history.
// It only applies to a persistent sqlite history.
func (a *MonitorApp) CheckArchiveVersion(ctx context.Context) error {
	if a.vault == nil || a.history == nil || a.cfg.Database.Type != "sqlite" {
		return nil
	}

	remote, err := a.latestVersion(ctx, HistoryArchiveName)
	if err != nil {
		return fmt.Errorf("checking remote history version: %w", err)
	}
	local, err := a.history.MaxCycleID()
	if err != nil {
		return fmt.Errorf("checking local history version: %w", err)
	}
	if remote.version > local {
		return fmt.Errorf("%w (local=%d, remote=%d): run dlmon archive restore", ErrHistoryBehind, local, remote.version)
	}
	return nil
}

type archiveRef struct {
	name      string
	version   int64
	encrypted bool
}

// latestVersion picks whichever of the plain and encrypted archive of base
// is newer. Version 0 means neither exists.
func (a *MonitorApp) latestVersion(ctx context.Context, base string) (archiveRef, error) {
	plain, err := a.vault.GetArchiveVersion(ctx, archiveName(base, false))
	if err != nil {
		return archiveRef{}, err
	}
	enc, err := a.vault.GetArchiveVersion(ctx, archiveName(base, true))
	if err != nil {
		return archiveRef{}, err
	}
	if enc >= plain && enc > 0 {
		return archiveRef{name: archiveName(base, true), version: enc, encrypted: true}, nil
	}
	return archiveRef{name: archiveName(base, false), version: plain}, nil
}

// SetupEncryption generates the archive key pair.
func (a *MonitorApp) SetupEncryption(passphrase string) error {
	if err := a.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	a.logger.Info("encryption keys created")
	return nil
}

// EncryptionConfigured reports whether the archive key pair exists.
func (a *MonitorApp) EncryptionConfigured() bool {
	return a.encryptor.IsConfigured()
}

// ValidateArchive checks that the vault is reachable and, when archives are
// encrypted, that the keys exist.
func (a *MonitorApp) ValidateArchive(ctx context.Context) error {
	if a.vault == nil {
		return ErrNoVault
	}
	if err := a.vault.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("validating vault: %w", err)
	}
	if a.cfg.Encryption.Encrypt && !a.encryptor.IsConfigured() {
		return ErrKeysMissing
	}
	return nil
}

// RestoreArchive downloads the newest store archive, decrypts it if needed,
// validates it and atomically replaces the local store. With a sqlite
// history the history database is restored too. passphrase is only called
// when an encrypted archive has to be opened.
func (a *MonitorApp) RestoreArchive(ctx context.Context, passphrase func() (string, error)) (*RestoreResult, error) {
	if a.vault == nil {
		return nil, ErrNoVault
	}

	tmpDir, err := os.MkdirTemp("", "dlmon-restore-*")
	if err != nil {
		return nil, fmt.Errorf("creating restore staging dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	storeRef, err := a.latestVersion(ctx, StoreArchiveName)
	if err != nil {
		return nil, fmt.Errorf("checking store archive: %w", err)
	}
	if storeRef.version == 0 {
		return nil, fmt.Errorf("no store archive in vault")
	}

	var dc monitor.DecryptionContext
	unlock := func() (monitor.DecryptionContext, error) {
		if dc != nil {
			return dc, nil
		}
		pw, err := passphrase()
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		dc, err = a.encryptor.Unlock(pw)
		if err != nil {
			return nil, fmt.Errorf("unlocking private key: %w", err)
		}
		return dc, nil
	}

	storeFile := filepath.Join(tmpDir, StoreArchiveName)
	if err := a.download(ctx, storeRef, storeFile, unlock); err != nil {
		return nil, err
	}

	f, err := os.Open(storeFile)
	if err != nil {
		return nil, err
	}
	records, warnings, err := a.store.Import(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("restoring record store: %w", err)
	}

	result := &RestoreResult{
		Records:      records,
		Warnings:     warnings,
		StoreVersion: storeRef.version,
		Encrypted:    storeRef.encrypted,
	}
	a.logger.Info("record store restored", "records", records, "version", storeRef.version, "skipped_rows", len(warnings))

	if a.history != nil && a.cfg.Database.Type == "sqlite" {
		restored, err := a.restoreHistory(ctx, tmpDir, unlock)
		if err != nil {
			return result, err
		}
		result.HistoryRestored = restored
	}
	return result, nil
}

// download fetches ref into destPath, decrypting when the archive is encrypted.
func (a *MonitorApp) download(ctx context.Context, ref archiveRef, destPath string, unlock func() (monitor.DecryptionContext, error)) error {
	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	if !ref.encrypted {
		if err := a.vault.GetArchive(ctx, ref.name, out); err != nil {
			return fmt.Errorf("downloading %s: %w", ref.name, err)
		}
		return out.Close()
	}

	dc, err := unlock()
	if err != nil {
		return err
	}
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(a.vault.GetArchive(ctx, ref.name, pw))
	}()
	err = dc.Decrypt(pr, out)
	pr.Close()
	if err != nil {
		return fmt.Errorf("decrypting %s: %w", ref.name, err)
	}
	return out.Close()
}

// restoreHistory replaces the local history database with the archived one.
func (a *MonitorApp) restoreHistory(ctx context.Context, tmpDir string, unlock func() (monitor.DecryptionContext, error)) (bool, error) {
	ref, err := a.latestVersion(ctx, HistoryArchiveName)
	if err != nil {
		return false, fmt.Errorf("checking history archive: %w", err)
	}
	if ref.version == 0 {
		return false, nil
	}

	dbFile := filepath.Join(tmpDir, HistoryArchiveName)
	if err := a.download(ctx, ref, dbFile, unlock); err != nil {
		return false, err
	}

	// Opening migrates an archive written by an older binary and proves it is
	// a usable database before the local one is replaced.
	candidate, err := database.NewSQLiteDatabase(dbFile)
	if err != nil {
		return false, fmt.Errorf("validating history archive: %w", err)
	}
	if err := candidate.Close(); err != nil {
		return false, err
	}

	localPath := filepath.Join(a.cfg.Database.DataDir, database.HistoryFileName)
	if err := a.history.Close(); err != nil {
		return false, fmt.Errorf("closing history database: %w", err)
	}
	a.history = nil

	// Same-directory copy first so the final rename cannot cross filesystems.
	staged := localPath + ".restore"
	if err := copyFile(dbFile, staged); err != nil {
		return false, fmt.Errorf("staging history database: %w", err)
	}
	if err := os.Rename(staged, localPath); err != nil {
		os.Remove(staged)
		return false, fmt.Errorf("replacing history database: %w", err)
	}

	db, err := database.NewSQLiteDatabase(localPath)
	if err != nil {
		return false, fmt.Errorf("reopening history database: %w", err)
	}
	a.history = db
	a.logger.Info("history restored", "version", ref.version)
	return true, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
