// Package vault stores archived snapshots of the record store and the cycle
// history database.
package vault

import (
	"errors"
	"fmt"
	"strings"
)

// ErrArchiveNotFound is returned by GetArchive when nothing was stored under a name.
var ErrArchiveNotFound = errors.New("archive not found")

// validateName rejects archive names that could escape the vault's namespace.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid archive name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || strings.HasSuffix(name, versionSuffix) || strings.HasPrefix(name, ".tmp-") {
		return fmt.Errorf("invalid archive name %q", name)
	}
	return nil
}

const versionSuffix = ".version"
