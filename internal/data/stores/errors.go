package stores

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/colonyops/resumepilot/internal/data/db"
)

// IsBusyError reports a SQLITE_BUSY failure.
func IsBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_BUSY
}

// IsCorruptionError reports whether err means the database file is unusable.
func IsCorruptionError(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "file is not a database")
}

// RecoverFromCorruption moves a corrupt database and its WAL/SHM side files
// aside so the next Open starts fresh. Only local session state is lost.
func RecoverFromCorruption(dataDir string) (string, error) {
	path := filepath.Join(dataDir, db.FileName)
	backup := fmt.Sprintf("%s.corrupt.%s", path, time.Now().Format("20060102-150405"))

	for _, suffix := range []string{"", "-wal", "-shm"} {
		err := os.Rename(path+suffix, backup+suffix)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			continue
		}
		if rmErr := os.Remove(path + suffix); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return "", fmt.Errorf("move aside %s: %w", filepath.Base(path+suffix), err)
		}
	}
	return backup, nil
}
