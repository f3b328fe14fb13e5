// Package backup copies the audit database aside before the server starts
// taking requests.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goodtune/breakwatch/internal/storage"
	"github.com/rs/zerolog"
)

// Run copies the database file at dbPath into dir with a timestamped name
// and prunes old backups down to keep. A missing database file (first
// start) is not an error.
func Run(dbPath, dir string, keep int, logger zerolog.Logger) error {
	log := logger.With().Str("component", "backup").Logger()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Debug().Str("path", dbPath).Msg("No database to back up yet")
		return nil
	}

	if err := storage.EnsureDir(dir); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("backup_%s%s", time.Now().Format("20060102_150405"), filepath.Ext(dbPath))
	dest := filepath.Join(dir, name)
	if err := copyFile(dbPath, dest); err != nil {
		return fmt.Errorf("copy database: %w", err)
	}

	log.Info().Str("src", dbPath).Str("dest", dest).Msg("Database backed up")

	if keep > 0 {
		if err := prune(dir, keep, log); err != nil {
			// Pruning failures do not invalidate the backup just taken.
			log.Error().Err(err).Msg("Failed to prune old backups")
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// prune removes the oldest backups beyond keep. Timestamped names sort
// chronologically.
func prune(dir string, keep int, log zerolog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	if len(names) <= keep {
		return nil
	}
	sort.Strings(names)

	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
		log.Debug().Str("name", name).Msg("Pruned old backup")
	}
	return nil
}
