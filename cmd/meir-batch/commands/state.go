package commands

import (
	"path/filepath"

	"meirbatch/internal/store"
)

const (
	journalFile  = "journal.db"
	manifestFile = "manifest.parquet"
)

func openJournal() (*store.SQLiteJournal, error) {
	return store.NewSQLiteJournal(filepath.Join(cfg.Storage.StateDir, journalFile))
}

func openManifest() *store.ParquetManifest {
	return store.NewParquetManifest(filepath.Join(cfg.Storage.StateDir, manifestFile))
}
