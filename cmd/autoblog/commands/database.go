package commands

import (
	"database/sql"

	"github.com/teranos/autoblog/am"
	"github.com/teranos/autoblog/db"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
)

// openDatabase opens and migrates the database. An empty dbPath falls back to
// DBPath (the --db flag), then to am config.
func openDatabase(cfg *am.Config, dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		dbPath = DBPath
	}
	if dbPath == "" {
		dbPath = cfg.GetDatabasePath()
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}
	return database, nil
}
