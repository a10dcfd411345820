package main

import (
	"database/sql"

	"github.com/trezcool/kadi/storage/database"
)

var gooseRunFunc = database.RunMigration // mockable

// migrator is the database migrations run on; nil when no database is configured.
type migrator struct {
	db *sql.DB
}

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.migrator.db, args[0], args[1:]...)
}
