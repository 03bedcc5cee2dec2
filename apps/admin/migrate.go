package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/masomo-portal/storage/database"
)

var gooseRunFunc = goose.RunFS // mockable

func (cli *commandLine) migrate(args []string) error {
	switch args[0] {
	case "create", "fix":
		// they edit the migration files, which are embedded in this binary
		fmt.Fprintf(cli.out, "migrate %s: not supported, edit storage/database/migrations instead\n", args[0])
		return errHelp
	}

	driver := cli.db.DriverName()
	if err := goose.SetDialect(driver); err != nil {
		return errors.Wrap(err, "setting migrations dialect")
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db.DB, database.Migrations, database.MigrationsDir(driver), arguments...)
}
