package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/masomo-portal/core/account"
	"github.com/trezcool/masomo-portal/core/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp         = errors.New("help provided")
	errNotLoggedIn  = errors.New("not logged in")
	errNotPermitted = errors.New("not permitted")
)

type commandLine struct {
	db    *sqlx.DB
	svc   *account.Service
	store *session.Store // local session, persisted in conf.Session.File
	out   io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate up|up-by-one|up-to VERSION|down|down-to VERSION|redo|reset|status|version - run database migrations")
	fmt.Fprintln(cli.out, "  adduser -name NAME -username USERNAME -role ROLE [-email EMAIL] - create an account")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset an account's password")
	fmt.Fprintln(cli.out, "  login -username USERNAME|EMAIL - sign in the local session")
	fmt.Fprintln(cli.out, "  logout - sign out the local session")
	fmt.Fprintln(cli.out, "  whoami - show the signed-in identity")
	fmt.Fprintln(cli.out, "  can -permission PERMISSION - check a permission of the signed-in identity")
	fmt.Fprintln(cli.out, "  roles - list the roles and their permissions")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// promptPassword reads a password without echoing it. An empty password is a usage error.
func (cli *commandLine) promptPassword(fs *flag.FlagSet, prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		cmd := cli.newFlagSet("adduser")
		name := cmd.String("name", "", "The account holder's full name.")
		uname := cmd.String("username", "", "The account's username.")
		email := cmd.String("email", "", "The account's email (optional).")
		role := cmd.String("role", "", "One of the roles listed by `roles`.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *name == "" || *uname == "" || *role == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(cmd, "Enter password:")
		if err != nil {
			return err
		}
		return cli.addUser(*name, *uname, *email, *role, pwd)

	case "resetpassword":
		cmd := cli.newFlagSet("resetpassword")
		uname := cmd.String("username", "", "The account's username or email. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *uname == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(cmd, "Enter password:")
		if err != nil {
			return err
		}
		return cli.resetPassword(*uname, pwd)

	case "login":
		cmd := cli.newFlagSet("login")
		uname := cmd.String("username", "", "The account's username or email. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *uname == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(cmd, "Password:")
		if err != nil {
			return err
		}
		return cli.login(*uname, pwd)

	case "logout":
		return cli.logout()

	case "whoami":
		return cli.whoami()

	case "can":
		cmd := cli.newFlagSet("can")
		perm := cmd.String("permission", "", "The permission to check, eg. finance.invoices")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *perm == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.can(*perm)

	case "roles":
		return cli.roles()

	default:
		cli.printUsage()
		return errHelp
	}
}
