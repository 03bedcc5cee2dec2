package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/trezcool/masomo-portal/core/session"
)

// login replaces the identity of the local session.
func (cli *commandLine) login(uname, pwd string) error {
	id, err := cli.svc.Authenticate(context.Background(), uname, pwd)
	if err != nil {
		return err
	}
	cli.store.Login(id)
	fmt.Fprintf(cli.out, "logged in as %s (%s)\n", id.Name, id.Role.DisplayName())
	return nil
}

func (cli *commandLine) logout() error {
	cli.store.Logout()
	fmt.Fprintln(cli.out, "logged out")
	return nil
}

func (cli *commandLine) whoami() error {
	id, ok := cli.store.Identity()
	if !ok {
		if at, expired := cli.store.SessionExpiredAt(); expired {
			fmt.Fprintf(cli.out, "session expired at %s\n", at.Local().Format("2006-01-02 15:04"))
		}
		return errNotLoggedIn
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%s\n", id.ID)
	fmt.Fprintf(w, "name\t%s\n", id.Name)
	if id.Email != "" {
		fmt.Fprintf(w, "email\t%s\n", id.Email)
	}
	fmt.Fprintf(w, "role\t%s (%s)\n", id.Role.DisplayName(), id.Role)
	if attrs := id.Attributes; attrs != nil {
		if attrs.Grade != "" {
			fmt.Fprintf(w, "grade\t%s%s\n", attrs.Grade, attrs.Section)
		}
		if len(attrs.ChildIDs) > 0 {
			fmt.Fprintf(w, "children\t%s\n", strings.Join(attrs.ChildIDs, ", "))
		}
	}
	return w.Flush()
}

// can prints whether the local session holds perm. A denial is reported as errNotPermitted.
func (cli *commandLine) can(perm string) error {
	if !cli.store.IsAuthenticated() {
		return errNotLoggedIn
	}
	if !cli.store.HasPermission(perm) {
		fmt.Fprintf(cli.out, "%s: denied\n", perm)
		return errNotPermitted
	}
	fmt.Fprintf(cli.out, "%s: allowed\n", perm)
	return nil
}

func (cli *commandLine) roles() error {
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tNAME\tPERMISSIONS")
	for _, info := range session.Roles {
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.Value, info.Name, strings.Join(session.PermissionsOf(info.Value), " "))
	}
	return w.Flush()
}
