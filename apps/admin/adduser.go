package main

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo-portal/core/account"
	"github.com/trezcool/masomo-portal/core/session"
)

// addUser creates an active account.Account
func (cli *commandLine) addUser(name, uname, email, role, pwd string) error {
	r, err := session.ParseRole(role)
	if err != nil {
		return err
	}
	acc, err := cli.svc.Create(context.Background(), account.NewAccount{
		Name:            name,
		Username:        uname,
		Email:           email,
		Role:            r,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s (%s)\n", acc.Username, acc.Role)
	return nil
}
