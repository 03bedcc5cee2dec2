package main

import (
	"context"

	"github.com/trezcool/masomo-portal/core/account"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	return cli.svc.ResetPassword(context.Background(), account.ResetPassword{
		Username:        uname,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
}
