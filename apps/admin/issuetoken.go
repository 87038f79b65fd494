package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	echoapi "github.com/rollcall/rollcall/apps/api/echo"
	"github.com/rollcall/rollcall/core/user"
)

// issueToken prints a signed API token for the user. Only the token is printed when stdout is piped.
func (cli *commandLine) issueToken(email string, interactive bool) error {
	usr, err := cli.usrSvc.GetByEmail(context.Background(), email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return errors.Errorf("%s is deactivated", usr.Email)
	}

	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, cli.conf), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	if interactive {
		fmt.Fprintf(cli.out, "Token for %s (%s), valid for %v:\n", usr.Name, rolesOf(usr), cli.conf.Server.JWTExpirationDelta)
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func rolesOf(usr user.User) string {
	switch {
	case usr.IsAdmin():
		return "admin"
	case usr.IsTeacher():
		return "teacher"
	case usr.IsStudent():
		return "student"
	}
	return "no role"
}
