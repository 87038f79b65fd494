package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/rollcall/rollcall/core/user"
)

// addUser updates or creates a user.User, matched on its email.
func (cli *commandLine) addUser(nu user.NewUser) error {
	nu.Clean()
	if err := cli.validate.Struct(&nu); err != nil {
		return err
	}

	usr, err := cli.usrSvc.UpdateOrCreate(context.Background(), nu)
	if err != nil {
		return errors.Wrap(err, "saving user")
	}
	fmt.Fprintf(cli.out, "%s <%s> saved (id: %s)\n", usr.Name, usr.Email, usr.ID)
	return nil
}
