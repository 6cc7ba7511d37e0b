package main

import (
	"context"
	"time"

	"github.com/tmalose/peerly/core"
	"github.com/tmalose/peerly/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, email, pwd string, isAdmin, isInstructor bool) error {
	var usr user.User
	var err error
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	if usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email}); err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	usr.Name = core.CleanString(name)
	switch {
	case isAdmin:
		usr.Roles = user.AllRoles
	case isInstructor:
		usr.Roles = []string{user.RoleInstructor}
	default:
		if len(usr.Roles) == 0 {
			usr.Roles = []string{user.RoleStudent}
		}
	}
	usr.IsActive = true
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
