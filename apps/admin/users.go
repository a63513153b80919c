package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-admin/core/user"
)

func (cli *commandLine) usersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(
		cli.usersListCommand(),
		cli.addUserCommand(),
		cli.resetPasswordCommand(),
		cli.deleteUsersCommand(),
	)
	return cmd
}

func (cli *commandLine) studentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Browse student accounts",
	}
	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List students",
		Args:  cobra.NoArgs,
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			students, err := cli.usrSvc.Students(cmd.Context(), user.QueryFilter{Search: search})
			if err != nil {
				return err
			}
			return cli.printUsers(students)
		}),
	}
	list.Flags().StringVarP(&search, "search", "s", "", "search term")
	cmd.AddCommand(list)
	return cmd
}

func (cli *commandLine) usersListCommand() *cobra.Command {
	var (
		filter   user.QueryFilter
		inactive bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("inactive") {
				active := !inactive
				filter.IsActive = &active
			}
			users, err := cli.usrSvc.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return cli.printUsers(users)
		}),
	}
	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "search term")
	cmd.Flags().StringSliceVar(&filter.Roles, "role", nil, "only users with these roles")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "only inactive users (--inactive=false: only active ones)")
	cmd.Flags().IntVar(&filter.Page, "page", 0, "page number")
	return cmd
}

func (cli *commandLine) printUsers(users []user.User) error {
	w := cli.table("ID", "USERNAME", "NAME", "EMAIL", "ACTIVE", "ROLES")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Name, u.Email, strconv.FormatBool(u.IsActive), strings.Join(u.Roles, ","))
	}
	return w.Flush()
}

// addUserCommand creates an account. The password is always prompted, twice.
func (cli *commandLine) addUserCommand() *cobra.Command {
	var (
		nu      user.NewUser
		isAdmin bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			var err error
			if nu.Password, err = cli.readPassword("Password: "); err != nil {
				return err
			}
			if nu.PasswordConfirm, err = cli.readPassword("Confirm Password: "); err != nil {
				return err
			}
			if isAdmin && !containsString(nu.Roles, user.RoleAdmin) {
				nu.Roles = append(nu.Roles, user.RoleAdmin)
			}

			usr, err := cli.usrSvc.Create(cmd.Context(), nu)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "User %q created with id %d.\n", usr.Username, usr.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&nu.Name, "name", "", "full name")
	cmd.Flags().StringVarP(&nu.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&nu.Email, "email", "e", "", "email")
	cmd.Flags().StringSliceVar(&nu.Roles, "role", nil, "roles to grant")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant the admin role")
	return cmd
}

// resetPasswordCommand sets a new password on an account. The password is always prompted, twice.
func (cli *commandLine) resetPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-password ID",
		Short: "Reset the password of a user",
		Args:  cobra.ExactArgs(1),
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			var uu user.UpdateUser
			if uu.Password, err = cli.readPassword("New Password: "); err != nil {
				return err
			}
			if uu.PasswordConfirm, err = cli.readPassword("Confirm Password: "); err != nil {
				return err
			}

			usr, err := cli.usrSvc.Update(cmd.Context(), ids[0], uu)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "Password of %q updated.\n", usr.Username)
			return nil
		}),
	}
}

func (cli *commandLine) deleteUsersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete users",
		Args:  cobra.MinimumNArgs(1),
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			if err := cli.usrSvc.Delete(cmd.Context(), ids...); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%d user(s) deleted.\n", len(ids))
			return nil
		}),
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
