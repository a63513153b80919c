package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-admin/core"
)

func (cli *commandLine) loginCommand() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username = core.CleanString(username); username == "" {
				return errors.New("--username is required")
			}
			pwd, err := cli.readPassword("Password: ")
			if err != nil {
				return err
			}

			sess, err := cli.authSvc.Login(cmd.Context(), username, pwd)
			if err != nil {
				return err
			}
			if sess.CurrentUser != nil {
				cli.logger.Info("logged in", *sess.CurrentUser)
				fmt.Fprintf(cli.out, "Logged in as %s.\n", sess.CurrentUser.Username)
			} else {
				fmt.Fprintln(cli.out, "Logged in.")
			}
			if sess.CurrentRole == "" {
				fmt.Fprintln(cli.out, "Several roles available: pick one with `admin select-role ROLE`.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email")
	return cmd
}

func (cli *commandLine) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.authSvc.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cli.out, "Logged out.")
			return nil
		},
	}
}

func (cli *commandLine) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			usr, err := cli.authSvc.CurrentUser()
			if err != nil {
				return err
			}
			role := cli.authSvc.CurrentRole()
			if role == "" {
				role = "-"
			}
			fmt.Fprintf(cli.out, "%s <%s>\nroles: %s\nacting as: %s\n", usr.Username, usr.Email, strings.Join(usr.Roles, ", "), role)
			return nil
		}),
	}
}

func (cli *commandLine) rolesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the roles of the logged in user",
		Args:  cobra.NoArgs,
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			roles, err := cli.authSvc.Roles()
			if err != nil {
				return err
			}
			current := cli.authSvc.CurrentRole()

			w := cli.table("", "ROLE", "NAME")
			for _, r := range roles {
				mark := ""
				if r.Value == current {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", mark, r.Value, r.Name)
			}
			return w.Flush()
		}),
	}
}

func (cli *commandLine) selectRoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "select-role ROLE",
		Short: "Choose the role to act with",
		Args:  cobra.ExactArgs(1),
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			if err := cli.authSvc.SelectRole(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "Acting as %s.\n", args[0])
			return nil
		}),
	}
}
