package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/apiclient"
	"github.com/trezcool/masomo-admin/core/application"
	"github.com/trezcool/masomo-admin/core/auth"
	"github.com/trezcool/masomo-admin/core/material"
	"github.com/trezcool/masomo-admin/core/mockdata"
	"github.com/trezcool/masomo-admin/core/transfer"
	"github.com/trezcool/masomo-admin/core/user"
	"github.com/trezcool/masomo-admin/services/metrics"
	"github.com/trezcool/masomo-admin/storage/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNotLoggedIn = errors.New("not logged in: run `admin login` first")
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	out    io.Writer

	cctx      *apiclient.ClientContext
	client    *apiclient.Client
	authSvc   *auth.Service
	usrSvc    *user.Service
	matSvc    *material.Service
	appSvc    *application.Service
	transfers *transfer.Manager
}

// newCommandLine wires the application: one client context, one API client and the services built on it.
func newCommandLine(conf *core.Config, logger core.Logger, store session.Store, out io.Writer) (*commandLine, error) {
	state, err := auth.LoadState(store)
	if err != nil {
		return nil, err
	}

	issuer := auth.NewIssuer(conf.MockServer.SecretKey, conf.AppName, conf.MockServer.JWTExpirationDelta)
	table, err := mockdata.NewTable(mockdata.Options{Issuer: issuer})
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(nil)
	cctx := apiclient.NewClientContext(apiclient.ContextOptions{
		FailureThreshold: conf.API.FailureThreshold,
		Cooldown:         conf.API.Cooldown,
		RequestTTL:       conf.API.RequestTTL,
		Observer:         collector,
	})
	client := apiclient.NewClient(cctx, apiclient.Options{
		BaseURL:  conf.API.BaseURL,
		Timeout:  conf.API.Timeout,
		Tokens:   state,
		Mock:     table,
		MockMode: conf.API.MockMode,
		Fallback: conf.API.DBFallback,
		Logger:   logger,
		Observer: collector,
	})

	return &commandLine{
		conf:      conf,
		logger:    logger,
		out:       out,
		cctx:      cctx,
		client:    client,
		authSvc:   auth.NewService(client, state, logger),
		usrSvc:    user.NewService(client),
		matSvc:    material.NewService(client),
		appSvc:    application.NewService(client),
		transfers: transfer.NewManager(client, transfer.OptionsFromConfig(conf.Upload, logger)),
	}, nil
}

func (cli *commandLine) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         cli.conf.AppName + " command line",
		Version:       cli.conf.Build,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(cli.out)

	root.AddCommand(
		cli.loginCommand(),
		cli.logoutCommand(),
		cli.whoamiCommand(),
		cli.rolesCommand(),
		cli.selectRoleCommand(),
		cli.probeCommand(),
		cli.healthCommand(),
		cli.usersCommand(),
		cli.studentsCommand(),
		cli.materialsCommand(),
		cli.applicationsCommand(),
		cli.uploadCommand(),
		cli.downloadCommand(),
	)
	return root
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	root := cli.rootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// authenticated wraps the RunE of commands that need a session, refreshing the token when it is about to expire.
func (cli *commandLine) authenticated(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if cli.authSvc.AccessToken() == "" {
			return errNotLoggedIn
		}
		if err := cli.authSvc.EnsureFresh(cmd.Context()); err != nil {
			if !cli.authSvc.IsAuthenticated() {
				return errors.Wrap(errNotLoggedIn, err.Error())
			}
			cli.logger.Warn("token refresh failed", err)
		}
		return run(cmd, args)
	}
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(pwd), nil
}

func (cli *commandLine) table(header ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	return w
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, errors.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
