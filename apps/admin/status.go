package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func (cli *commandLine) probeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check whether the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cli.client.Probe(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%s reachable (%s)\n", cli.conf.API.BaseURL, path)
			return nil
		},
	}
}

func (cli *commandLine) healthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the per resource breaker state of this process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := "network"
			if cli.client.MockMode() {
				mode = "mock"
			}
			fmt.Fprintf(cli.out, "mode: %s\n", mode)

			all := cli.cctx.Health.All()
			if len(all) == 0 {
				fmt.Fprintln(cli.out, "no failure recorded")
				return nil
			}
			w := cli.table("RESOURCE", "FAILURES", "LAST FAILURE", "FALLBACK")
			for _, rh := range all {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", rh.ResourceType, rh.FailCount, formatTime(rh.LastFailTime), strconv.FormatBool(rh.UseBackup))
			}
			return w.Flush()
		},
	}
}
