package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-admin/core/application"
	"github.com/trezcool/masomo-admin/core/material"
)

// Materials

func (cli *commandLine) materialsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "materials",
		Short: "Manage course materials",
	}
	cmd.AddCommand(cli.materialsListCommand(), cli.addMaterialCommand(), cli.deleteMaterialsCommand())
	return cmd
}

func (cli *commandLine) materialsListCommand() *cobra.Command {
	var filter material.QueryFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List materials",
		Args:  cobra.NoArgs,
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			mats, err := cli.matSvc.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			w := cli.table("ID", "TITLE", "COURSE", "FILE", "CREATED")
			for _, m := range mats {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", m.ID, m.Title, m.CourseID, m.FileURL, formatTime(m.CreatedAt))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "search term")
	cmd.Flags().IntVar(&filter.CourseID, "course", 0, "only materials of this course")
	cmd.Flags().IntVar(&filter.Page, "page", 0, "page number")
	return cmd
}

// addMaterialCommand creates a material. With --file, the file is uploaded first and the material links to it.
func (cli *commandLine) addMaterialCommand() *cobra.Command {
	var (
		nm   material.NewMaterial
		file string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a material",
		Args:  cobra.NoArgs,
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			if file != "" {
				res, err := cli.uploadFile(cmd, file)
				if err != nil {
					return err
				}
				nm.FileURL = res
			}

			mat, err := cli.matSvc.Create(cmd.Context(), nm)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "Material %q created with id %d.\n", mat.Title, mat.ID)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&nm.Title, "title", "t", "", "title")
	cmd.Flags().StringVarP(&nm.Description, "description", "d", "", "description")
	cmd.Flags().IntVar(&nm.CourseID, "course", 0, "course id")
	cmd.Flags().StringVar(&nm.FileURL, "url", "", "link to an existing file")
	cmd.Flags().StringVarP(&file, "file", "f", "", "local file to upload and attach")
	return cmd
}

func (cli *commandLine) deleteMaterialsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete materials",
		Args:  cobra.MinimumNArgs(1),
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			if err := cli.matSvc.Delete(cmd.Context(), ids...); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%d material(s) deleted.\n", len(ids))
			return nil
		}),
	}
}

// Applications

func (cli *commandLine) applicationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "applications",
		Aliases: []string{"apps"},
		Short:   "Review admission applications",
	}
	cmd.AddCommand(cli.applicationsListCommand(), cli.reviewCommand(true), cli.reviewCommand(false))
	return cmd
}

func (cli *commandLine) applicationsListCommand() *cobra.Command {
	var filter application.QueryFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		Args:  cobra.NoArgs,
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			apps, err := cli.appSvc.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			w := cli.table("ID", "APPLICANT", "EMAIL", "PROGRAM", "STATUS", "SUBMITTED")
			for _, a := range apps {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.ApplicantName, a.Email, a.Program, a.Status, formatTime(a.CreatedAt))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "search term")
	cmd.Flags().StringVar(&filter.Status, "status", "", "pending, approved or rejected")
	cmd.Flags().StringVar(&filter.Program, "program", "", "only applications to this program")
	return cmd
}

func (cli *commandLine) reviewCommand(approve bool) *cobra.Command {
	var note string
	use, short := "reject ID", "Reject an application"
	if approve {
		use, short = "approve ID", "Approve an application"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			var app application.Application
			if approve {
				app, err = cli.appSvc.Approve(cmd.Context(), ids[0], note)
			} else {
				app, err = cli.appSvc.Reject(cmd.Context(), ids[0], note)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "Application %d of %s is now %s.\n", app.ID, app.ApplicantName, app.Status)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&note, "note", "n", "", "note for the applicant (required to reject)")
	return cmd
}

// Files

func (cli *commandLine) uploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a file in chunks",
		Args:  cobra.ExactArgs(1),
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			fileURL, err := cli.uploadFile(cmd, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.out, fileURL)
			return nil
		}),
	}
}

func (cli *commandLine) uploadFile(cmd *cobra.Command, name string) (string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", name)
	}

	last := -1
	res, err := cli.transfers.Upload(cmd.Context(), filepath.Base(name), data, func(percent int) {
		if percent != last {
			last = percent
			fmt.Fprintf(cmd.ErrOrStderr(), "\ruploading %s: %3d%%", filepath.Base(name), percent)
		}
	})
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", errors.Errorf("upload of %s failed: %s", name, res.Message)
	}
	return res.FileURL, nil
}

func (cli *commandLine) downloadCommand() *cobra.Command {
	var dir, name string
	cmd := &cobra.Command{
		Use:   "download PATH",
		Short: "Download a file from the API",
		Args:  cobra.ExactArgs(1),
		RunE: cli.authenticated(func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = cli.conf.Upload.DownloadDir
			}
			res, err := cli.transfers.Download(cmd.Context(), args[0], name, dir)
			if err != nil {
				return err
			}
			if res.Simulated {
				fmt.Fprintf(cli.out, "Backend unavailable: download of %s simulated.\n", args[0])
				return nil
			}
			fmt.Fprintf(cli.out, "Saved %s (%d bytes).\n", res.Path, res.Size)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&dir, "out", "o", "", "destination directory")
	cmd.Flags().StringVar(&name, "name", "", "file name (default: from the server)")
	return cmd
}
