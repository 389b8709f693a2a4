package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/formula/descriptor"
	"github.com/git-pkgs/formula/install"
	"github.com/git-pkgs/formula/internal/core"
	"github.com/git-pkgs/formula/internal/receipt"
)

func (a *app) installCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install <descriptor>",
		Short: "Resolve, fetch, install and verify a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := descriptor.Load(args[0])
			if err != nil {
				return err
			}
			report, err := a.pipeline().Run(cmd.Context(), desc)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "installed %s %s -> %s\n",
				desc.Name, desc.ResolvedVersion(), report.Install.LauncherPath)
			return err
		},
	}
}

func (a *app) fetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <descriptor>",
		Short: "Download and verify a package's artifact without installing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := descriptor.Load(args[0])
			if err != nil {
				return err
			}
			fetched, err := a.pipeline().FetchArtifact(cmd.Context(), desc)
			if err != nil {
				return &core.StageError{Stage: core.StageFetch, Name: desc.Name, Err: err}
			}
			_, err = fmt.Fprintln(a.stdout, fetched.Path)
			return err
		},
	}
}

func (a *app) testCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test <descriptor>",
		Short: "Run the smoke test of an installed package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := descriptor.Load(args[0])
			if err != nil {
				return err
			}
			r, err := receipt.Read(a.cfg.Layout().ReceiptDir, desc.Name)
			if err != nil {
				return err
			}
			result, err := a.pipeline().Verify(cmd.Context(), desc, &install.InstallResult{
				ArtifactPath: r.Artifact,
				LauncherPath: r.Launcher,
				Receipt:      r,
			})
			if err != nil {
				return &core.StageError{Stage: core.StageVerify, Name: desc.Name, Err: err}
			}
			_, err = fmt.Fprint(a.stdout, result.Output)
			return err
		},
	}
}

func (a *app) infoCommand() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "info <descriptor>",
		Short: "Show what a descriptor would install",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := descriptor.Load(args[0])
			if err != nil {
				return err
			}
			req, err := core.ParseRequirement(desc.DependsOn)
			if err != nil {
				return err
			}
			layout := a.cfg.Layout()

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			row := func(k, v string) {
				if v != "" {
					_, _ = fmt.Fprintf(w, "%s:\t%s\n", k, v)
				}
			}
			row("name", desc.Name)
			row("version", desc.ResolvedVersion())
			row("description", desc.Description)
			row("homepage", desc.Homepage)
			row("license", desc.License)
			row("url", desc.URL)
			row("mirrors", strings.Join(desc.Mirrors, ", "))
			row("sha256", desc.SHA256)
			row("depends on", req.PURL)
			row("interpreter", req.Binary)
			row("launcher", layout.LauncherPath(desc))
			row("test", strings.Join(desc.TestArgs(), " "))

			if r, err := receipt.Read(layout.ReceiptDir, desc.Name); err == nil {
				row("installed", r.InstalledAt.Format("2006-01-02 15:04:05 MST"))
			} else {
				row("installed", "no")
			}

			if remote {
				reg, err := core.New(req.Ecosystem, "", a.locatorConfig().Client)
				if err != nil {
					return err
				}
				versions, err := reg.FetchVersions(cmd.Context(), req.FormulaName())
				if err != nil {
					return err
				}
				if len(versions) > 0 {
					row("upstream version", versions[0].Number)
				}
				row("upstream page", reg.URLs().Registry(req.FormulaName(), ""))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "query the dependency's registry")
	return cmd
}

func (a *app) uninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <name>",
		Short: "Remove an installed package's launcher, artifact and receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.pipeline().Uninstall(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "uninstalled %s\n", r.Name)
			return err
		},
	}
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			receipts, err := a.pipeline().Installed()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			for _, r := range receipts {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Version, r.Launcher)
			}
			return w.Flush()
		},
	}
}
