package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/quillkernel/quill/config"
)

type installOptions struct {
	name        string
	displayName string
	langName    string
	dir         string
	executable  string
	settingsDir string
}

func newInstallCmd() *cobra.Command {
	var opts installOptions
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install a Jupyter kernelspec for this kernel",
		Long:  "install writes a kernel.json that tells notebook front-ends how to launch quill serve. The default target is the per-user Jupyter kernels directory.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstall(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "quill", "kernelspec directory name")
	f.StringVar(&opts.displayName, "display-name", "", "name shown in notebook UIs (defaults from the language)")
	f.StringVar(&opts.langName, "language", "", "language the kernelspec declares (defaults from settings)")
	f.StringVar(&opts.dir, "dir", "", "install into this directory instead of the Jupyter kernels path")
	f.StringVar(&opts.executable, "executable", "", "kernel binary the spec launches (defaults to this binary)")
	f.StringVar(&opts.settingsDir, "settings", "", "directory holding quill.yaml")
	return cmd
}

func runInstall(cmd *cobra.Command, opts installOptions) error {
	settings, err := config.LoadSettings(opts.settingsDir)
	if err != nil {
		return err
	}

	langName := opts.langName
	if langName == "" {
		langName = settings.Language
	}
	displayName := opts.displayName
	if displayName == "" {
		displayName = fmt.Sprintf("Quill (%s)", cases.Title(language.English).String(langName))
	}
	executable := opts.executable
	if executable == "" {
		executable, err = os.Executable()
		if err != nil {
			return fmt.Errorf("locate kernel binary: %w", err)
		}
	}
	dir := opts.dir
	if dir == "" {
		dir, err = config.KernelspecDir(opts.name)
		if err != nil {
			return err
		}
	}

	spec := config.NewKernelspec(executable, displayName, langName)
	path, err := spec.Install(dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "installed kernelspec %q at %s\n", displayName, path)
	return nil
}
