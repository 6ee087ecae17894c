package commands

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmap/internal/cli/ui"
	"github.com/conduit-lang/docmap/internal/engine/dial"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{dial: dial.Open})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docmap",
		Short: "Inspect and query document classes",
		Long: color.CyanString(`docmap - document mapping toolkit

docmap reads the document classes declared in docmap.yml, binds them to a
database and lets you inspect the composed schema and work with stored
documents.

Supported databases:
  • memory://
  • mongodb:// and mongodb+srv://
  • postgres:// (pgx or lib/pq)
  • sqlite://path
  • redis://`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default: docmap.yml in the working directory)")
	flags.StringVar(&a.uri, "uri", "", "database URI, overrides database.uri")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	flags.BoolVar(&a.showMetrics, "metrics", false, "print engine operation counts after the command")

	// Add subcommands
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newSchemaCommand(a))
	rootCmd.AddCommand(newIndexesCommand(a))
	rootCmd.AddCommand(newCountCommand(a))
	rootCmd.AddCommand(newFindCommand(a))
	rootCmd.AddCommand(newInsertCommand(a))
	rootCmd.AddCommand(newDeleteCommand(a))
	rootCmd.AddCommand(newStatsCommand(a))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the docmap version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "docmap version: ")
			valueColor.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			valueColor.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			valueColor.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			valueColor.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	a := &app{dial: dial.Open}
	rootCmd := newRootCommand(a)
	if err := rootCmd.Execute(); err != nil {
		ui.Describe(err, a.classes).Write(rootCmd.ErrOrStderr(), a.noColor)
		return err
	}
	return nil
}
