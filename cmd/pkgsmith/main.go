package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stacksmith/pkgsmith/internal/config"
	"github.com/stacksmith/pkgsmith/internal/installer"
	"github.com/stacksmith/pkgsmith/internal/pipeline"
	"github.com/stacksmith/pkgsmith/internal/utils/logger"
)

var (
	logLevel string
	bucket   string
	checksum string
)

func createRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pkgsmith",
		Short: "fetches, verifies and installs stacksmith packages",
		Long: `pkgsmith resolves a platform-specific artifact for a package,
fetches it (or reuses a cached copy), verifies its integrity, extracts it
and hands it to the external installer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn or error")
	root.PersistentFlags().BoolP("verbose", "v", false,
		"Shorthand for --log-level debug")

	root.AddCommand(createPackageCommand("install"))
	root.AddCommand(createPackageCommand("unpack"))
	attachLoggingHooks(root)
	return root
}

// resolveRequestedLogLevel prefers the explicit --log-level flag and falls
// back to --verbose when that was set on the command.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd == nil {
		return ""
	}
	if cmd.Flags().Changed("verbose") {
		if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
			return "debug"
		}
	}
	return ""
}

// attachLoggingHooks initializes the logger before any subcommand runs.
func attachLoggingHooks(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
			return logger.Init(resolveRequestedLogLevel(cmd))
		}
	}
}

func createPackageCommand(command string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   command + " PACKAGE-VERSION [flags] [-- ARGS...]",
		Short: command + "s one package artifact",
		Args: func(cmd *cobra.Command, args []string) error {
			positional := args
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				positional = args[:dash]
			}
			if len(positional) != 1 {
				return fmt.Errorf("expected exactly one PACKAGE-VERSION argument, got %d", len(positional))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			base := args[0]
			var passThrough []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				passThrough = args[dash:]
			}
			return executePackageCommand(cmd, command, base, passThrough)
		},
	}

	cmd.Flags().StringVarP(&bucket, "bucket", "b", config.DefaultBucket,
		"Release bucket to fetch from")
	cmd.Flags().StringVarP(&checksum, "checksum", "c", "",
		"Expected sha256 digest of the archive")
	return cmd
}

func executePackageCommand(cmd *cobra.Command, command, base string, passThrough []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	// The flag default must not shadow a bucket configured via file or env.
	if cmd.Flags().Changed("bucket") {
		cfg.Bucket = bucket
	}
	if checksum != "" {
		cfg.Checksum = checksum
	}

	inst := installer.NewExec(cfg.Installer, cfg.Home)
	return pipeline.Run(cfg, inst, pipeline.Request{
		Command: command,
		Base:    base,
		Args:    passThrough,
	})
}

func main() {
	root := createRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
