package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	nerrors "neuroglitch/pkg/errors"
)

// version is set by the main package.
var version = "dev"

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	version = v
}

// Execute runs the neuroglitch CLI with the process arguments.
func Execute() error {
	return runRoot(context.Background(), os.Stderr, nil)
}

// runRoot executes the command tree and reports a failure on logOut.
func runRoot(ctx context.Context, logOut io.Writer, args []string) error {
	root := newRootCmd(logOut)
	if args != nil {
		root.SetArgs(args)
	}
	err := root.ExecuteContext(ctx)
	if err != nil {
		reportError(newLogger(logOut, log.InfoLevel), err)
	}
	return err
}

// reportError logs err without the code prefix; the code goes in a field.
func reportError(logger *log.Logger, err error) {
	if code := nerrors.GetCode(err); code != "" {
		logger.Error(nerrors.UserMessage(err), "code", code)
		return
	}
	logger.Error(err.Error())
}

// newRootCmd builds the command tree, logging to logOut.
func newRootCmd(logOut io.Writer) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "neuroglitch",
		Short:         "NeuroGlitch injects slice-level artifacts into MRI volumes",
		Long:          `NeuroGlitch corrupts 3D NIfTI volumes with missing slices, shuffled slice order and cross-axis slice substitution, and records ground-truth labels for every output.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(logOut, level)))
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(newConfigCmd())

	return root
}
