// Command deskpilot runs a voice and vision desktop agent against a Gemini
// Live session.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/runtime/logger"
	"github.com/deskpilot/deskpilot/runtime/version"
)

// Exit codes.
const (
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks errors caused by invalid flags or arguments.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "deskpilot",
		Short: "Voice and vision desktop agent",
		Long: `deskpilot streams your microphone and your screen or camera to a Gemini Live
session, plays the spoken replies and lets the model drive the desktop through
tools (mouse and keyboard, files, processes, browser, web lookups).

Type a message at the prompt to send text; type q or quit to exit.`,
		Version:       version.GetVersion(),
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if cmd.Flags().Changed(flagVerbose) {
				verbose, err := cmd.Flags().GetBool(flagVerbose)
				if err == nil {
					logger.SetVerbose(verbose)
				}
			}
		},
		RunE: runAgent,
	}
	root.SetVersionTemplate(version.GetVersionInfo() + "\n")
	root.PersistentFlags().StringP(flagConfig, "c", "", "Config file (default ./deskpilot.yaml)")
	root.PersistentFlags().BoolP(flagVerbose, "v", false, "Enable debug logging")
	root.PersistentFlags().String(flagToolsDir, "", "Directory of extra tool manifests")
	addRunFlags(root)

	root.AddCommand(newRunCmd(), newToolsCmd(), newVersionCmd())
	return root
}

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	if err == nil {
		return
	}
	logger.Error("deskpilot failed", "error", err)
	var ue usageError
	if errors.As(err, &ue) {
		os.Exit(exitUsage)
	}
	os.Exit(exitFailure)
}
