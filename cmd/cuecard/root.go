package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

type globalFlags struct {
	logPath  string
	logLevel string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "cuecard",
		Short: "Live interview copilot in your terminal",
		Long: `cuecard listens to an interview, keeps a running transcript and streams
suggested answers on demand.

Audio is captured with ffmpeg from PulseAudio (microphone or the default
sink monitor) and transcribed by Deepgram.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.logPath, "logpath", "", "Directory for diagnostics_log.txt (default $CUECARD_LOG_PATH or ~/.local/state/cuecard)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Diagnostics log level (debug, info, warn, error)")

	cmd.AddCommand(newSessionCommand(flags))
	cmd.AddCommand(newDevicesCommand())
	cmd.AddCommand(newSummaryCommand())

	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}
