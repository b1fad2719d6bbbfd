package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cuecard/internal/audio"
	"cuecard/internal/domain"
	"cuecard/internal/usecase"
)

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := usecase.NewDeviceRegistry(audio.NewPulseEnumerator(), zerolog.Nop())
			devices := registry.ListInputDevices(cmd.Context())

			out := cmd.OutOrStdout()
			isTTY := false
			if f, ok := out.(*os.File); ok {
				isTTY = term.IsTerminal(int(f.Fd()))
			}
			return writeDevices(out, devices, registry.Supported(), isTTY)
		},
	}
}

func writeDevices(w io.Writer, devices []domain.AudioDevice, supported, pretty bool) error {
	if !supported {
		_, err := fmt.Fprintln(w, "Device enumeration is not supported on this host; the default input will be used.")
		return err
	}
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No input devices found.")
		return err
	}

	if !pretty {
		for _, d := range devices {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", d.ID, d.Label); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tLABEL")
	for _, d := range devices {
		label := d.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Kind, label)
	}
	return tw.Flush()
}
