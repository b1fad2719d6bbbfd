package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cuecard/internal/bootstrap"
	"cuecard/internal/domain"
	"cuecard/internal/logging"
	"cuecard/internal/tui"
)

type sessionFlags struct {
	interviewID string
	source      string
	device      string
	duration    int
}

func newSessionCommand(global *globalFlags) *cobra.Command {
	flags := &sessionFlags{}

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Run a live interview session",
		Long: `Run a live interview session in the terminal.

Space or Enter answers the latest question from the transcript, Tab opens a
typed question, p pauses, s switches between microphone and system audio,
d cycles input devices, c clears the transcript and e ends the session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, global, flags)
		},
	}

	cmd.Flags().StringVar(&flags.interviewID, "interview", "", "Interview identifier (required)")
	cmd.Flags().StringVar(&flags.source, "source", string(domain.SourceMicrophone), "Audio source: microphone or system")
	cmd.Flags().StringVar(&flags.device, "device", "", "Input device id as listed by the devices command")
	cmd.Flags().IntVar(&flags.duration, "duration", 0, "Override the session allowance in seconds")
	_ = cmd.MarkFlagRequired("interview")

	return cmd
}

func runSession(cmd *cobra.Command, global *globalFlags, flags *sessionFlags) error {
	source, err := parseSource(flags.source, flags.device)
	if err != nil {
		return err
	}
	if flags.duration < 0 {
		return fmt.Errorf("%w: --duration must not be negative", domain.ErrConfiguration)
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("session needs an interactive terminal")
	}

	dir, err := logging.ResolveDir(global.logPath)
	if err != nil {
		return err
	}
	diag, err := logging.Open(dir, global.logLevel)
	if err != nil {
		return err
	}
	defer diag.Close()

	log := diag.Logger.With().Str("interview_id", flags.interviewID).Logger()
	sink := tui.NewSink()

	services, err := bootstrap.Build(bootstrap.Options{
		InterviewID:     flags.interviewID,
		Source:          source,
		DurationSeconds: flags.duration,
		Events:          sink,
		Log:             log,
	})
	if err != nil {
		return err
	}
	defer services.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go services.Devices.Watch(ctx, services.Config.Audio.DevicePoll)

	model := tui.New(ctx, services.Orchestrator, tui.Options{InterviewID: flags.interviewID, Source: source})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	sink.Attach(program)

	log.Info().Str("source", string(source.Kind)).Msg("session starting")
	_, runErr := program.Run()

	// Finalize even when the program exited on a signal.
	services.Orchestrator.End()
	services.Orchestrator.Wait()
	log.Info().Msg("session closed")

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return runErr
	}
	return nil
}

func parseSource(kind, device string) (domain.AudioSource, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", string(domain.SourceMicrophone), "mic":
		return domain.AudioSource{Kind: domain.SourceMicrophone, DeviceID: strings.TrimSpace(device)}, nil
	case string(domain.SourceSystem):
		return domain.AudioSource{Kind: domain.SourceSystem}, nil
	default:
		return domain.AudioSource{}, fmt.Errorf("%w: unknown --source %q (want microphone or system)", domain.ErrConfiguration, kind)
	}
}
