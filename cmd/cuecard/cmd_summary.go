package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cuecard/internal/config"
	"cuecard/internal/domain"
	"cuecard/internal/providers/localstore"
)

func newSummaryCommand() *cobra.Command {
	var interviewID string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the locally stored summary of an interview",
		Long: `Print the summary composed from answers saved in the local store.

Only sessions run without CUECARD_BACKEND_URL are stored locally.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Offline() {
				return fmt.Errorf("%w: summaries are kept by the backend when CUECARD_BACKEND_URL is set", domain.ErrConfiguration)
			}

			store, err := localstore.Open(cfg.Store.Path, 0)
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := store.Summary(cmd.Context(), interviewID)
			if err != nil {
				return err
			}
			if summary == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No summary stored for interview %s.\n", interviewID)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.Content)
			return nil
		},
	}

	cmd.Flags().StringVar(&interviewID, "interview", "", "Interview identifier (required)")
	_ = cmd.MarkFlagRequired("interview")

	return cmd
}
