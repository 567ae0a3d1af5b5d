package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint and the number of pending files",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	cp, err := s.resume(ctx)
	if err != nil {
		return err
	}

	pending, err := s.client.Pending(ctx, cp)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend:    %s\n", s.cfg.Backend)
	fmt.Fprintf(out, "Location:   %s\n", s.cfg.Location)
	fmt.Fprintf(out, "Source:     %s/%s\n", s.cfg.Version, s.cfg.Source)
	fmt.Fprintf(out, "Checkpoint: %s\n", cp)
	fmt.Fprintf(out, "Pending:    %d\n", pending)
	return nil
}
