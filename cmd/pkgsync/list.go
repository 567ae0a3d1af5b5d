package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List data files after the checkpoint",
	Long: `List the data files that a sync would process, in order, without
opening them.

By default the stored checkpoint is used.

Examples:
  # Files not yet synced
  pkgsync list

  # Files after sequence 20, chunk 3
  pkgsync list --after 20/3

  # Every file
  pkgsync list --all`,
	RunE: runList,
}

var (
	listAfter string
	listAll   bool
)

func init() {
	listCmd.Flags().StringVar(&listAfter, "after", "", "list files after SEQUENCE/CHUNK instead of the stored checkpoint")
	listCmd.Flags().BoolVar(&listAll, "all", false, "list every file")
	listCmd.MarkFlagsMutuallyExclusive("after", "all")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	cp, err := parseCheckpoint(listAfter)
	if err != nil {
		return err
	}
	if listAfter == "" && !listAll {
		if cp, err = s.resume(ctx); err != nil {
			return err
		}
	}

	files, err := s.client.DataAfter(ctx, cp)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}

	out := cmd.OutOrStdout()
	for f := range files {
		fmt.Fprintln(out, f)
	}
	return nil
}
