package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every namespace in the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfgFile, "")
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		if !clearYes {
			fmt.Fprintf(out, "Delete ALL namespaces in index %q? This cannot be undone. [y/N]: ", a.cfg.VectorStore.Index)
			if !confirmed(cmd.InOrStdin()) {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
		}
		if err := a.pipeline.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "All namespaces cleared.")
		return nil
	},
}

func confirmed(in io.Reader) bool {
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(clearCmd)
}
